package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in development and tests.
// It is safe for concurrent use. Ordered queries can be made to fail
// with ErrIndexRequired per collection+field to exercise the fallback
// path the managed store forces on missing composite indexes.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	noIndex     map[string]bool // "collection/orderField" → ordered query unsupported
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		noIndex:     make(map[string]bool),
	}
}

// DropIndex marks ordered queries on collection/field as unsupported, so
// they return ErrIndexRequired like a managed store missing the index.
func (m *MemoryStore) DropIndex(collection, orderField string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noIndex[collection+"/"+orderField] = true
}

// Put inserts or replaces a document.
func (m *MemoryStore) Put(_ context.Context, collection string, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("memorystore: put into %s: empty document id", collection)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collection]
	if !ok {
		col = make(map[string]Document)
		m.collections[collection] = col
	}
	col[doc.ID] = cloneDoc(doc)
	return nil
}

// GetByID fetches a single document by ID.
func (m *MemoryStore) GetByID(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneDoc(doc)
	return &out, nil
}

// Query evaluates equality filters, optional ordering, and the limit.
func (m *MemoryStore) Query(_ context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if q.OrderBy != "" && len(q.Filters) > 0 && m.noIndex[q.Collection+"/"+q.OrderBy] {
		return nil, ErrIndexRequired
	}

	var out []Document
	for _, doc := range m.collections[q.Collection] {
		if matchesFilters(doc, q.Filters) {
			out = append(out, cloneDoc(doc))
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := lessValue(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
			if q.Descending {
				return !less && !equalValue(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
			}
			return less
		})
	} else {
		// Deterministic order for unordered queries.
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchesFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !equalValue(doc.Fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func cloneDoc(doc Document) Document {
	fields := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	return Document{ID: doc.ID, Fields: fields}
}

// equalValue compares field values loosely enough to cover the types
// documents actually carry: strings, numbers, bools, and timestamps.
func equalValue(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		return false
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func lessValue(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Before(bt)
		}
		return false
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af < bf
		}
		return false
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as < bs
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
