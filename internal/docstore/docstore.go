// Package docstore defines the document-store query interface the
// assistant core consumes, plus local implementations (in-memory and
// SQLite) used for development and tests. The managed store behind the
// production deployment satisfies the same interface.
package docstore

import (
	"context"
	"errors"
)

// Collection names used by the assistant core.
const (
	CollectionWorkspaces   = "workspaces"
	CollectionProjects     = "projects"
	CollectionTasks        = "tasks"
	CollectionMessages     = "messages"
	CollectionMembers      = "workspace_members"
	CollectionUserProfiles = "user_profiles"
	CollectionActivities   = "activities"
)

// ErrIndexRequired is returned when an ordered, filtered query needs a
// composite index the store does not have. Callers fall back to an
// unordered query and sort in memory.
var ErrIndexRequired = errors.New("docstore: query requires a composite index")

// ErrNotFound is returned by GetByID when no document matches.
var ErrNotFound = errors.New("docstore: document not found")

// Filter is a single equality predicate (field == value).
type Filter struct {
	Field string
	Value any
}

// Query describes a collection query: equality filters, an optional
// order-by field, and a result limit. Limit <= 0 means no limit.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Document is one record returned by the store.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store is the read interface the aggregation core depends on.
type Store interface {
	// Query returns documents matching the query. Returns
	// ErrIndexRequired when the combination of filters and order-by is
	// not served by an index.
	Query(ctx context.Context, q Query) ([]Document, error)

	// GetByID fetches a single document. Returns ErrNotFound when the
	// document does not exist.
	GetByID(ctx context.Context, collection, id string) (*Document, error)
}

// Writer is the optional write surface implemented by the local stores.
// The production aggregation path never writes; seeding and tests do.
type Writer interface {
	Put(ctx context.Context, collection string, doc Document) error
}
