// Package cache implements a generic, thread-safe bounded cache with
// per-entry TTL.
//
// Eviction is deliberately not LRU: when Set finds the cache full it
// first sweeps expired entries, then drops the insertion-oldest entry.
// The only bound that matters to callers is that the cache never grows
// past its capacity; eviction order is not part of the contract.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a generic, thread-safe key→value store with TTL and a
// capacity ceiling. The zero value is not usable; use New.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]entry[V]
	order    []string // insertion order, oldest first
	now      func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock overrides the time source. Used by tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// New creates a cache holding at most capacity entries.
// Panics if capacity < 1.
func New[V any](capacity int, opts ...Option[V]) *Cache[V] {
	if capacity < 1 {
		panic("cache: capacity must be >= 1")
	}
	c := &Cache[V]{
		capacity: capacity,
		entries:  make(map[string]entry[V], capacity),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value by key. An entry past its TTL is evicted on the
// spot and reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.delete(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value under key with the given TTL. At capacity it sweeps
// expired entries first, then evicts the insertion-oldest entry if the
// sweep freed nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.sweepLocked()
		if len(c.entries) >= c.capacity && len(c.order) > 0 {
			c.delete(c.order[0])
		}
	}

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.now(), ttl: ttl}
}

// Invalidate removes a key. Returns true if the key was present.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.delete(key)
	return true
}

// InvalidatePrefix removes every key with the given prefix and returns
// how many were dropped. Used for targeted tenant invalidation.
func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.delete(key)
			removed++
		}
	}
	return removed
}

// ClearExpired sweeps all entries and evicts the expired ones.
// Returns the number of entries removed.
func (c *Cache[V]) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

// Len returns the current number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Janitor runs ClearExpired every interval until ctx is cancelled.
// Intended to be started as a goroutine at application start-up.
func (c *Cache[V]) Janitor(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.ClearExpired(); removed > 0 {
				logger.Debug().Int("removed", removed).Msg("cache janitor swept expired entries")
			}
		}
	}
}

// --- internal (caller must hold lock) ---

func (c *Cache[V]) expired(e entry[V]) bool {
	return c.now().Sub(e.storedAt) > e.ttl
}

func (c *Cache[V]) sweepLocked() int {
	removed := 0
	for key, e := range c.entries {
		if c.expired(e) {
			c.delete(key)
			removed++
		}
	}
	return removed
}

func (c *Cache[V]) delete(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
