package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a movable time source for deterministic TTL tests.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, capacity int) (*Cache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	return New(capacity, WithClock[string](clock.Now)), clock
}

func TestCacheGetSet(t *testing.T) {
	c, _ := newTestCache(t, 10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "alpha", time.Minute)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheLazyExpiry(t *testing.T) {
	c, clock := newTestCache(t, 10)

	c.Set("a", "alpha", time.Minute)

	clock.Advance(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok, "entry within TTL should be served")

	clock.Advance(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry past TTL should be reported absent")
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestCacheCapacityBound(t *testing.T) {
	c, _ := newTestCache(t, 3)

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "v", time.Minute)
		assert.LessOrEqual(t, c.Len(), 3)
	}

	// The most recent writes survive; the oldest were evicted.
	_, ok := c.Get("key-9")
	assert.True(t, ok)
	_, ok = c.Get("key-0")
	assert.False(t, ok)
}

func TestCacheEvictionPrefersExpired(t *testing.T) {
	c, clock := newTestCache(t, 2)

	c.Set("short", "v", time.Second)
	c.Set("long", "v", time.Hour)

	clock.Advance(2 * time.Second)

	// "short" is expired; the sweep should free its slot so "long"
	// (the insertion-oldest live entry) survives.
	c.Set("new", "v", time.Hour)

	_, ok := c.Get("long")
	assert.True(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)
	_, ok = c.Get("short")
	assert.False(t, ok)
}

func TestCacheOverwriteDoesNotGrow(t *testing.T) {
	c, _ := newTestCache(t, 2)

	c.Set("a", "one", time.Minute)
	c.Set("a", "two", time.Minute)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "two", got)
}

func TestCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t, 10)

	c.Set("a", "v", time.Minute)
	assert.True(t, c.Invalidate("a"))
	assert.False(t, c.Invalidate("a"), "second invalidate reports absence")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c, _ := newTestCache(t, 10)

	c.Set("tenant:org-1:ws-a", "v", time.Minute)
	c.Set("tenant:org-1:ws-b", "v", time.Minute)
	c.Set("tenant:org-2:ws-c", "v", time.Minute)

	removed := c.InvalidatePrefix("tenant:org-1:")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("tenant:org-2:ws-c")
	assert.True(t, ok)
}

func TestCacheClearExpired(t *testing.T) {
	c, clock := newTestCache(t, 10)

	c.Set("short-1", "v", time.Second)
	c.Set("short-2", "v", time.Second)
	c.Set("long", "v", time.Hour)

	clock.Advance(5 * time.Second)

	assert.Equal(t, 2, c.ClearExpired())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.ClearExpired(), "second sweep finds nothing")
}

func TestCacheNewPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[string](0) })
}
