// Package ttlcache implements an in-memory key/value store with per entry
// time based expiration. Expiry is evaluated lazily at access time, there is
// no background sweep, no capacity bound and no LRU eviction. This is a
// deliberate simplification for a low-cardinality, read-mostly workload.
package ttlcache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a mutex guarded TTL cache. Entries are immutable after Set, so a
// single lock around the map is sufficient, no per entry locking is needed.
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
	ttl   time.Duration
	now   func() time.Time
}

// New creates a cache whose entries expire ttl after they were stored.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// NewWithClock creates a cache with an injectable clock, used by tests to
// advance time without sleeping.
func NewWithClock[V any](ttl time.Duration, now func() time.Time) *Cache[V] {
	c := New[V](ttl)
	c.now = now
	return c
}

// Get returns the value stored under key. An entry older than the TTL is
// removed and reported as absent. The value is returned without copying,
// callers must treat it as immutable once cached.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.items, key)
		var zero V
		return zero, false
	}

	return e.value, true
}

// Set stores value under key, unconditionally overwriting any existing entry
// and stamping the current time.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, storedAt: c.now()}
}

// Remove deletes a specific key from the cache.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all entries from the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[V])
}

// Size returns the number of entries currently held, including entries that
// have expired but have not been touched by Get since expiring.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// TTL returns the configured time-to-live.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}
