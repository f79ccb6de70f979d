package datasets

import (
	"sync"
	"time"

	"github.com/vinodismyname/mcpsales/config"
)

type entry[V any] struct {
	value   V
	stored  time.Time
	expires time.Time
}

// Cache memoizes computed values by key for a fixed TTL. When full, the
// oldest entry is dropped. Concurrent writers to one key race and the last
// one wins.
type Cache[V any] struct {
	mu         sync.Mutex
	items      map[string]entry[V]
	ttl        time.Duration
	maxEntries int
	clock      func() time.Time
	hits       uint64
	misses     uint64
}

// NewCache builds a Cache. Non-positive ttl or maxEntries use config defaults.
func NewCache[V any](ttl time.Duration, maxEntries int, clock func() time.Time) *Cache[V] {
	if ttl <= 0 {
		ttl = config.DefaultReportCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = config.DefaultReportCacheEntries
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cache[V]{items: make(map[string]entry[V]), ttl: ttl, maxEntries: maxEntries, clock: clock}
}

// Key joins a dataset fingerprint and a canonical query string.
func Key(fingerprint, query string) string {
	return fingerprint + "|" + query
}

// Get returns a live value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok || c.clock().After(e.expires) {
		if ok {
			delete(c.items, key)
		}
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Put stores value under key, evicting the oldest entry when at capacity.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.purgeLocked(now)
		if len(c.items) >= c.maxEntries {
			c.dropOldestLocked()
		}
	}
	c.items[key] = entry[V]{value: value, stored: now, expires: now.Add(c.ttl)}
}

// GetOrCompute returns the cached value or computes, stores, and returns it.
// Errors are not cached.
func (c *Cache[V]) GetOrCompute(key string, fn func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	v, err := fn()
	if err != nil {
		return v, false, err
	}
	c.Put(key, v)
	return v, false, nil
}

// Purge removes expired entries and returns how many were dropped.
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(c.clock())
}

func (c *Cache[V]) purgeLocked(now time.Time) int {
	n := 0
	for k, e := range c.items {
		if now.After(e.expires) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

func (c *Cache[V]) dropOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.items {
		if first || e.stored.Before(oldest) || (e.stored.Equal(oldest) && k < oldestKey) {
			oldestKey, oldest, first = k, e.stored, false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}

// Len reports the number of stored entries, live or not yet purged.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats reports lookup hits and misses since construction.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
