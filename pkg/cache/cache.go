// Package cache holds the in-memory result caches and the request fingerprints
// used to key them.
//
// Entries expire after a fixed TTL and the cache never holds more than its
// capacity; on overflow the least recently used entry is evicted. Expired
// entries are never returned, whether or not the background sweep has removed
// them yet.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lisan-ai/lisan/pkg/models"
)

// Cache is a size- and time-bounded result cache safe for concurrent use.
type Cache[V any] struct {
	lru       *expirable.LRU[string, V]
	capacity  int
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache holding at most capacity entries, each for ttl.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		lru:      expirable.NewLRU[string, V](capacity, nil, ttl),
		capacity: capacity,
	}
}

// Get returns the cached value for key. Expired entries read as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return v, false
	}
	c.hits.Add(1)
	return v, true
}

// Put stores value under key, replacing any current value and restarting its TTL.
// Only entries pushed out by capacity count as evictions; TTL expiry does not.
func (c *Cache[V]) Put(key string, value V) {
	if c.lru.Add(key, value) {
		c.evictions.Add(1)
	}
}

// Len returns the number of entries currently held.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Stats returns cache performance metrics.
func (c *Cache[V]) Stats() models.CacheStats {
	return models.CacheStats{
		Entries:   int64(c.lru.Len()),
		Capacity:  int64(c.capacity),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
