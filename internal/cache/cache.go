// Package cache provides a typed in-memory cache with TTL support.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache stores values of type V under string keys. Entries expire after the
// TTL given to New unless refreshed with Set or Touch.
type Cache[V any] struct {
	entries *gocache.Cache
	ttl     time.Duration
}

// New creates a cache with the given TTL. Expired entries are purged every
// cleanup interval, which defaults to the TTL when zero.
func New[V any](ttl, cleanup time.Duration) *Cache[V] {
	if cleanup <= 0 {
		cleanup = ttl
	}
	return &Cache[V]{
		entries: gocache.New(ttl, cleanup),
		ttl:     ttl,
	}
}

// Get retrieves a value from the cache
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	v, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(V)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Set stores a value with the default TTL
func (c *Cache[V]) Set(key string, value V) {
	c.entries.SetDefault(key, value)
}

// Touch extends the TTL of an existing entry
func (c *Cache[V]) Touch(key string) bool {
	v, ok := c.Get(key)
	if ok {
		c.Set(key, v)
	}
	return ok
}

// Delete removes a value from the cache
func (c *Cache[V]) Delete(key string) {
	c.entries.Delete(key)
}

// Len returns the number of entries, including expired ones not yet purged
func (c *Cache[V]) Len() int {
	return c.entries.ItemCount()
}

// OnEvicted registers fn to run when an entry expires or is deleted
func (c *Cache[V]) OnEvicted(fn func(key string, value V)) {
	c.entries.OnEvicted(func(key string, v interface{}) {
		if typed, ok := v.(V); ok {
			fn(key, typed)
		}
	})
}
