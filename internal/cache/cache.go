// Package cache provides a small TTL cache used by read-only display
// endpoints.  It is an explicit struct carrying value, timestamp and TTL
// with an injected clock, not a process-wide global, so it is testable and
// safe under concurrent handlers.
package cache

import (
	"sync"
	"time"
)

// TTL caches string-keyed values for a fixed duration.  The zero value is
// not usable; construct with New.
type TTL[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	entries map[string]entry[V]
}

type entry[V any] struct {
	value V
	stamp time.Time
}

// New returns a TTL cache.  A nil now falls back to time.Now; tests inject
// a fake clock.
func New[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	if now == nil {
		now = time.Now
	}
	return &TTL[V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value for key and whether it is still fresh.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.stamp) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the current timestamp.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, stamp: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the entry for key, if any.  Called after writes that
// change the cached reading.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
