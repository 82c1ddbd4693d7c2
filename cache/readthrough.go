// Package cache holds small in-process caches used in front of RPC and the database.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	expiry time.Time
}

// ReadThrough memoizes the results of a loader for a fixed TTL.
// Failed loads are not cached. A zero TTL keeps entries until invalidated.
// Expired entries are dropped by writes at most once per TTL.
type ReadThrough[K comparable, V any] struct {
	mu        sync.RWMutex
	entries   map[K]entry[V]
	ttl       time.Duration
	load      func(ctx context.Context, key K) (V, error)
	now       func() time.Time
	nextPurge time.Time
}

func NewReadThrough[K comparable, V any](ttl time.Duration, load func(ctx context.Context, key K) (V, error)) *ReadThrough[K, V] {
	return &ReadThrough[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		load:    load,
		now:     time.Now,
	}
}

func (c *ReadThrough[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	v, err := c.load(ctx, key)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *ReadThrough[K, V]) lookup(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || (!e.expiry.IsZero() && !c.now().Before(e.expiry)) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *ReadThrough[K, V]) Set(key K, value V) {
	now := c.now()
	e := entry[V]{value: value}
	if c.ttl > 0 {
		e.expiry = now.Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl > 0 && !now.Before(c.nextPurge) {
		c.purge(now)
		c.nextPurge = now.Add(c.ttl)
	}
	c.entries[key] = e
}

func (c *ReadThrough[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops expired entries.
func (c *ReadThrough[K, V]) Purge() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge(now)
}

func (c *ReadThrough[K, V]) purge(now time.Time) {
	for k, e := range c.entries {
		if !e.expiry.IsZero() && !now.Before(e.expiry) {
			delete(c.entries, k)
		}
	}
}

func (c *ReadThrough[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
