// Package cache provides a small TTL cache that callers own and inject.
// It is advisory: every caller must produce correct results on a miss.
package cache

import (
	"sync"
	"time"
)

type item[T any] struct {
	value     T
	expiresAt time.Time
}

// TTL is a keyed cache with a single expiry for every entry.
type TTL[T any] struct {
	mu       sync.Mutex
	items    map[string]item[T]
	ttl      time.Duration
	disabled bool
	now      func() time.Time
}

func New[T any](ttl time.Duration) *TTL[T] {
	return &TTL[T]{
		items: make(map[string]item[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Disabled returns a cache that never stores anything.
func Disabled[T any]() *TTL[T] {
	c := New[T](0)
	c.disabled = true
	return c
}

func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if c.disabled {
		return zero, false
	}
	it, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(it.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return it.value, true
}

func (c *TTL[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled || c.ttl <= 0 {
		return
	}
	c.items[key] = item[T]{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *TTL[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear drops every entry.
func (c *TTL[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]item[T])
}

// SetEnabled turns the cache on or off. Turning it off also clears it.
func (c *TTL[T]) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = !enabled
	if !enabled {
		c.items = make(map[string]item[T])
	}
}

func (c *TTL[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanExpired removes expired entries and returns how many were dropped.
func (c *TTL[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// caching its result when load succeeds.
func (c *TTL[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}
