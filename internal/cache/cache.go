// Package cache provides a TTL cache for published notebooks.
package cache

import (
	"sync"
	"time"
)

// entry is one cached value.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is an in-memory cache with per-entry expiry. Expired entries
// are dropped on read and by a background sweep.
type MemoryCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	ttl     time.Duration

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// New creates a cache whose entries live for ttl.
func New[V any](ttl time.Duration) *MemoryCache[V] {
	c := &MemoryCache[V]{
		entries:       make(map[string]*entry[V]),
		ttl:           ttl,
		sweepInterval: time.Minute,
		stop:          make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get returns the value stored under key.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		if ok {
			c.Invalidate(key)
		}
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's TTL.
func (c *MemoryCache[V]) Set(key string, value V) {
	c.setTTL(key, value, c.ttl)
}

func (c *MemoryCache[V]) setTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate removes an entry.
func (c *MemoryCache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *MemoryCache[V]) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Stop ends the background sweep. Safe to call multiple times.
func (c *MemoryCache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// Len returns the number of entries, expired or not.
func (c *MemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
