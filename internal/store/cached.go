package store

import (
	"context"
	"slices"
	"time"

	"github.com/livetemplate/kayero/internal/cache"
)

// Cached fronts a store with a TTL read cache. Published notebooks never
// change, so entries need no invalidation beyond expiry.
type Cached struct {
	inner Store
	cache *cache.MemoryCache[[]byte]
}

// NewCached wraps inner with a cache whose entries live for ttl.
func NewCached(inner Store, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: cache.New[[]byte](ttl)}
}

// Put stores through to the inner store and primes the cache.
func (c *Cached) Put(ctx context.Context, markdown []byte) (string, error) {
	id, err := c.inner.Put(ctx, markdown)
	if err != nil {
		return "", err
	}
	c.cache.Set(id, slices.Clone(markdown))
	return id, nil
}

// Get serves from the cache, falling back to the inner store.
func (c *Cached) Get(ctx context.Context, id string) ([]byte, error) {
	if markdown, ok := c.cache.Get(id); ok {
		return slices.Clone(markdown), nil
	}
	markdown, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(id, slices.Clone(markdown))
	return markdown, nil
}

// Close stops the cache and closes the inner store.
func (c *Cached) Close() error {
	c.cache.Stop()
	return c.inner.Close()
}

// Health reports the circuit state of the breaker in front of s, looking
// through a read cache. Stores without a breaker report "ok".
func Health(s Store) string {
	if c, ok := s.(*Cached); ok {
		s = c.inner
	}
	if b, ok := s.(*Breaker); ok {
		return b.State().String()
	}
	return "ok"
}
