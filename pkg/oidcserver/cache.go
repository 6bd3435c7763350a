package oidcserver

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache is the TTL store backing authorization codes. Take must be atomic:
// at most one caller observes a stored value, which is what keeps codes
// single-use. A distributed implementation that cannot provide an atomic
// get-and-delete weakens replay protection and must document it.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Take(ctx context.Context, key string) ([]byte, error)
}

// MemoryCache is an in-process Cache for single-node deployments and tests.
type MemoryCache struct {
	mu    sync.Mutex
	items *ttlcache.Cache[string, []byte]
}

// NewMemoryCache creates a started in-memory cache.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		items: ttlcache.New[string, []byte](),
	}

	go c.items.Start()

	return c
}

// Set stores value under key for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Set(key, value, ttl)
	return nil
}

// Take returns and removes the value under key. The mutex makes the
// get-and-delete pair atomic with respect to concurrent redeemers.
func (c *MemoryCache) Take(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.items.Get(key)
	if item == nil {
		return nil, nil
	}

	c.items.Delete(key)
	return item.Value(), nil
}

// Stop stops the expiration loop.
func (c *MemoryCache) Stop() {
	c.items.Stop()
}
