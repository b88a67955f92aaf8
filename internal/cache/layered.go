package cache

import (
	"context"
	"sort"
	"time"
)

// LayeredCache implements a multi-layer cache (memory + disk)
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a new layered cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get retrieves a value from the cache (checks memory first, then disk)
func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, found := c.memory.Get(ctx, key); found {
		return val, true
	}

	if val, found := c.disk.Get(ctx, key); found {
		// Promote to memory cache with its default TTL
		_ = c.memory.Set(ctx, key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both caches
func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(ctx, key, value, ttl)
}

// Delete removes a value from both caches
func (c *LayeredCache) Delete(ctx context.Context, key string) error {
	_ = c.memory.Delete(ctx, key)
	return c.disk.Delete(ctx, key)
}

// Keys returns the union of keys in both layers
func (c *LayeredCache) Keys(ctx context.Context) ([]string, error) {
	diskKeys, err := c.disk.Keys(ctx)
	if err != nil {
		return nil, err
	}
	memKeys, _ := c.memory.Keys(ctx)

	seen := make(map[string]bool, len(diskKeys)+len(memKeys))
	keys := make([]string, 0, len(diskKeys)+len(memKeys))
	for _, k := range append(diskKeys, memKeys...) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes all values from both caches
func (c *LayeredCache) Clear(ctx context.Context) error {
	_ = c.memory.Clear(ctx)
	return c.disk.Clear(ctx)
}
