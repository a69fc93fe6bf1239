package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps entries in-process. It is the default backend: no
// external service to run, per-entry TTLs, and a janitor goroutine that
// sweeps expired entries at cleanupInterval.
type MemoryCache struct {
	items *gocache.Cache
}

func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.items.Get(key)
	if !found {
		return nil, false
	}
	raw, ok := val.([]byte)
	if !ok {
		return nil, false
	}
	return raw, true
}

func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	c.items.Set(key, value, ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

// Clear drops every entry, expired or not.
func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}

// Len reports how many entries are currently held, counting expired
// ones the janitor has not swept yet.
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}
