package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

type memoryItem struct {
	value     string
	expiresAt time.Time // zero: never
}

// MemoryCache is a process-local core.Cache and core.TokenBlacklist, used when redis is disabled.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	nowFunc func() time.Time // mockable
}

var (
	_ core.Cache          = (*MemoryCache)(nil)
	_ core.TokenBlacklist = (*MemoryCache)(nil)
)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), nowFunc: time.Now}
}

func (c *MemoryCache) get(key string) (string, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !item.expiresAt.IsZero() && !c.nowFunc().Before(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return "", false
	}
	return item.value, true
}

func (c *MemoryCache) set(key, value string, ttl time.Duration) {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = c.nowFunc().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	if val, ok := c.get(keyPrefix + key); ok {
		return val, nil
	}
	return "", core.ErrCacheMiss
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.set(keyPrefix+key, value, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, keyPrefix+k)
	}
	return nil
}

func (c *MemoryCache) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl > 0 {
		c.set(blacklistKeyPrefix+tokenID, "1", ttl)
	}
	return nil
}

func (c *MemoryCache) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := c.get(blacklistKeyPrefix + tokenID)
	return ok, nil
}
