package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache is an implementation of Cache that keeps values in process,
// it is used when running without redis and in tests
type InMemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

var _ Cache = (*InMemoryCache)(nil)

type cacheItem struct {
	data       []byte
	expiration time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheItem),
	}
}

// Set sets the value for the given key in the cache with the given expiration.
// -1 means cache indefinitely.
func (c *InMemoryCache) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var expiry time.Time
	if expiration != -1 {
		expiry = time.Now().Add(expiration)
	}

	c.data[key] = cacheItem{
		data:       data,
		expiration: expiry,
	}

	return nil
}

// Get gets the value for the given key in the cache, returning
// ErrNotFound for missing and expired keys.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, ok := c.data[key]
	if !ok || item.expired(time.Now()) {
		return nil, ErrNotFound
	}

	return item.data, nil
}

// GetAll returns every unexpired key and value in the cache.
func (c *InMemoryCache) GetAll(ctx context.Context) map[string][]byte {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	all := make(map[string][]byte, len(c.data))
	for key, item := range c.data {
		if item.expired(now) {
			continue
		}
		all[key] = item.data
	}

	return all
}

// Delete deletes the value for the given key in the cache.
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

func (c *InMemoryCache) Healthcheck(ctx context.Context) error {
	return nil
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}
