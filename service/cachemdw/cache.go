package cachemdw

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kava-labs/resource-aggregator-service/clients/cache"
	"github.com/kava-labs/resource-aggregator-service/logging"
)

type Config struct {
	// DefaultTTL is used for routes without a cacheTTLSeconds of their own
	// TTL should be either greater than zero or equal to -1, -1 means cache indefinitely
	DefaultTTL time.Duration
	// NidHeader is the request header the cache nid is read from
	NidHeader string
}

// ServiceCache is responsible for caching aggregated route responses and provides corresponding middleware
// ServiceCache can work with any underlying storage which implements simple cache.Cache interface
type ServiceCache struct {
	cacheClient cache.Cache
	// cachePrefix is used as prefix for any key in the cache
	cachePrefix  string
	cacheEnabled bool

	config *Config

	*logging.ServiceLogger
}

func NewServiceCache(
	cacheClient cache.Cache,
	cachePrefix string,
	cacheEnabled bool,
	config *Config,
	logger *logging.ServiceLogger,
) *ServiceCache {
	return &ServiceCache{
		cacheClient:   cacheClient,
		cachePrefix:   cachePrefix,
		cacheEnabled:  cacheEnabled,
		config:        config,
		ServiceLogger: logger,
	}
}

// GetCachedBody returns the aggregated body stored under key,
// cache.ErrNotFound is returned for a miss
func (c *ServiceCache) GetCachedBody(ctx context.Context, key string) (json.RawMessage, error) {
	body, err := c.cacheClient.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if len(body) == 0 {
		return nil, cache.ErrNotFound
	}

	return body, nil
}

// CacheBody stores an aggregated body under key for ttl
func (c *ServiceCache) CacheBody(ctx context.Context, key string, body json.RawMessage, ttl time.Duration) error {
	if len(body) == 0 {
		return ErrEmptyBody
	}

	return c.cacheClient.Set(ctx, key, body, ttl)
}

func (c *ServiceCache) Healthcheck(ctx context.Context) error {
	return c.cacheClient.Healthcheck(ctx)
}

func (c *ServiceCache) IsCacheEnabled() bool {
	return c.cacheEnabled
}
