package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kava-labs/resource-aggregator-service/logging"
)

// RedisConfig wraps the values for connecting to the redis
// instance holding aggregated route responses
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisCache stores aggregated route responses in redis
type RedisCache struct {
	client *redis.Client
	*logging.ServiceLogger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache returns a RedisCache for cfg, no connection is
// made until the first command or Healthcheck
func NewRedisCache(cfg *RedisConfig, logger *logging.ServiceLogger) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client:        client,
		ServiceLogger: logger,
	}, nil
}

// Set stores value under key for expiration, -1 keeps it until deleted
func (rc *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	// aggregated bodies can be large, only their size is logged
	rc.Trace().
		Str("key", key).
		Int("size", len(value)).
		Dur("expiration", expiration).
		Msg("caching aggregated response")

	// redis treats a zero expiration as no expiration
	if expiration == -1 {
		expiration = 0
	}

	return rc.client.Set(ctx, key, value, expiration).Err()
}

// Get returns the value stored under key or ErrNotFound
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		rc.Trace().Str("key", key).Msg("cache miss")

		return nil, ErrNotFound
	}

	if err != nil {
		rc.Error().
			Str("key", key).
			Err(err).
			Msg("error reading cached response")

		return nil, err
	}

	rc.Trace().
		Str("key", key).
		Int("size", len(value)).
		Msg("cache hit")

	return value, nil
}

// Delete removes key, deleting a missing key is not an error
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	rc.Trace().Str("key", key).Msg("deleting cached response")

	return rc.client.Del(ctx, key).Err()
}

// Healthcheck pings redis
func (rc *RedisCache) Healthcheck(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.Error().Err(err).Msg("redis healthcheck failed")

		return fmt.Errorf("error connecting to redis: %w", err)
	}

	return nil
}

// Close releases the connections held by the redis client
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
