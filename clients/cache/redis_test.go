package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/resource-aggregator-service/clients/cache"
	"github.com/kava-labs/resource-aggregator-service/logging"
)

var (
	redisURL      = os.Getenv("REDIS_ENDPOINT_URL")
	redisPassword = os.Getenv("REDIS_PASSWORD")
)

func newTestRedisCache(t *testing.T) *cache.RedisCache {
	if redisURL == "" {
		t.Skip("REDIS_ENDPOINT_URL is not set, skipping redis cache test")
	}

	logger, err := logging.New("ERROR")
	require.NoError(t, err)

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Address:  redisURL,
		Password: redisPassword,
	}, &logger)
	require.NoError(t, err)

	t.Cleanup(func() { redisCache.Close() })

	return redisCache
}

func TestUnitTestNewRedisCacheRequiresAddress(t *testing.T) {
	logger, err := logging.New("ERROR")
	require.NoError(t, err)

	_, err = cache.NewRedisCache(&cache.RedisConfig{}, &logger)

	require.Error(t, err)
}

func TestE2ETestRedisCache(t *testing.T) {
	redisCache := newTestRedisCache(t)
	ctx := context.Background()

	// keys are unique per run so a shared redis instance can be used
	prefix := "aggregator-test:" + uuid.NewString() + ":"

	require.NoError(t, redisCache.Healthcheck(ctx))

	t.Run("missing key", func(t *testing.T) {
		_, err := redisCache.Get(ctx, prefix+"missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		value := []byte(`[{"id":42},{"id":43}]`)
		require.NoError(t, redisCache.Set(ctx, prefix+"key", value, time.Minute))

		cached, err := redisCache.Get(ctx, prefix+"key")
		require.NoError(t, err)
		require.Equal(t, value, cached)
	})

	t.Run("expired key", func(t *testing.T) {
		require.NoError(t, redisCache.Set(ctx, prefix+"short", []byte("{}"), 50*time.Millisecond))

		require.Eventually(t, func() bool {
			_, err := redisCache.Get(ctx, prefix+"short")
			return err == cache.ErrNotFound
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("cache indefinitely", func(t *testing.T) {
		require.NoError(t, redisCache.Set(ctx, prefix+"forever", []byte("{}"), -1))
		t.Cleanup(func() { redisCache.Delete(ctx, prefix+"forever") })

		cached, err := redisCache.Get(ctx, prefix+"forever")
		require.NoError(t, err)
		require.Equal(t, []byte("{}"), cached)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, redisCache.Delete(ctx, prefix+"key"))
		require.NoError(t, redisCache.Delete(ctx, prefix+"never-set"))

		_, err := redisCache.Get(ctx, prefix+"key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})
}

func TestUnitTestRedisCacheHealthcheckFailsWhenUnreachable(t *testing.T) {
	logger, err := logging.New("ERROR")
	require.NoError(t, err)

	// nothing listens on the discard port
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{Address: "127.0.0.1:9"}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { redisCache.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.Error(t, redisCache.Healthcheck(ctx))

	_, err = redisCache.Get(ctx, "key")
	require.Error(t, err)
	require.NotErrorIs(t, err, cache.ErrNotFound)
}
