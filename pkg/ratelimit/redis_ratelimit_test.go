package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisRateLimiter(t *testing.T) *RedisRateLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisRateLimiter(client, "test:ratelimit:")
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "user:123", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "first request should always be allowed")
}

func TestRedisRateLimiter_TokenBucket(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	ctx := context.Background()

	key := "user:456"
	limit := 3
	window := time.Minute

	for i := 0; i < limit; i++ {
		allowed, err := limiter.Allow(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed, "Request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)
	assert.False(t, allowed, "Request over limit should be denied")
}

func TestRedisRateLimiter_AllowWithInfo(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	ctx := context.Background()

	key := "user:789"
	limit := 5
	window := time.Minute

	allowed, info, err := limiter.AllowWithInfo(ctx, key, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)
	require.NotNil(t, info)
	assert.Equal(t, limit, info.Limit)
	assert.Equal(t, limit-1, info.Remaining)
	assert.False(t, info.ResetTime.IsZero())

	// Two more requests, remaining should keep dropping
	_, err = limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)
	_, err = limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)

	allowed, info, err = limiter.AllowWithInfo(ctx, key, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, limit-4, info.Remaining)
}

func TestRedisRateLimiter_Reset(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	ctx := context.Background()

	key := "user:reset"
	limit := 2
	window := time.Minute

	_, err := limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)
	_, err = limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)

	allowed, err := limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, key))

	allowed, err = limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed, "request should be allowed after reset")
}

func TestRedisRateLimiter_MultipleKeys(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	ctx := context.Background()

	limit := 2
	window := time.Minute

	// Exhaust the first key
	limiter.Allow(ctx, "user:multi1", limit, window)
	limiter.Allow(ctx, "user:multi1", limit, window)
	allowed, err := limiter.Allow(ctx, "user:multi1", limit, window)
	require.NoError(t, err)
	assert.False(t, allowed, "exhausted key should be limited")

	// A different key keeps its own bucket
	allowed, err = limiter.Allow(ctx, "user:multi2", limit, window)
	require.NoError(t, err)
	assert.True(t, allowed, "other key should be allowed")
}

func TestRedisRateLimiter_ConcurrentRequests(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	ctx := context.Background()

	key := "user:concurrent"
	limit := 10
	window := time.Minute
	concurrency := 20

	results := make(chan bool, concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			allowed, _ := limiter.Allow(ctx, key, limit, window)
			results <- allowed
		}()
	}

	allowedCount := 0
	for i := 0; i < concurrency; i++ {
		if <-results {
			allowedCount++
		}
	}

	assert.Equal(t, limit, allowedCount, "only %d requests should be allowed", limit)
}
