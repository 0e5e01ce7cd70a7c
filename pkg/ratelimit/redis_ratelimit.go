package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitInfo describes the state of a rate limit window for one key.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RedisRateLimiter is a distributed token bucket limiter shared by all
// server instances through a single redis. The client is injected so its
// lifecycle stays with the caller.
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRateLimiter creates a redis-backed limiter.
func NewRedisRateLimiter(client *redis.Client, keyPrefix string) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// allowScript refills the bucket by elapsed time and consumes one token,
// all inside a single Lua script so concurrent callers stay atomic.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local tokens_key = key .. ":tokens"
	local timestamp_key = key .. ":timestamp"

	local tokens = tonumber(redis.call('GET', tokens_key))
	local last_update = tonumber(redis.call('GET', timestamp_key))

	if tokens == nil then
		tokens = limit
		last_update = now
	end

	local elapsed = now - last_update
	local refill_rate = limit / window
	local new_tokens = math.min(limit, tokens + (elapsed * refill_rate))

	local allowed = 0
	if new_tokens >= 1 then
		new_tokens = new_tokens - 1
		allowed = 1
	end

	redis.call('SET', tokens_key, new_tokens, 'EX', window * 2)
	redis.call('SET', timestamp_key, now, 'EX', window * 2)

	return {allowed, math.floor(new_tokens), last_update + window}
`)

// Allow reports whether a request for key fits within limit per window.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := r.AllowWithInfo(ctx, key, limit, window)
	return allowed, err
}

// AllowWithInfo is Allow plus the current window state for response headers.
func (r *RedisRateLimiter) AllowWithInfo(ctx context.Context, key string, limit int, window time.Duration) (bool, *RateLimitInfo, error) {
	redisKey := r.keyPrefix + key
	now := time.Now().Unix()

	result, err := allowScript.Run(ctx, r.client, []string{redisKey}, limit, int(window.Seconds()), now).Result()
	if err != nil {
		return false, nil, fmt.Errorf("redis script execution failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return false, nil, fmt.Errorf("invalid script result")
	}

	allowed, _ := resultSlice[0].(int64)
	remaining, _ := resultSlice[1].(int64)
	resetTime, _ := resultSlice[2].(int64)

	info := &RateLimitInfo{
		Limit:     limit,
		Remaining: int(remaining),
		ResetTime: time.Unix(resetTime, 0),
	}

	return allowed == 1, info, nil
}

// Reset clears the rate limit state for a given key.
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	redisKey := r.keyPrefix + key

	pipe := r.client.Pipeline()
	pipe.Del(ctx, redisKey+":tokens")
	pipe.Del(ctx, redisKey+":timestamp")
	_, err := pipe.Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}

	return nil
}
