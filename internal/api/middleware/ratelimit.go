package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ammarsecurity/nexchat/pkg/logger"
	"github.com/ammarsecurity/nexchat/pkg/ratelimit"
)

// RateLimitConfig holds in-memory rate limit configuration.
type RateLimitConfig struct {
	Capacity   int64                     // Maximum number of requests
	RefillRate int64                     // Requests per second
	KeyFunc    func(*gin.Context) string // Function to extract rate limit key
}

// RedisRateLimitConfig holds distributed rate limit configuration.
type RedisRateLimitConfig struct {
	Limiter *ratelimit.RedisRateLimiter
	Limit   int           // Maximum requests per window
	Window  time.Duration // Window size
	KeyFunc func(*gin.Context) string
}

// DefaultKeyFunc uses user ID if authenticated, otherwise IP address.
func DefaultKeyFunc(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		return fmt.Sprintf("user:%v", userID)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// IPKeyFunc uses only IP address (for public endpoints).
func IPKeyFunc(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// UserKeyFunc uses only user ID (requires authentication).
func UserKeyFunc(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		return fmt.Sprintf("user:%v", userID)
	}
	return ""
}

// RateLimitMiddleware creates a rate limiting middleware backed by an
// in-process token bucket per key.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	limiter := ratelimit.NewRateLimiter(config.Capacity, config.RefillRate)

	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required for rate limiting",
			})
			c.Abort()
			return
		}

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(config.Capacity, 10))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))
			c.Header("Retry-After", "1")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d requests per second", config.RefillRate),
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(config.Capacity, 10))

		c.Next()
	}
}

// RedisRateLimitMiddleware creates a distributed rate limiting middleware.
// Redis errors fail open so a cache outage never takes chat down with it.
func RedisRateLimitMiddleware(config RedisRateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}
	if config.Limit <= 0 {
		config.Limit = 60
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required for rate limiting",
			})
			c.Abort()
			return
		}

		ctx := context.Background()
		allowed, info, err := config.Limiter.AllowWithInfo(ctx, key, config.Limit, config.Window)
		if err != nil {
			logger.Warn("Redis rate limit error, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(info.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Limit: %d per %v", config.Limit, config.Window),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Common rate limit configurations.

// GeneralAPIRateLimit - 100 requests, refilled 10/s, per IP/user.
func GeneralAPIRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Capacity:   100,
		RefillRate: 10,
		KeyFunc:    DefaultKeyFunc,
	})
}

// ConnectRateLimit limits websocket upgrade attempts per IP. Reconnect
// storms after a deploy are the usual offender here.
func ConnectRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Capacity:   10,
		RefillRate: 1,
		KeyFunc:    IPKeyFunc,
	})
}

// Redis-backed presets (usable once a Limiter is injected).

// RedisGeneralAPIRateLimit - 600 requests per minute per IP/user.
func RedisGeneralAPIRateLimit(limiter *ratelimit.RedisRateLimiter) gin.HandlerFunc {
	return RedisRateLimitMiddleware(RedisRateLimitConfig{
		Limiter: limiter,
		Limit:   600,
		Window:  time.Minute,
		KeyFunc: DefaultKeyFunc,
	})
}

// RedisConnectRateLimit - 10 websocket connects per minute per IP.
func RedisConnectRateLimit(limiter *ratelimit.RedisRateLimiter) gin.HandlerFunc {
	return RedisRateLimitMiddleware(RedisRateLimitConfig{
		Limiter: limiter,
		Limit:   10,
		Window:  time.Minute,
		KeyFunc: IPKeyFunc,
	})
}
