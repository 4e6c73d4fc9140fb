package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a Redis fixed-window limiter for the state transition
// endpoint, keyed by user for authenticated requests and IP otherwise.
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow counts one request against the identifier's current window.
func (r *RateLimiter) Allow(ctx context.Context, identifier string) bool {
	key := fmt.Sprintf("ratelimit:%s", identifier)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		// Redis being down should not block the endpoint.
		return true
	}

	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}

	return count <= r.limit
}

// Middleware rejects suspicious user agents and over-budget callers.
func (r *RateLimiter) Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.UserAgent()) {
			return e.JSON(403, map[string]string{
				"error": "Access denied",
			})
		}

		identifier := e.RealIP()
		if e.Auth != nil {
			identifier = fmt.Sprintf("user:%s", e.Auth.Id)
		}

		if !r.Allow(e.Request.Context(), identifier) {
			return e.JSON(429, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
