// Package middleware holds the gateway's HTTP middleware.
package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/pkg/response"
)

// RateLimiter throttles per client IP with a Redis counter per window.
// There is no auth model, so the remote IP is the only identity available.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit builds a fixed-window limiter keyed by prefix and client IP.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, c.IP())
		ctx := context.Background()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// A Redis outage must not take the API down with it.
			return c.Next()
		}

		// Set expiration on first request in the window.
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.Error(c, apperr.New(apperr.RateLimit,
				"rate limit of %d requests per %s exceeded", maxRequests, window))
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// SubmitLimit throttles job submissions. maxPerMin <= 0 disables it.
func (rl *RateLimiter) SubmitLimit(maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return rl.Limit("submit", maxPerMin, time.Minute)
}
