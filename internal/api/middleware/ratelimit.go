/**
 * @description
 * Redis-backed fixed-window rate limiter for the auth endpoints.
 * Counters live in Redis rather than process memory so limits hold across
 * instances; the window key expires on its own.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 * - github.com/gofiber/fiber/v2
 */

package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/redis/go-redis/v9"
)

// RateLimit allows at most max requests per client IP per window
func RateLimit(rdb *redis.Client, window time.Duration, max int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		windowStart := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", c.IP(), windowStart)

		count, err := rdb.Incr(c.Context(), key).Result()
		if err != nil {
			// Fail open: a Redis outage shouldn't take auth down with it
			logger.Error("Rate limiter unavailable: %v", err)
			return c.Next()
		}
		if count == 1 {
			// The counter must not outlive its window. If the TTL can't be set,
			// drop the key instead of leaving an immortal counter behind.
			if err := rdb.Expire(c.Context(), key, window).Err(); err != nil {
				logger.Error("Rate limiter could not expire %s: %v", key, err)
				rdb.Del(c.Context(), key)
			}
		}

		if count > int64(max) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "Too many requests, please try again later",
				"retryAfter": int(window.Seconds()),
			})
		}

		return c.Next()
	}
}
