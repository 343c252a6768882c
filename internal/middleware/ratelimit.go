package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"beacon/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Track beacon limits (per originating IP)
	TrackMax        int
	TrackExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// 60/min per IP; a normal page session sends a handful of beacons
		TrackMax:        60,
		TrackExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("TRACK_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.TrackMax = n
		}
	}
	if v := os.Getenv("TRACK_RATE_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.TrackExpiration = time.Duration(n) * time.Second
		}
	}

	if os.Getenv("ENVIRONMENT") == "development" {
		config.TrackMax = 1000
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// TrackRateLimiter limits /track beacons per originating IP. When Redis is
// available the counters live there so the limit holds across instances;
// otherwise the in-memory Fiber limiter covers single-instance deployments.
func TrackRateLimiter(config *RateLimitConfig, redisService *services.RedisService) fiber.Handler {
	if redisService == nil {
		return limiter.New(limiter.Config{
			Max:        config.TrackMax,
			Expiration: config.TrackExpiration,
			KeyGenerator: func(c *fiber.Ctx) string {
				return "track:" + c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				log.Printf("🚫 [RATE-LIMIT] Track limit reached for IP: %s", c.IP())
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "Too many requests. Please slow down.",
					"retry_after": int(config.TrackExpiration.Seconds()),
				})
			},
		})
	}

	windowSeconds := int(config.TrackExpiration.Seconds())
	return func(c *fiber.Ctx) error {
		key := "ratelimit:track:" + c.IP()
		ctx := c.Context()

		count, err := redisService.Incr(ctx, key)
		if err != nil {
			log.Printf("⚠️ [RATE-LIMIT] Redis error: %v", err)
			return c.Next() // Allow on error
		}

		if count == 1 {
			// First request in the window, start the clock
			redisService.Expire(ctx, key, windowSeconds)
		}

		if count > int64(config.TrackMax) {
			log.Printf("🚫 [RATE-LIMIT] Track limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": windowSeconds,
			})
		}

		return c.Next()
	}
}
