package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
)

// RateLimit returns a per-IP limiter applied in front of the billing
// pipeline. Unpaid 402 challenges are cheap but not free (each one mints
// and stores an invoice), so the window covers them too. Health and
// metrics probes are exempt.
func RateLimit(max, windowMS int) fiber.Handler {
	if max <= 0 {
		return func(c fiber.Ctx) error {
			return c.Next()
		}
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Duration(windowMS) * time.Millisecond,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			retryAfter := c.GetRespHeader("Retry-After")
			if retryAfter == "" {
				retryAfter = "60"
			}
			c.Set("Retry-After", retryAfter)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate_limited",
				"message":     "Rate limit exceeded. Please try again later.",
				"retry_after": retryAfter,
			})
		},
		Next: func(c fiber.Ctx) bool {
			return isExemptPath(c.Path())
		},
	})
}

func isExemptPath(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}
