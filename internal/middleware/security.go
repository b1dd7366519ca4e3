package middleware

import (
	"github.com/gofiber/fiber/v3"
)

// SecurityHeaders sets the defensive headers that make sense for a
// JSON-only API. There is no HTML surface, so no CSP; the headers here
// stop responses from being embedded or sniffed into one.
func SecurityHeaders() fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")
		return c.Next()
	}
}
