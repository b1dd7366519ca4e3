package middleware

import (
	"regexp"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the Locals key handlers read the ID from.
	RequestIDKey = "request_id"
)

// Caller-supplied IDs are accepted only in this shape; anything else is
// replaced so log lines cannot be polluted with arbitrary bytes.
var validRequestID = regexp.MustCompile(`^[0-9a-zA-Z-]{1,64}$`)

// RequestID tags every request with an ID for log correlation. A valid
// caller-supplied X-Request-ID is kept so a payment retry can share the ID
// of its original 402; otherwise a fresh UUID is issued.
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.New().String()
		}
		c.Locals(RequestIDKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// GetRequestID returns the request's ID, or "" outside the middleware.
func GetRequestID(c fiber.Ctx) string {
	if id, ok := c.Locals(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
