package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const identityLocal = "identity"

// identityExempt lists paths that answer without a caller identity:
// aggregate data and system endpoints.
func identityExempt(path string) bool {
	switch {
	case path == "/v1/health", path == "/v1/ready", path == "/metrics":
		return true
	case strings.HasPrefix(path, "/v1/location/popular"):
		return true
	case strings.HasPrefix(path, "/ws"):
		return true
	}
	return false
}

// IdentityMiddleware resolves the caller identity from the X-User-ID header
// set by the edge gateway after session validation. Requests without one are
// rejected before any token is consumed.
func IdentityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if identityExempt(c.Path()) {
			return c.Next()
		}

		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			return respondErr(c, fiber.StatusUnauthorized, "authentication required")
		}
		c.Locals(identityLocal, "user:"+userID)
		return c.Next()
	}
}

// identityFrom returns the resolved identity, or "" when absent.
func identityFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(identityLocal).(string)
	return id
}
