package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/gearshare/location-api/internal/core/domain"
)

// Envelope is the uniform response shape for every REST endpoint.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data"`
	Errors  []string `json:"errors,omitempty"`
}

// respondOK writes a 200 envelope.
func respondOK(c *fiber.Ctx, data any) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

// respondErr writes a failure envelope with the given status and message.
func respondErr(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(Envelope{
		Success: false,
		Message: msg,
		Errors:  []string{msg},
	})
}

// respondDomainErr maps a domain error to an HTTP status and a safe message.
// Rate-limit and suspicious-pattern rejections share one deliberately vague
// message so callers cannot distinguish which heuristic fired. Upstream
// provider errors never reach the body either.
func respondDomainErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinates):
		return respondErr(c, fiber.StatusBadRequest, "invalid coordinates")
	case errors.Is(err, domain.ErrInvalidRadius):
		return respondErr(c, fiber.StatusBadRequest, "invalid search radius")
	case errors.Is(err, domain.ErrInvalidResultLimit):
		return respondErr(c, fiber.StatusBadRequest, "invalid result limit")
	case errors.Is(err, domain.ErrInvalidQuery):
		return respondErr(c, fiber.StatusBadRequest, "invalid query")
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return respondErr(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, domain.ErrRateLimitExceeded),
		errors.Is(err, domain.ErrSuspiciousPattern):
		return respondErr(c, fiber.StatusTooManyRequests, "too many requests, please try again later")
	case errors.Is(err, domain.ErrGeocodingUnavailable):
		return respondErr(c, fiber.StatusBadGateway, "location lookup temporarily unavailable")
	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
		return respondErr(c, fiber.StatusInternalServerError, "internal error")
	}
}
