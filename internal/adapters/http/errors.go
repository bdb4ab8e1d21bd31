package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, bad_gateway, internal_error, rate_limited
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response carrying the request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID := RequestIDFromCtx(c.UserContext())
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errBadGateway returns a 502 error.
func errBadGateway(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadGateway, "bad_gateway", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// geocodeError maps an orchestrator error onto a response: backend
// failures are 502, anything else 500.
func geocodeError(c *fiber.Ctx, err error) error {
	var be *domain.BackendError
	if errors.As(err, &be) {
		LoggerFromCtx(c.UserContext()).Warn("geocode failed", "backend", be.Backend, "method", be.Method, "error", be.Err)
		return errBadGateway(c, "search backend "+be.Backend+" failed")
	}
	LoggerFromCtx(c.UserContext()).Error("geocode failed", "error", err)
	return errInternal(c, "internal error")
}
