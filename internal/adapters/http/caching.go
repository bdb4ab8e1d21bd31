package http

import (
	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on successful GET requests
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return err
		}

		// Don't override if already set
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		var ttl string
		switch c.Path() {
		case "/v1/health", "/v1/ready":
			ttl = "no-cache"
		case "/metrics":
			ttl = "no-cache" // Metrics are real-time
		case "/v1/autocomplete":
			ttl = "public, max-age=60" // Type-ahead changes as stops are imported
		case "/v1/search", "/v1/reverse":
			ttl = "public, max-age=300"
		case "/docs", "/docs/openapi.yaml":
			ttl = "public, max-age=3600"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
