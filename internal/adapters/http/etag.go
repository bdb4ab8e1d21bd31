package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// etagPaths are the routes whose bodies are worth validating: merged
// geocoder results and the OpenAPI document.
var etagPaths = map[string]bool{
	"/v1/autocomplete":   true,
	"/v1/search":         true,
	"/v1/reverse":        true,
	"/docs/openapi.yaml": true,
}

// ETagMiddleware tags successful GET responses on etagPaths with a weak ETag
// over the body and answers 304 when If-None-Match already names it.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK || !etagPaths[c.Path()] {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		tag := bodyETag(body)
		c.Set(fiber.HeaderETag, tag)

		if etagMatches(c.Get(fiber.HeaderIfNoneMatch), tag) {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}

func bodyETag(body []byte) string {
	h := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(h[:8]) + `"`
}

// etagMatches applies the weak comparison of If-None-Match, which may list
// several tags or be "*".
func etagMatches(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(tag, "W/") {
			return true
		}
	}
	return false
}
