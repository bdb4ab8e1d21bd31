package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
)

// GeocodeHandler serves one geocoder method. Query parameters are taken as
// they come; anything malformed is dropped or defaulted by the normalizer.
func GeocodeHandler(deps *Dependencies, method domain.Method) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := usecases.NormalizeQuery(c.Queries(), deps.Defaults)

		fc, err := deps.Geocoder.Geocode(c.UserContext(), method, q)
		if err != nil {
			return geocodeError(c, err)
		}
		return c.JSON(fc)
	}
}

// AutocompleteHandler returns type-ahead suggestions.
func AutocompleteHandler(deps *Dependencies) fiber.Handler {
	return GeocodeHandler(deps, domain.MethodAutocomplete)
}

// SearchHandler returns forward geocoding results.
func SearchHandler(deps *Dependencies) fiber.Handler {
	return GeocodeHandler(deps, domain.MethodSearch)
}

// ReverseHandler returns features near point.lat/point.lon.
func ReverseHandler(deps *Dependencies) fiber.Handler {
	return GeocodeHandler(deps, domain.MethodReverse)
}

// paramsFromMap flattens loosely typed input (GraphQL arguments, WebSocket
// messages) into the string map the normalizer expects.
func paramsFromMap(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(val)
		case bool:
			out[k] = strconv.FormatBool(val)
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				if s, ok := p.(string); ok {
					parts = append(parts, s)
				}
			}
			out[k] = strings.Join(parts, ",")
		}
	}
	return out
}
