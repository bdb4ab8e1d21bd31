package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used across the geocoder.
const (
	AttrMethod    = attribute.Key("geocoder.method")
	AttrText      = attribute.Key("geocoder.text")
	AttrResults   = attribute.Key("geocoder.results")
	AttrFallbacks = attribute.Key("geocoder.fallbacks")
	AttrBackend   = attribute.Key("geocoder.backend")
)
