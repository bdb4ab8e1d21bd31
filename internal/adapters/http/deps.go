package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
)

// Pinger is a dependency the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers. Optional
// dependencies are nil when not configured.
type Dependencies struct {
	Geocoder *usecases.GeocoderService
	Defaults usecases.QueryDefaults
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
	Version  string
}
