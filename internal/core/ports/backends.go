package ports

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// SearchBackend is one geocoding provider. Implementations must be safe for
// concurrent use.
type SearchBackend interface {
	// Name identifies the backend in logs, metrics and cache keys.
	Name() string
	Autocomplete(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error)
	Search(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error)
	Reverse(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error)
}

// Call dispatches method to the matching SearchBackend operation.
func Call(ctx context.Context, b SearchBackend, method domain.Method, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	switch method {
	case domain.MethodAutocomplete:
		return b.Autocomplete(ctx, q)
	case domain.MethodSearch:
		return b.Search(ctx, q)
	case domain.MethodReverse:
		return b.Reverse(ctx, q)
	}
	_, err := domain.ParseMethod(string(method))
	return nil, err
}
