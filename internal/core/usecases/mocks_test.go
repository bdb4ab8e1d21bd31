package usecases_test

import (
	"context"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/ports"
)

// --- Mock SearchBackend ---

type mockBackend struct {
	name           string
	autocompleteFn func(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error)
	searchFn       func(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error)
	reverseFn      func(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error)

	mu      sync.Mutex
	calls   []domain.Method
	queries []domain.GeocoderQuery
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) record(method domain.Method, q domain.GeocoderQuery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
	m.queries = append(m.queries, q)
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockBackend) Autocomplete(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	m.record(domain.MethodAutocomplete, q)
	if m.autocompleteFn != nil {
		return m.autocompleteFn(ctx, q)
	}
	return geojson.NewFeatureCollection(), nil
}

func (m *mockBackend) Search(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	m.record(domain.MethodSearch, q)
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return geojson.NewFeatureCollection(), nil
}

func (m *mockBackend) Reverse(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	m.record(domain.MethodReverse, q)
	if m.reverseFn != nil {
		return m.reverseFn(ctx, q)
	}
	return geojson.NewFeatureCollection(), nil
}

// returning builds a backend whose autocomplete and search return fc.
func returning(name string, fc func() *geojson.FeatureCollection) *mockBackend {
	fn := func(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
		return fc(), nil
	}
	return &mockBackend{name: name, autocompleteFn: fn, searchFn: fn, reverseFn: fn}
}

// failing builds a backend whose every call fails with err.
func failing(name string, err error) *mockBackend {
	fn := func(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
		return nil, err
	}
	return &mockBackend{name: name, autocompleteFn: fn, searchFn: fn, reverseFn: fn}
}

// --- Mock CacheService ---

type mockCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	gets   int
	sets   int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []*domain.QueryEvent
	err    error
}

func (m *mockPublisher) PublishQueryEvent(ctx context.Context, event *domain.QueryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

// --- Feature builders ---

func pointFeature(name, layer string, lon, lat float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lon, lat})
	f.Properties["name"] = name
	f.Properties["layer"] = layer
	return f
}

// osmStop is a stop tagged with an operator in OpenStreetMap addendum data.
func osmStop(name string, lon, lat float64, operator string) *geojson.Feature {
	f := pointFeature(name, "venue", lon, lat)
	f.Properties["addendum"] = map[string]interface{}{
		"osm": map[string]interface{}{"operator": operator},
	}
	return f
}

// hereStop is a stop carrying a HERE public transport category.
func hereStop(name string, lon, lat float64) *geojson.Feature {
	f := pointFeature(name, "venue", lon, lat)
	f.Properties["addendum"] = map[string]interface{}{
		"here": map[string]interface{}{
			"categories": []interface{}{
				map[string]interface{}{"id": "400-4100-0036", "name": "Bus Stop"},
			},
		},
	}
	return f
}

func collection(features ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, features...)
	return fc
}

func names(fc *geojson.FeatureCollection) []string {
	var out []string
	for _, f := range fc.Features {
		n, _ := f.Properties["name"].(string)
		out = append(out, n)
	}
	return out
}
