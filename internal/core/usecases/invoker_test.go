package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
)

func abandoQuery() domain.GeocoderQuery {
	return domain.GeocoderQuery{
		Text:  "abando",
		Focus: &orb.Point{-2.935, 43.263},
		Size:  4,
	}
}

func TestCacheKey(t *testing.T) {
	got := usecases.CacheKey("pelias", domain.MethodSearch, abandoQuery())
	want := "geocode:pelias:search:abando:43.263:-2.935"
	if got != want {
		t.Errorf("CacheKey() = %q, want %q", got, want)
	}

	noFocus := usecases.CacheKey("here", domain.MethodAutocomplete, domain.GeocoderQuery{Text: "moyua"})
	if noFocus != "geocode:here:autocomplete:moyua::" {
		t.Errorf("CacheKey() without focus = %q", noFocus)
	}
}

func TestCacheKey_Namespaced(t *testing.T) {
	q := abandoQuery()
	keys := map[string]bool{
		usecases.CacheKey("pelias", domain.MethodSearch, q):       true,
		usecases.CacheKey("pelias", domain.MethodAutocomplete, q): true,
		usecases.CacheKey("here", domain.MethodSearch, q):         true,
	}
	if len(keys) != 3 {
		t.Errorf("expected distinct keys per backend and method, got %v", keys)
	}
}

func TestInvoker_EmptyTextBypassesEverything(t *testing.T) {
	cache := newMockCache()
	backend := returning("pelias", func() *geojson.FeatureCollection {
		return collection(pointFeature("Abando", "venue", 0, 0))
	})
	inv := usecases.NewInvoker(cache, 60, nil)

	fc, err := inv.Invoke(context.Background(), backend, domain.MethodSearch, domain.GeocoderQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("expected empty collection, got %d features", len(fc.Features))
	}
	if backend.callCount() != 0 {
		t.Errorf("expected no backend calls, got %d", backend.callCount())
	}
	if cache.gets != 0 || cache.sets != 0 {
		t.Errorf("expected no cache access, got %d gets %d sets", cache.gets, cache.sets)
	}
}

func TestInvoker_MissThenHit(t *testing.T) {
	cache := newMockCache()
	backend := returning("pelias", func() *geojson.FeatureCollection {
		return collection(pointFeature("Abando", "venue", -2.92776, 43.26106))
	})
	inv := usecases.NewInvoker(cache, 60, nil)
	ctx := context.Background()

	first, err := inv.Invoke(ctx, backend, domain.MethodSearch, abandoQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected result to be cached, got %d sets", cache.sets)
	}

	second, err := inv.Invoke(ctx, backend, domain.MethodSearch, abandoQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.callCount() != 1 {
		t.Errorf("expected one backend call, got %d", backend.callCount())
	}
	if diff := cmp.Diff(names(first), names(second)); diff != "" {
		t.Errorf("cached result differs (-live +cached):\n%s", diff)
	}
	if pt, ok := second.Features[0].Geometry.(orb.Point); !ok || pt != (orb.Point{-2.92776, 43.26106}) {
		t.Errorf("cached geometry = %v", second.Features[0].Geometry)
	}
}

func TestInvoker_ServesPrepopulatedEntry(t *testing.T) {
	cache := newMockCache()
	q := abandoQuery()
	data, err := json.Marshal(collection(pointFeature("Cached Abando", "venue", 0, 0)))
	if err != nil {
		t.Fatal(err)
	}
	cache.data[usecases.CacheKey("pelias", domain.MethodAutocomplete, q)] = data

	backend := returning("pelias", func() *geojson.FeatureCollection {
		return collection(pointFeature("Live Abando", "venue", 0, 0))
	})
	inv := usecases.NewInvoker(cache, 0, nil)

	fc, err := inv.Invoke(context.Background(), backend, domain.MethodAutocomplete, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Cached Abando"}, names(fc)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if backend.callCount() != 0 {
		t.Errorf("expected no backend call on hit, got %d", backend.callCount())
	}
}

func TestInvoker_UndecodableEntryIsMiss(t *testing.T) {
	cache := newMockCache()
	q := abandoQuery()
	cache.data[usecases.CacheKey("pelias", domain.MethodSearch, q)] = []byte("not json")

	backend := returning("pelias", func() *geojson.FeatureCollection {
		return collection(pointFeature("Abando", "venue", 0, 0))
	})
	inv := usecases.NewInvoker(cache, 60, nil)

	fc, err := inv.Invoke(context.Background(), backend, domain.MethodSearch, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.callCount() != 1 || len(fc.Features) != 1 {
		t.Errorf("expected live call, got %d calls and %d features", backend.callCount(), len(fc.Features))
	}
}

func TestInvoker_CacheFailuresAreSwallowed(t *testing.T) {
	cache := newMockCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	backend := returning("pelias", func() *geojson.FeatureCollection {
		return collection(pointFeature("Abando", "venue", 0, 0))
	})
	inv := usecases.NewInvoker(cache, 60, nil)

	fc, err := inv.Invoke(context.Background(), backend, domain.MethodSearch, abandoQuery())
	if err != nil {
		t.Fatalf("cache failure leaked: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Errorf("expected 1 feature, got %d", len(fc.Features))
	}
	if cache.sets != 1 {
		t.Errorf("expected a write attempt, got %d", cache.sets)
	}
}

func TestInvoker_NilCache(t *testing.T) {
	backend := returning("pelias", func() *geojson.FeatureCollection {
		return collection(pointFeature("Abando", "venue", 0, 0))
	})
	inv := usecases.NewInvoker(nil, 60, nil)

	for i := 0; i < 2; i++ {
		if _, err := inv.Invoke(context.Background(), backend, domain.MethodSearch, abandoQuery()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if backend.callCount() != 2 {
		t.Errorf("expected every call to reach the backend, got %d", backend.callCount())
	}
}

func TestInvoker_BackendErrorWrapped(t *testing.T) {
	cause := errors.New("503 Service Unavailable")
	cache := newMockCache()
	inv := usecases.NewInvoker(cache, 60, nil)

	_, err := inv.Invoke(context.Background(), failing("here", cause), domain.MethodSearch, abandoQuery())
	if err == nil {
		t.Fatal("expected error")
	}

	var be *domain.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *domain.BackendError, got %T", err)
	}
	if be.Backend != "here" || be.Method != domain.MethodSearch {
		t.Errorf("unexpected error fields: %+v", be)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be preserved")
	}
	if cache.sets != 0 {
		t.Errorf("failed call must not be cached")
	}
}

func TestInvoker_LiveSkipsCache(t *testing.T) {
	cache := newMockCache()
	backend := returning("pelias", func() *geojson.FeatureCollection { return nil })
	inv := usecases.NewInvoker(cache, 60, nil)

	fc, err := inv.Live(context.Background(), backend, domain.MethodReverse, domain.GeocoderQuery{Point: &orb.Point{-2.93, 43.26}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc == nil || len(fc.Features) != 0 {
		t.Errorf("expected empty collection for nil backend answer, got %+v", fc)
	}
	if cache.gets != 0 || cache.sets != 0 {
		t.Errorf("Live touched the cache")
	}
}
