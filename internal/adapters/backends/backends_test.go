package backends_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/backends"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/ports"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/config"
)

// recorder captures the last request a test server received.
type recorder struct {
	path  string
	query url.Values
	ua    string
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.query = r.URL.Query()
		rec.ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newBackend(t *testing.T, cfg config.BackendConfig) ports.SearchBackend {
	t.Helper()
	b, err := backends.New(cfg, nil)
	if err != nil {
		t.Fatalf("backends.New: %v", err)
	}
	return b
}

func bilbaoQuery() domain.GeocoderQuery {
	return domain.GeocoderQuery{
		Text:   "abando",
		Focus:  &orb.Point{-2.935, 43.263},
		Size:   5,
		Layers: []string{"venue", "stop"},
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := backends.New(config.BackendConfig{Type: "google", URL: "http://x"}, nil)
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *domain.ConfigurationError, got %v", err)
	}
}

func TestNew_MissingURL(t *testing.T) {
	_, err := backends.New(config.BackendConfig{Type: "pelias"}, nil)
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *domain.ConfigurationError, got %v", err)
	}
}

func TestNew_Name(t *testing.T) {
	b := newBackend(t, config.BackendConfig{Type: "pelias", URL: "http://pelias"})
	if b.Name() != "pelias" {
		t.Errorf("expected name to default to type, got %q", b.Name())
	}
	b = newBackend(t, config.BackendConfig{Name: "pelias-eu", Type: "pelias", URL: "http://pelias"})
	if b.Name() != "pelias-eu" {
		t.Errorf("expected configured name, got %q", b.Name())
	}
}

const peliasBody = `{
  "type": "FeatureCollection",
  "geocoding": {"version": "0.2"},
  "bbox": [-2.93, 43.26, -2.92, 43.27],
  "features": [{
    "type": "Feature",
    "geometry": {"type": "Point", "coordinates": [-2.92776, 43.26106]},
    "properties": {"name": "Abando", "layer": "venue", "distance": 0.65}
  }]
}`

func TestPelias_Search(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, peliasBody)
	b := newBackend(t, config.BackendConfig{Type: "pelias", URL: srv.URL, APIKey: "k", Language: "es"})

	fc, err := b.Search(context.Background(), bilbaoQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.path != "/v1/search" {
		t.Errorf("unexpected path %q", rec.path)
	}
	wantParams := map[string]string{
		"text":            "abando",
		"focus.point.lat": "43.263",
		"focus.point.lon": "-2.935",
		"size":            "5",
		"layers":          "venue,stop",
		"api_key":         "k",
		"lang":            "es",
	}
	for k, v := range wantParams {
		if got := rec.query.Get(k); got != v {
			t.Errorf("param %s = %q, want %q", k, got, v)
		}
	}

	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	if d := fc.Features[0].Properties["distance"].(float64); d != 650 {
		t.Errorf("expected distance in meters 650, got %v", d)
	}
	if _, ok := fc.ExtraMembers["geocoding"]; !ok {
		t.Error("expected foreign members to pass through")
	}
	if diff := cmp.Diff(geojson.BBox{-2.93, 43.26, -2.92, 43.27}, fc.BBox); diff != "" {
		t.Errorf("bbox mismatch (-want +got):\n%s", diff)
	}
}

func TestPelias_AutocompleteRect(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"type":"FeatureCollection","features":[]}`)
	b := newBackend(t, config.BackendConfig{Type: "pelias", URL: srv.URL + "/pelias"})

	q := domain.GeocoderQuery{
		Text: "moyua",
		Rect: &domain.Bounds{MinLon: -3.1, MinLat: 43.1, MaxLon: -2.8, MaxLat: 43.4},
	}
	if _, err := b.Autocomplete(context.Background(), q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.path != "/pelias/v1/autocomplete" {
		t.Errorf("unexpected path %q", rec.path)
	}
	if rec.query.Get("boundary.rect.min_lon") != "-3.1" || rec.query.Get("boundary.rect.max_lat") != "43.4" {
		t.Errorf("rect not forwarded: %v", rec.query)
	}
	if rec.query.Get("size") != "4" {
		t.Errorf("expected default size 4, got %q", rec.query.Get("size"))
	}
}

func TestPelias_Reverse(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, peliasBody)
	b := newBackend(t, config.BackendConfig{Type: "pelias", URL: srv.URL})

	_, err := b.Reverse(context.Background(), domain.GeocoderQuery{Point: &orb.Point{-2.93, 43.26}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.path != "/v1/reverse" || rec.query.Get("point.lat") != "43.26" || rec.query.Get("point.lon") != "-2.93" {
		t.Errorf("unexpected request %s?%s", rec.path, rec.query.Encode())
	}
	if rec.query.Has("text") {
		t.Error("reverse must not send text")
	}
}

func TestPelias_StatusError(t *testing.T) {
	srv, _ := newServer(t, http.StatusServiceUnavailable, `{"error":"overloaded"}`)
	b := newBackend(t, config.BackendConfig{Type: "pelias", URL: srv.URL})

	_, err := b.Search(context.Background(), bilbaoQuery())
	var se *backends.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *backends.StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || !strings.Contains(se.Body, "overloaded") {
		t.Errorf("unexpected status error: %+v", se)
	}
}

const hereBody = `{
  "items": [
    {
      "id": "here:pds:place:724u-1",
      "title": "Abando",
      "resultType": "place",
      "distance": 640,
      "address": {"label": "Abando, Bilbao, España", "countryCode": "ESP", "city": "Bilbao"},
      "position": {"lat": 43.26106, "lng": -2.92776},
      "categories": [{"id": "400-4100-0035", "name": "Train Station", "primary": true}]
    },
    {
      "id": "here:cm:chain:1",
      "title": "Abando Café",
      "resultType": "chainQuery"
    },
    {
      "id": "here:af:street:1",
      "title": "Calle de Abando",
      "resultType": "street",
      "address": {"label": "Calle de Abando, Bilbao"},
      "position": {"lat": 43.2601, "lng": -2.9301}
    }
  ]
}`

func TestHERE_Autocomplete(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, hereBody)
	b := newBackend(t, config.BackendConfig{Type: "here", URL: srv.URL + "/v1", APIKey: "secret"})

	fc, err := b.Autocomplete(context.Background(), bilbaoQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.path != "/v1/autosuggest" {
		t.Errorf("unexpected path %q", rec.path)
	}
	if rec.query.Get("at") != "43.263,-2.935" || rec.query.Get("apiKey") != "secret" || rec.query.Get("q") != "abando" {
		t.Errorf("unexpected params %v", rec.query)
	}

	if len(fc.Features) != 2 {
		t.Fatalf("expected items without position to be skipped, got %d features", len(fc.Features))
	}

	station := fc.Features[0]
	if station.Properties["layer"] != "venue" || station.Properties["name"] != "Abando" {
		t.Errorf("unexpected properties: %v", station.Properties)
	}
	if pt := station.Geometry.(orb.Point); pt != (orb.Point{-2.92776, 43.26106}) {
		t.Errorf("unexpected position %v", pt)
	}
	addendum := station.Properties["addendum"].(map[string]interface{})["here"].(map[string]interface{})
	cats := addendum["categories"].([]interface{})
	if cats[0].(map[string]interface{})["id"] != "400-4100-0035" {
		t.Errorf("categories not carried: %v", addendum)
	}
	if fc.Features[1].Properties["layer"] != "street" {
		t.Errorf("expected street layer, got %v", fc.Features[1].Properties["layer"])
	}
}

func TestHERE_AutocompleteWithoutContextUsesGeocode(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"items":[]}`)
	b := newBackend(t, config.BackendConfig{Type: "here", URL: srv.URL, APIKey: "secret"})

	if _, err := b.Autocomplete(context.Background(), domain.GeocoderQuery{Text: "abando"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.path != "/geocode" {
		t.Errorf("expected geocode fallback, got %q", rec.path)
	}
}

func TestHERE_ServicePlaceholder(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"items":[]}`)
	// The placeholder lands in the path here so the test server still answers.
	b := newBackend(t, config.BackendConfig{Type: "here", URL: srv.URL + "/{service}/v1", APIKey: "secret"})

	if _, err := b.Reverse(context.Background(), domain.GeocoderQuery{Point: &orb.Point{-2.93, 43.26}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.path != "/revgeocode/v1/revgeocode" {
		t.Errorf("unexpected path %q", rec.path)
	}
	if rec.query.Get("at") != "43.26,-2.93" {
		t.Errorf("unexpected at %q", rec.query.Get("at"))
	}
}

const nominatimBody = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-2.93566, 43.263]},
      "properties": {
        "place_id": 1234,
        "osm_type": "node",
        "osm_id": 987,
        "category": "highway",
        "type": "bus_stop",
        "addresstype": "highway",
        "name": "Moyua",
        "display_name": "Moyua, Abando, Bilbao",
        "address": {"city": "Bilbao", "country_code": "es"},
        "extratags": {"operator": "Bilbobus"}
      }
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-2.9380, 43.2610]},
      "properties": {
        "category": "place",
        "type": "house",
        "addresstype": "place",
        "name": "",
        "display_name": "24, Calle de Ercilla, Bilbao",
        "address": {"road": "Calle de Ercilla", "house_number": "24"}
      }
    }
  ]
}`

func TestNominatim_Search(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, nominatimBody)
	b := newBackend(t, config.BackendConfig{Type: "nominatim", URL: srv.URL, UserAgent: "geocoder-test"})

	q := bilbaoQuery()
	q.Rect = &domain.Bounds{MinLon: -3.1, MinLat: 43.1, MaxLon: -2.8, MaxLat: 43.4}
	fc, err := b.Autocomplete(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.path != "/search" || rec.query.Get("format") != "geojson" || rec.query.Get("q") != "abando" {
		t.Errorf("unexpected request %s?%s", rec.path, rec.query.Encode())
	}
	if rec.query.Get("viewbox") != "-3.1,43.4,-2.8,43.1" || rec.query.Get("bounded") != "1" {
		t.Errorf("unexpected viewbox %q", rec.query.Get("viewbox"))
	}
	if rec.ua != "geocoder-test" {
		t.Errorf("unexpected user agent %q", rec.ua)
	}

	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}

	stop := fc.Features[0].Properties
	if stop["name"] != "Moyua" || stop["layer"] != "venue" || stop["source"] != "osm" {
		t.Errorf("unexpected stop properties: %v", stop)
	}
	osm := stop["addendum"].(map[string]interface{})["osm"].(map[string]interface{})
	if osm["operator"] != "Bilbobus" {
		t.Errorf("operator not carried: %v", osm)
	}
	if d, ok := stop["distance"].(float64); !ok || d <= 0 || d > 100 {
		t.Errorf("expected small focus distance, got %v", stop["distance"])
	}

	house := fc.Features[1].Properties
	if house["name"] != "24, Calle de Ercilla, Bilbao" || house["layer"] != "address" {
		t.Errorf("unexpected house properties: %v", house)
	}
}

func TestNominatim_ReverseNoMatch(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"error":"Unable to geocode"}`)
	b := newBackend(t, config.BackendConfig{Type: "nominatim", URL: srv.URL})

	fc, err := b.Reverse(context.Background(), domain.GeocoderQuery{Point: &orb.Point{-30, 40}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("expected empty collection, got %d", len(fc.Features))
	}
	if rec.path != "/reverse" || rec.query.Get("lat") != "40" || rec.query.Get("lon") != "-30" {
		t.Errorf("unexpected request %s?%s", rec.path, rec.query.Encode())
	}
}
