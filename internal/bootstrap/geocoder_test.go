package bootstrap_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/samirrijal/bilbopass-geocoder/internal/bootstrap"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/config"
)

const peliasEmpty = `{"type":"FeatureCollection","features":[]}`

const peliasAbando = `{"type":"FeatureCollection","features":[
  {"type":"Feature","geometry":{"type":"Point","coordinates":[-2.927,43.261]},
   "properties":{"name":"Abando","layer":"venue","source":"openstreetmap"}}]}`

func peliasServer(t *testing.T, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeocoder_WiresBackup(t *testing.T) {
	var primaryHits, backupHits int32
	primary := peliasServer(t, peliasEmpty, &primaryHits)
	backup := peliasServer(t, peliasAbando, &backupHits)

	cfg := config.GeocoderConfig{
		Backends:    []config.BackendConfig{{Name: "pelias-local", Type: config.BackendPelias, URL: primary.URL}},
		Backups:     []config.BackendConfig{{Name: "pelias-public", Type: config.BackendPelias, URL: backup.URL}},
		DefaultSize: 6,
		CacheTTL:    60,
	}

	svc, defaults, err := bootstrap.Geocoder(cfg, bootstrap.Options{})
	if err != nil {
		t.Fatalf("Geocoder: %v", err)
	}
	if defaults.Size != 6 {
		t.Errorf("expected default size 6, got %d", defaults.Size)
	}

	fc, err := svc.Autocomplete(context.Background(), domain.GeocoderQuery{Text: "abando", Size: 4})
	if err != nil {
		t.Fatalf("Autocomplete: %v", err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Properties.MustString("name", "") != "Abando" {
		t.Errorf("expected backup result, got %+v", fc.Features)
	}
	if atomic.LoadInt32(&primaryHits) != 1 || atomic.LoadInt32(&backupHits) != 1 {
		t.Errorf("expected one call each, got primary=%d backup=%d", primaryHits, backupHits)
	}
}

func TestGeocoder_BadBackend(t *testing.T) {
	cfg := config.GeocoderConfig{
		Backends: []config.BackendConfig{{Type: "google", URL: "http://example.invalid"}},
	}

	_, _, err := bootstrap.Geocoder(cfg, bootstrap.Options{})
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *domain.ConfigurationError, got %v", err)
	}
}

func TestGeocoder_NothingConfigured(t *testing.T) {
	_, _, err := bootstrap.Geocoder(config.GeocoderConfig{}, bootstrap.Options{})
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *domain.ConfigurationError, got %v", err)
	}
}
