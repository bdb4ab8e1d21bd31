package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/ports"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/metrics"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/telemetry"
)

// Invoker executes backend calls, reading and writing through an optional cache.
type Invoker struct {
	cache      ports.CacheService
	ttlSeconds int
	logger     *slog.Logger
}

// NewInvoker creates an Invoker. cache may be nil, in which case every call
// goes straight to the backend. A ttlSeconds of 0 stores entries without expiry.
func NewInvoker(cache ports.CacheService, ttlSeconds int, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		cache:      cache,
		ttlSeconds: ttlSeconds,
		logger:     logger.With("component", "invoker"),
	}
}

// CacheKey builds the cache key for a backend call: the backend and method
// namespace the normalized text and focus point.
func CacheKey(backend string, method domain.Method, q domain.GeocoderQuery) string {
	var lat, lon string
	if q.Focus != nil {
		lat = strconv.FormatFloat(q.Focus.Lat(), 'f', -1, 64)
		lon = strconv.FormatFloat(q.Focus.Lon(), 'f', -1, 64)
	}
	return fmt.Sprintf("geocode:%s:%s:%s:%s:%s", backend, method, q.Text, lat, lon)
}

// Invoke runs method against backend. An empty query text short-circuits to an
// empty collection without touching the cache or the backend. Cache failures
// are logged and never returned; backend failures are returned as
// *domain.BackendError.
func (i *Invoker) Invoke(ctx context.Context, backend ports.SearchBackend, method domain.Method, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	if q.Text == "" {
		return geojson.NewFeatureCollection(), nil
	}

	key := CacheKey(backend.Name(), method, q)
	if i.cache != nil {
		if fc, ok := i.lookup(ctx, backend.Name(), key); ok {
			return fc, nil
		}
	}

	fc, err := i.Live(ctx, backend, method, q)
	if err != nil {
		return nil, err
	}

	if i.cache != nil {
		i.store(ctx, key, fc)
	}
	return fc, nil
}

// Live calls the backend without consulting the cache.
func (i *Invoker) Live(ctx context.Context, backend ports.SearchBackend, method domain.Method, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	name := backend.Name()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backend."+string(method),
		trace.WithAttributes(telemetry.AttrBackend.String(name)))
	defer span.End()
	start := time.Now()

	fc, err := ports.Call(ctx, backend, method, q)
	metrics.BackendDuration.WithLabelValues(name, string(method)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend call failed")
		metrics.BackendCalls.WithLabelValues(name, string(method), "error").Inc()
		var be *domain.BackendError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, &domain.BackendError{Backend: name, Method: method, Err: err}
	}
	metrics.BackendCalls.WithLabelValues(name, string(method), "ok").Inc()

	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	return fc, nil
}

func (i *Invoker) lookup(ctx context.Context, backend, key string) (*geojson.FeatureCollection, bool) {
	data, err := i.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			metrics.CacheErrors.WithLabelValues("get").Inc()
			i.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}
		metrics.CacheMisses.WithLabelValues(backend).Inc()
		return nil, false
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		i.logger.WarnContext(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		metrics.CacheMisses.WithLabelValues(backend).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(backend).Inc()
	return fc, true
}

func (i *Invoker) store(ctx context.Context, key string, fc *geojson.FeatureCollection) {
	data, err := json.Marshal(fc)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("encode").Inc()
		i.logger.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := i.cache.Set(ctx, key, data, i.ttlSeconds); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		i.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}
