package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/ports"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/metrics"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/telemetry"
)

const tracerName = "github.com/samirrijal/bilbopass-geocoder/usecases"

// BackendPair is a primary search backend and its optional backup.
type BackendPair struct {
	Primary ports.SearchBackend
	Backup  ports.SearchBackend
}

// GeocoderConfig is the immutable wiring of a GeocoderService.
type GeocoderConfig struct {
	Backends []BackendPair
	// Transit is the fixed custom source, merged last so that its stops take
	// precedence over the same stops reported by the primaries.
	Transit ports.SearchBackend
	Filter  DuplicateFilter
}

// GeocoderService fans a query out to every configured backend, substitutes
// backups for unsatisfactory answers and folds everything into one collection.
type GeocoderService struct {
	cfg       GeocoderConfig
	invoker   *Invoker
	publisher ports.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewGeocoderService creates a GeocoderService. publisher may be nil.
func NewGeocoderService(cfg GeocoderConfig, invoker *Invoker, publisher ports.EventPublisher, logger *slog.Logger) (*GeocoderService, error) {
	var problems []string
	if len(cfg.Backends) == 0 && cfg.Transit == nil {
		problems = append(problems, "at least one search backend is required")
	}
	for i, pair := range cfg.Backends {
		if pair.Primary == nil {
			problems = append(problems, fmt.Sprintf("backend %d has no primary", i))
		}
	}
	if invoker == nil {
		problems = append(problems, "invoker is required")
	}
	if len(problems) > 0 {
		return nil, &domain.ConfigurationError{Problems: problems}
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &GeocoderService{
		cfg:       cfg,
		invoker:   invoker,
		publisher: publisher,
		logger:    logger.With("component", "geocoder"),
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Autocomplete runs a type-ahead query.
func (s *GeocoderService) Autocomplete(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	return s.Geocode(ctx, domain.MethodAutocomplete, q)
}

// Search runs a full-text forward geocoding query.
func (s *GeocoderService) Search(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	return s.Geocode(ctx, domain.MethodSearch, q)
}

// Reverse looks up features near q.Point.
func (s *GeocoderService) Reverse(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	return s.Geocode(ctx, domain.MethodReverse, q)
}

// Geocode runs method against all backends and returns the merged result.
// An unrecovered backend failure is returned as *domain.BackendError.
func (s *GeocoderService) Geocode(ctx context.Context, method domain.Method, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	ctx, span := s.tracer.Start(ctx, "geocoder."+string(method))
	defer span.End()

	start := time.Now()
	q = q.Clone()
	q.Text = SanitizeText(q.Text)
	span.SetAttributes(telemetry.AttrMethod.String(string(method)), telemetry.AttrText.String(q.Text))

	if method != domain.MethodReverse && q.Text == "" {
		return geojson.NewFeatureCollection(), nil
	}

	results, errs, transit, err := s.fanOut(ctx, method, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transit backend failed")
		return nil, err
	}

	fellBack, err := s.applyFallbacks(ctx, method, q, results, errs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend failed")
		return nil, err
	}

	collections := make([]*geojson.FeatureCollection, 0, len(results)+1)
	collections = append(collections, results...)
	if s.cfg.Transit != nil {
		collections = append(collections, transit)
	}
	out := Fold(collections, q.Focus, s.cfg.Filter)

	span.SetAttributes(
		telemetry.AttrResults.Int(len(out.Features)),
		telemetry.AttrFallbacks.StringSlice(fellBack),
	)
	s.publish(ctx, method, q, fellBack, len(out.Features), time.Since(start))

	return out, nil
}

// fanOut runs every primary and the transit backend concurrently. Primary
// errors are collected per backend so a backup can replace them; a transit
// error is returned directly.
func (s *GeocoderService) fanOut(ctx context.Context, method domain.Method, q domain.GeocoderQuery) ([]*geojson.FeatureCollection, []error, *geojson.FeatureCollection, error) {
	results := make([]*geojson.FeatureCollection, len(s.cfg.Backends))
	errs := make([]error, len(s.cfg.Backends))
	var transit *geojson.FeatureCollection

	var g errgroup.Group
	for i, pair := range s.cfg.Backends {
		i, pair := i, pair
		g.Go(func() error {
			results[i], errs[i] = s.call(ctx, pair.Primary, method, q)
			return nil
		})
	}
	if s.cfg.Transit != nil {
		g.Go(func() error {
			fc, err := s.call(ctx, s.cfg.Transit, method, q)
			transit = fc
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return results, errs, transit, nil
}

// applyFallbacks replaces failed or unsatisfactory primary results with a live
// call to the configured backup. Backup results are used as they come. It
// returns the names of the primaries that were replaced.
func (s *GeocoderService) applyFallbacks(ctx context.Context, method domain.Method, q domain.GeocoderQuery, results []*geojson.FeatureCollection, errs []error) ([]string, error) {
	reasons := make([]string, len(results))
	for i, pair := range s.cfg.Backends {
		reasons[i] = s.fallbackReason(method, pair, results[i], errs[i], q.Text)
		if reasons[i] == "" && errs[i] != nil {
			return nil, errs[i]
		}
	}

	replaced := make([]bool, len(results))
	var g errgroup.Group
	for i, pair := range s.cfg.Backends {
		if reasons[i] == "" {
			continue
		}
		i, pair := i, pair
		g.Go(func() error {
			metrics.Fallbacks.WithLabelValues(pair.Primary.Name(), reasons[i]).Inc()
			s.logger.InfoContext(ctx, "using backup backend",
				"primary", pair.Primary.Name(),
				"backup", pair.Backup.Name(),
				"reason", reasons[i],
				"method", method,
			)
			fc, err := s.invoker.Live(ctx, pair.Backup, method, q.Clone())
			if err != nil {
				return err
			}
			results[i] = fc
			replaced[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var names []string
	for i, ok := range replaced {
		if ok {
			names = append(names, s.cfg.Backends[i].Primary.Name())
		}
	}
	return names, nil
}

// fallbackReason returns why pair's backup must be used, or "" if it must not.
func (s *GeocoderService) fallbackReason(method domain.Method, pair BackendPair, fc *geojson.FeatureCollection, err error, text string) string {
	switch {
	case pair.Backup == nil:
		return ""
	case err != nil:
		return "error"
	case method == domain.MethodReverse:
		return ""
	case !IsSatisfactory(fc, text):
		return "unsatisfactory"
	}
	return ""
}

func (s *GeocoderService) call(ctx context.Context, b ports.SearchBackend, method domain.Method, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	if method == domain.MethodReverse {
		return s.invoker.Live(ctx, b, method, q)
	}
	return s.invoker.Invoke(ctx, b, method, q)
}

func (s *GeocoderService) publish(ctx context.Context, method domain.Method, q domain.GeocoderQuery, fallbacks []string, results int, took time.Duration) {
	if s.publisher == nil {
		return
	}
	event := &domain.QueryEvent{
		Time:      time.Now().UTC(),
		Method:    method,
		Text:      q.Text,
		Focus:     q.Focus,
		Backends:  s.backendNames(),
		Fallbacks: fallbacks,
		Results:   results,
		Duration:  took,
	}
	if err := s.publisher.PublishQueryEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "publish query event failed", "error", err)
	}
}

func (s *GeocoderService) backendNames() []string {
	names := make([]string, 0, len(s.cfg.Backends)+1)
	for _, pair := range s.cfg.Backends {
		names = append(names, pair.Primary.Name())
	}
	if s.cfg.Transit != nil {
		names = append(names, s.cfg.Transit.Name())
	}
	return names
}
