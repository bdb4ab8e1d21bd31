// Package bootstrap assembles the geocoder orchestrator from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/backends"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/ports"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/config"
)

// Options carries the optional collaborators of the orchestrator. Leave a
// field nil to run without it; never store a typed nil pointer in them.
type Options struct {
	Transit   ports.SearchBackend
	Cache     ports.CacheService
	Publisher ports.EventPublisher
	Logger    *slog.Logger
}

// Geocoder builds the configured search backends and their backups and
// returns the orchestrator with the request defaults it should be fed.
func Geocoder(cfg config.GeocoderConfig, opts Options) (*usecases.GeocoderService, usecases.QueryDefaults, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pairs := make([]usecases.BackendPair, 0, len(cfg.Backends))
	for i, bc := range cfg.Backends {
		primary, err := backends.New(bc, logger)
		if err != nil {
			return nil, usecases.QueryDefaults{}, fmt.Errorf("backend %d: %w", i, err)
		}
		pair := usecases.BackendPair{Primary: primary}

		if backup, ok := cfg.BackupFor(i); ok {
			pair.Backup, err = backends.New(backup, logger)
			if err != nil {
				return nil, usecases.QueryDefaults{}, fmt.Errorf("backup %d: %w", i, err)
			}
		}
		pairs = append(pairs, pair)
		logger.Info("search backend configured", "backend", primary.Name(), "type", bc.Type, "has_backup", pair.Backup != nil)
	}

	svc, err := usecases.NewGeocoderService(usecases.GeocoderConfig{
		Backends: pairs,
		Transit:  opts.Transit,
		Filter:   usecases.NewDuplicateFilter(cfg.DistanceThreshold, cfg.TransitCategoryPrefixes),
	}, usecases.NewInvoker(opts.Cache, cfg.CacheTTL, logger), opts.Publisher, logger)
	if err != nil {
		return nil, usecases.QueryDefaults{}, err
	}

	return svc, usecases.QueryDefaults{Size: cfg.DefaultSize, Layers: cfg.DefaultLayers}, nil
}
