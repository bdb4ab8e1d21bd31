package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/postgres"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/config"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/gtfs"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/logging"
)

// Manifest lists the GTFS feeds whose stops feed the transit backend.
type Manifest struct {
	Source   string        `json:"source"`
	Agencies []AgencyEntry `json:"agencies"`
}

type AgencyEntry struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	GTFSURL string `json:"gtfs_url"`
}

// maxFeedSize caps a downloaded GTFS archive.
const maxFeedSize = 512 << 20

func main() {
	cfg, err := config.Load("geocoder-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("stop ingestion starting", "agencies", len(manifest.Agencies), "source", manifest.Source)

	// Filter agencies (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	backend := postgres.NewStopBackend(db, cfg.Geocoder.Transit.Name, cfg.Geocoder.Transit.ReverseRadius)
	client := &http.Client{Timeout: 120 * time.Second}

	var g errgroup.Group
	g.SetLimit(4) // max 4 concurrent downloads

	for _, agency := range manifest.Agencies {
		if len(slugFilter) > 0 && !slugFilter[agency.Slug] {
			continue
		}
		agency := agency
		g.Go(func() error {
			if err := ingestAgency(ctx, backend, client, agency); err != nil {
				slog.Error("agency ingestion failed", "agency", agency.Slug, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	total, err := backend.CountStops(ctx)
	if err != nil {
		log.Fatalf("count stops: %v", err)
	}
	slog.Info("ingestion complete", "stops", total)
}

func ingestAgency(ctx context.Context, backend *postgres.StopBackend, client *http.Client, agency AgencyEntry) error {
	logger := slog.With("agency", agency.Slug)
	logger.Info("downloading GTFS", "url", agency.GTFSURL)

	body, err := download(ctx, client, agency.GTFSURL)
	if err != nil {
		return err
	}

	zr, err := gtfs.OpenZip(body)
	if err != nil {
		return err
	}

	stops, err := gtfs.ReadStops(zr, agency.Slug)
	if err != nil {
		return err
	}

	if err := backend.UpsertStops(ctx, stops); err != nil {
		return fmt.Errorf("upsert stops: %w", err)
	}

	logger.Info("stops ingested", "stops", len(stops))
	return nil
}

func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
