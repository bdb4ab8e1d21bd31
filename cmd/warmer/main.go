package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/bilbopass-geocoder/internal/adapters/nats"
	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/postgres"
	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/valkey"
	"github.com/samirrijal/bilbopass-geocoder/internal/bootstrap"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/config"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/logging"
	"github.com/samirrijal/bilbopass-geocoder/internal/workflows"
)

func main() {
	cfg, err := config.Load("geocoder-warmer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Warming needs somewhere to warm into.
	cache, err := valkey.New(cfg.Valkey.Addr, "")
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	opts := bootstrap.Options{Cache: cache, Logger: logger}
	if cfg.Geocoder.Transit.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		opts.Transit = postgres.NewStopBackend(db, cfg.Geocoder.Transit.Name, cfg.Geocoder.Transit.ReverseRadius)
	}

	// No publisher: warm runs must not count as traffic.
	geocoder, defaults, err := bootstrap.Geocoder(cfg.Geocoder, opts)
	if err != nil {
		log.Fatalf("geocoder: %v", err)
	}

	// Hot queries from the API's event stream
	hot := workflows.NewHotQueries()
	if cfg.NATS.Enabled {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, warming static queries only", "error", err)
		} else {
			defer sub.Close()
			err := sub.SubscribeQueryEvents(ctx, "geocoder-warmer", func(_ context.Context, e *domain.QueryEvent) error {
				hot.Record(e)
				return nil
			})
			if err != nil {
				log.Fatalf("subscribe query events: %v", err)
			}
		}
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.CacheWarmWorkflow)
	w.RegisterActivity(&workflows.WarmActivities{Geocoder: geocoder})

	if err := w.Start(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer w.Stop()

	interval := time.Duration(cfg.Geocoder.WarmInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	slog.Info("cache warmer started", "task_queue", cfg.Temporal.TaskQueue, "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		input := workflows.BuildWarmInput(cfg.Geocoder.WarmQueries, hot.Drain(cfg.Geocoder.WarmHotLimit), defaults)
		if len(input.Queries) > 0 {
			startRun(ctx, c, cfg.Temporal.TaskQueue, input)
		}

		select {
		case <-ctx.Done():
			slog.Info("cache warmer stopping")
			return
		case <-ticker.C:
		}
	}
}

func startRun(ctx context.Context, c client.Client, taskQueue string, input workflows.CacheWarmInput) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("cache-warm-%d", time.Now().Unix()),
		TaskQueue: taskQueue,
	}, workflows.CacheWarmWorkflow, input)
	if err != nil {
		slog.Error("start cache warm workflow", "error", err)
		return
	}
	slog.Info("cache warm workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "queries", len(input.Queries))
}
