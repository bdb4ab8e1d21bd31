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

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/http"
	natsadapter "github.com/samirrijal/bilbopass-geocoder/internal/adapters/nats"
	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/postgres"
	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/valkey"
	"github.com/samirrijal/bilbopass-geocoder/internal/bootstrap"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/config"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/logging"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("geocoder-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{Version: version}
	opts := bootstrap.Options{Logger: logger}

	// Database (transit stop backend)
	if cfg.Geocoder.Transit.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()

		opts.Transit = postgres.NewStopBackend(db, cfg.Geocoder.Transit.Name, cfg.Geocoder.Transit.ReverseRadius)
		deps.DB = db
	}

	// Cache
	if cfg.Valkey.Enabled {
		cache, err := valkey.New(cfg.Valkey.Addr, "")
		if err != nil {
			slog.Warn("valkey unavailable, serving uncached", "error", err)
		} else {
			defer cache.Close()
			opts.Cache = cache
			deps.Cache = cache
		}
	}

	// NATS query events
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, query events disabled", "error", err)
		} else {
			defer pub.Close()
			opts.Publisher = pub
			deps.NATS = pub.Conn()
		}
	}

	geocoder, defaults, err := bootstrap.Geocoder(cfg.Geocoder, opts)
	if err != nil {
		log.Fatalf("geocoder: %v", err)
	}
	deps.Geocoder = geocoder
	deps.Defaults = defaults

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // queries are small
		AppName:      "BilboPass Geocoder",
	})
	app.Use(recover.New())

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("geocoder API starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
