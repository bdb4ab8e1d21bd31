package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/samirrijal/bilbopass-geocoder/internal/adapters/postgres"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/config"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("geocoder-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 1)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		files, err := upFiles()
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		run(ctx, db, files)
	case "down":
		run(ctx, db, []string{"migrations/down.sql"})
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// upFiles lists numbered migrations in order.
func upFiles() ([]string, error) {
	entries, err := fs.Glob(migrations, "migrations/[0-9]*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	return entries, nil
}

func run(ctx context.Context, db *postgres.DB, files []string) {
	for _, f := range files {
		data, err := migrations.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		slog.Info("migration applied", "file", strings.TrimPrefix(f, "migrations/"))
	}

	slog.Info("all migrations applied", "count", len(files))
}
