package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gfrmin/scalibur/internal/config"
	"github.com/gfrmin/scalibur/internal/db"
	"github.com/gfrmin/scalibur/internal/db/migrate"
	"github.com/gfrmin/scalibur/internal/logging"
	"github.com/gfrmin/scalibur/internal/modules/scale/etl"
	"github.com/gfrmin/scalibur/internal/modules/scale/repository"
)

const appName = "ingest"

// Default version is "dev" if not set with -ldflags "-X main.version=..."
var version = "dev"

// One-shot ingest: replay all stored packets through the pipeline and exit.
// Useful for backfills and for cron-style deployments without the server.
func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(dbConn); err != nil {
		return err
	}

	pipeline := etl.NewPipeline(repository.NewRepository(dbConn), cfg.SessionGap, cfg.ReconcileWindow, slog.Default())
	stats, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("ingest complete",
		"run_id", stats.RunID,
		"packets_seen", stats.PacketsSeen,
		"packets_skipped", stats.PacketsSkipped,
		"sessions_found", stats.SessionsFound,
		"measurements_created", stats.MeasurementsCreated,
		"measurements_updated", stats.MeasurementsUpdated,
	)
	return nil
}
