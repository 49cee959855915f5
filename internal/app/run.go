package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gfrmin/scalibur/internal/config"
	"github.com/gfrmin/scalibur/internal/db"
	"github.com/gfrmin/scalibur/internal/db/migrate"
	"github.com/gfrmin/scalibur/internal/httpapi"
	"github.com/gfrmin/scalibur/internal/modules/scale"
	"github.com/gfrmin/scalibur/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"scaleName", cfg.ScaleName,
		"sessionGap", cfg.SessionGap,
		"reconcileWindow", cfg.ReconcileWindow,
		"ingestInterval", cfg.IngestInterval,
	)

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

	// Set the MQTT handler before Connect so the packet handler is attached
	// before the broker replays any queued QoS 1 messages after CONNACK.
	subscriber := mqtt.NewSubscriber(cfg, slog.Default())
	mux := httpapi.NewMux(dbConn)
	pipeline := scale.RegisterFeature(mux, dbConn, subscriber, cfg.SessionGap, cfg.ReconcileWindow, slog.Default())

	// Short timeout for the initial MQTT connect so startup doesn't block
	// when the broker is down; the client keeps retrying in the background.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = subscriber.Connect(connectCtx)
	connectCancel()
	if err != nil {
		slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}

	// Periodic ingest. Runs are idempotent, so a failed run just waits for
	// the next tick; raw packets are never lost.
	go func() {
		ticker := time.NewTicker(cfg.IngestInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("scheduled ingest run failed", "error", err)
				}
			}
		}
	}()

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("mqtt disconnecting")
	subscriber.Disconnect()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
