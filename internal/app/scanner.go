package app

import (
	"context"
	"log/slog"

	"github.com/gfrmin/scalibur/internal/ble"
	"github.com/gfrmin/scalibur/internal/config"
	"github.com/gfrmin/scalibur/internal/mqtt"
)

// RunScanner captures the scale's BLE advertisements and forwards them to the
// broker. It owns no storage; the server side reconstructs sessions from the
// raw stream.
func RunScanner(ctx context.Context, cfg config.Config) error {
	slog.Info("initializing scanner",
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
		"scale_name", cfg.ScaleName,
		"ble_adapter", cfg.BLEAdapter,
	)

	mqttClient, err := mqtt.NewClient(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect()

	go func() {
		// Connect to MQTT broker with retry and backoff
		if err := mqttClient.Connect(ctx); err != nil {
			slog.Error("mqtt connect failed", "error", err)
		}
	}()

	listener := ble.NewListener(ble.Options{
		Adapter: cfg.BLEAdapter,
		Filter: ble.Filter{
			LocalName: cfg.ScaleName,
			CompanyID: cfg.ScaleCompanyID,
		},
	})
	handler := ble.NewPacketHandler(mqttClient, cfg.ScaleName)
	handler.StartListener(ctx, listener)

	<-ctx.Done()

	slog.Info("scanner shutting down")
	return nil
}
