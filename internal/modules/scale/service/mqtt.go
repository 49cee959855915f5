// Package service wires the scale module into the MQTT packet stream: every
// valid report from the scanner becomes one appended raw packet. The log is
// append-only; decoding and reconciliation are ingest's job.
package service

import (
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/gfrmin/scalibur/internal/modules/scale/repository"
	"github.com/gfrmin/scalibur/internal/mqtt"
	"github.com/gfrmin/scalibur/internal/wire"
)

func RegisterMQTTHandler(subscriber mqtt.PacketSubscriber, repo repository.ScaleRepository, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(report wire.PacketReport) error {
		logger.Debug("processing packet report",
			"scale_name", report.ScaleName,
			"timestamp", report.Timestamp,
		)

		payload, err := hex.DecodeString(report.PayloadHex)
		if err != nil {
			return fmt.Errorf("decode payload hex: %w", err)
		}

		id, err := repo.AppendRawPacket(report.Timestamp, report.ManufacturerID, payload)
		if err != nil {
			logger.Error("failed to append raw packet",
				"scale_name", report.ScaleName,
				"error", err,
			)
			return err
		}

		logger.Debug("raw packet stored", "id", id, "scale_name", report.ScaleName)
		return nil
	})
}
