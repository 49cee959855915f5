package ble

import (
	"context"
	"log/slog"

	"github.com/gfrmin/scalibur/internal/mqtt"
	"github.com/gfrmin/scalibur/internal/utils"
	"github.com/gfrmin/scalibur/internal/wire"
)

// PacketHandler forwards every matched advertisement to MQTT as a raw packet
// report. No deduplication: the scale repeats its broadcast many times per
// weigh-in and the ingest pipeline needs the repeats to reconstruct sessions.
type PacketHandler struct {
	mqttClient *mqtt.Client
	scaleName  string
}

func NewPacketHandler(mqttClient *mqtt.Client, scaleName string) *PacketHandler {
	return &PacketHandler{mqttClient: mqttClient, scaleName: scaleName}
}

// HandleMatch publishes one observed advertisement.
func (h *PacketHandler) HandleMatch(m Match) {
	report := wire.PacketReport{
		ScaleName:      h.scaleName,
		Timestamp:      m.SeenAt,
		ManufacturerID: m.CompanyID,
		PayloadHex:     utils.BytesToHex(m.Data),
	}
	if err := h.mqttClient.PublishPacket(report); err != nil {
		slog.Warn("ble: failed to publish packet", "addr", m.Address, "error", err)
		return
	}
	slog.Debug("ble: packet published",
		"addr", m.Address,
		"rssi", m.RSSI,
		"company", utils.Hex4(m.CompanyID),
		"data", report.PayloadHex,
	)
}

// StartListener starts the BLE listener with this handler.
func (h *PacketHandler) StartListener(ctx context.Context, listener *Listener) {
	go func() {
		if err := listener.Run(ctx, h.HandleMatch); err != nil {
			slog.Error("ble listener stopped", "error", err)
		}
	}()
}
