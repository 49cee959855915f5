// Package wire holds the message types shared by the scanner and the server.
package wire

import "time"

// PacketReport is one captured scale advertisement as published over MQTT.
// The payload travels hex-encoded so the JSON stays greppable in broker logs.
type PacketReport struct {
	ScaleName      string    `json:"scale_name"`
	Timestamp      time.Time `json:"timestamp"`
	ManufacturerID uint16    `json:"manufacturer_id"`
	PayloadHex     string    `json:"payload_hex"`
}
