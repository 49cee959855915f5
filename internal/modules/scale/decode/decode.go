// Package decode turns raw scale advertisements into readings and derives
// body-composition metrics from them. Everything here is pure: no clock, no
// store, same input always gives the same output.
package decode

import (
	"encoding/binary"

	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

// Advertisement payload layout for the payload-weight firmware revision.
// The manufacturer ID field is a plain company identifier on this revision
// and carries no measurement data.
//
//	byte 0:    packet type
//	byte 1:    flags; bit 0x40 set once the scale has latched the value
//	bytes 2-3: impedance raw (big-endian), tenths of an ohm, 0 = no contact
//	bytes 4-5: scale user ID (big-endian)
//	byte 6:    status; 0x21 = complete with impedance, 0x20 otherwise
//	bytes 7-8: weight raw (big-endian), tenths of a kilogram
//	bytes 9+:  device MAC, ignored
const (
	flagLocked = 0x40

	statusComplete    = 0x21
	statusStabilising = 0x20

	minPayloadLen    = 7
	weightPayloadLen = 9

	// Readings below this are noise from partial or malformed frames; the
	// scale cannot weigh anything lighter.
	minPlausibleWeightKg = 30.0
)

// Packet decodes a single advertisement payload. It returns nil when the
// payload is not a usable scale reading: truncated frames, frames without the
// weight field, and implausibly low weights are all rejected.
func Packet(manufacturerID uint16, payload []byte) *types.ScaleReading {
	if len(payload) < minPayloadLen {
		return nil
	}
	if len(payload) < weightPayloadLen {
		// Frame from a firmware revision without the payload weight field.
		return nil
	}

	weightKg := float64(binary.BigEndian.Uint16(payload[7:9])) / 10
	if weightKg < minPlausibleWeightKg {
		return nil
	}

	impedanceRaw := binary.BigEndian.Uint16(payload[2:4])
	var impedanceOhm *float64
	if impedanceRaw > 0 {
		ohm := float64(impedanceRaw) / 10
		impedanceOhm = &ohm
	}

	status := payload[6]
	// 0x21 is a finished measurement with impedance. 0x20 means the scale is
	// still stabilising while impedance is being measured, but is the final
	// state for a weight-only stand (no plate contact, impedance stays zero).
	isComplete := status == statusComplete ||
		(status == statusStabilising && impedanceOhm == nil)

	return &types.ScaleReading{
		WeightKg:     weightKg,
		ImpedanceRaw: impedanceRaw,
		ImpedanceOhm: impedanceOhm,
		UserID:       binary.BigEndian.Uint16(payload[4:6]),
		IsComplete:   isComplete,
		IsLocked:     payload[1]&flagLocked != 0,
	}
}

// CompleteWithImpedance reports whether a payload carries a finished
// measurement that includes impedance. Session selection prefers these over
// weight-only readings.
func CompleteWithImpedance(r *types.ScaleReading) bool {
	return r != nil && r.IsComplete && r.HasImpedance()
}
