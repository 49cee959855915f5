package decode

import (
	"encoding/binary"
	"testing"

	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

func payload(flags byte, impedanceRaw, userID uint16, status byte, weightRaw uint16) []byte {
	p := make([]byte, 9)
	p[0] = 0x03
	p[1] = flags
	binary.BigEndian.PutUint16(p[2:4], impedanceRaw)
	binary.BigEndian.PutUint16(p[4:6], userID)
	p[6] = status
	binary.BigEndian.PutUint16(p[7:9], weightRaw)
	return p
}

func TestPacket_TruncatedPayloads(t *testing.T) {
	for _, n := range []int{0, 1, 6} {
		if r := Packet(0xa6c0, make([]byte, n)); r != nil {
			t.Fatalf("Packet with %d bytes = %+v, want nil", n, r)
		}
	}
	// 7 and 8 bytes are valid frames on older firmware but carry no weight.
	for _, n := range []int{7, 8} {
		if r := Packet(0xa6c0, make([]byte, n)); r != nil {
			t.Fatalf("Packet with %d bytes = %+v, want nil", n, r)
		}
	}
}

func TestPacket_WeightThreshold(t *testing.T) {
	if r := Packet(0xa6c0, payload(0x40, 5019, 1, 0x21, 250)); r != nil {
		t.Fatalf("25.0 kg decoded to %+v, want nil", r)
	}
	r := Packet(0xa6c0, payload(0x40, 5019, 1, 0x21, 301))
	if r == nil {
		t.Fatal("30.1 kg decoded to nil, want reading")
	}
	if r.WeightKg != 30.1 {
		t.Fatalf("WeightKg = %v, want 30.1", r.WeightKg)
	}
}

func TestPacket_CompleteWithImpedance(t *testing.T) {
	r := Packet(0xa6c0, payload(0x40, 5019, 3, 0x21, 825))
	if r == nil {
		t.Fatal("decoded to nil")
	}
	if !r.IsComplete {
		t.Error("IsComplete = false, want true")
	}
	if !r.IsLocked {
		t.Error("IsLocked = false, want true")
	}
	if !r.HasImpedance() {
		t.Fatal("HasImpedance() = false, want true")
	}
	if got := *r.ImpedanceOhm; got != 501.9 {
		t.Errorf("ImpedanceOhm = %v, want 501.9", got)
	}
	if r.ImpedanceRaw != 5019 {
		t.Errorf("ImpedanceRaw = %d, want 5019", r.ImpedanceRaw)
	}
	if r.UserID != 3 {
		t.Errorf("UserID = %d, want 3", r.UserID)
	}
	if !CompleteWithImpedance(r) {
		t.Error("CompleteWithImpedance = false, want true")
	}
}

func TestPacket_StabilisingWithImpedanceIsIncomplete(t *testing.T) {
	// Status 0x20 with a nonzero impedance means the scale is still settling.
	r := Packet(0xa6c0, payload(0x00, 5019, 1, 0x20, 825))
	if r == nil {
		t.Fatal("decoded to nil")
	}
	if r.IsComplete {
		t.Error("IsComplete = true, want false")
	}
	if CompleteWithImpedance(r) {
		t.Error("CompleteWithImpedance = true, want false")
	}
}

func TestPacket_WeightOnlyStandIsComplete(t *testing.T) {
	// Impedance raw 0 means no plate contact; 0x20 is then the final status.
	r := Packet(0xa6c0, payload(0x00, 0, 1, 0x20, 825))
	if r == nil {
		t.Fatal("decoded to nil")
	}
	if !r.IsComplete {
		t.Error("IsComplete = false, want true")
	}
	if r.HasImpedance() {
		t.Error("HasImpedance() = true, want false")
	}
	if r.IsLocked {
		t.Error("IsLocked = true, want false")
	}
}

func TestPacket_TrailingMACBytesIgnored(t *testing.T) {
	p := append(payload(0x40, 5019, 1, 0x21, 825), 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF)
	r := Packet(0xa6c0, p)
	if r == nil {
		t.Fatal("decoded to nil")
	}
	if r.WeightKg != 82.5 {
		t.Errorf("WeightKg = %v, want 82.5", r.WeightKg)
	}
}

func TestCompleteWithImpedance_Nil(t *testing.T) {
	if CompleteWithImpedance(nil) {
		t.Error("CompleteWithImpedance(nil) = true, want false")
	}
	weightOnly := &types.ScaleReading{WeightKg: 82.5, IsComplete: true}
	if CompleteWithImpedance(weightOnly) {
		t.Error("CompleteWithImpedance(weight-only) = true, want false")
	}
}
