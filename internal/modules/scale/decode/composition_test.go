package decode

import (
	"math"
	"testing"

	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

func hasOneDecimal(v float64) bool {
	return math.Abs(v*10-math.Round(v*10)) < 1e-9
}

func TestBodyComposition_MaleRoundTrip(t *testing.T) {
	c := BodyComposition(82.5, 501.9, 173, 43, types.GenderMale)

	if diff := math.Abs(c.FatMassKg + c.LeanMassKg - 82.5); diff > 0.1 {
		t.Errorf("fat %v + lean %v = %v, want 82.5 within 0.1", c.FatMassKg, c.LeanMassKg, c.FatMassKg+c.LeanMassKg)
	}

	for name, v := range map[string]float64{
		"BodyFatPct":   c.BodyFatPct,
		"FatMassKg":    c.FatMassKg,
		"LeanMassKg":   c.LeanMassKg,
		"BodyWaterPct": c.BodyWaterPct,
		"MuscleMassKg": c.MuscleMassKg,
		"BoneMassKg":   c.BoneMassKg,
		"BMI":          c.BMI,
	} {
		if !hasOneDecimal(v) {
			t.Errorf("%s = %v, want at most 1 decimal digit", name, v)
		}
	}

	if c.LeanMassKg != 62.1 {
		t.Errorf("LeanMassKg = %v, want 62.1", c.LeanMassKg)
	}
	if c.BodyFatPct != 24.7 {
		t.Errorf("BodyFatPct = %v, want 24.7", c.BodyFatPct)
	}
	if c.BMRKcal != 1779 {
		t.Errorf("BMRKcal = %d, want 1779", c.BMRKcal)
	}
	if c.BMI != 27.6 {
		t.Errorf("BMI = %v, want 27.6", c.BMI)
	}
}

func TestBodyComposition_FemaleCoefficients(t *testing.T) {
	c := BodyComposition(60.0, 480.0, 165, 35, types.GenderFemale)

	// 0.474*165^2/480 + 0.180*60 + 5.03
	wantLean := math.Round((0.474*27225/480+0.180*60+5.03)*10) / 10
	if c.LeanMassKg != wantLean {
		t.Errorf("LeanMassKg = %v, want %v", c.LeanMassKg, wantLean)
	}

	// 447.6 + 9.2*60 + 3.1*165 - 4.3*35
	if want := int(math.Round(447.6 + 9.2*60 + 3.1*165 - 4.3*35)); c.BMRKcal != want {
		t.Errorf("BMRKcal = %d, want %d", c.BMRKcal, want)
	}
}

func TestBodyComposition_BoneMassCapped(t *testing.T) {
	// Tall and very high impedance keeps lean mass low enough that the
	// anthropometric bone estimate exceeds the 5% cap.
	c := BodyComposition(90.0, 1200.0, 190, 50, types.GenderMale)

	lean := 0.485*(190.0*190.0/1200.0) + 0.338*90.0 + 5.32
	wantBone := math.Round(lean * 0.05 * 10) / 10
	if c.BoneMassKg != wantBone {
		t.Errorf("BoneMassKg = %v, want cap %v", c.BoneMassKg, wantBone)
	}
}
