package decode

import (
	"math"

	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

// BodyComposition estimates body composition from a single bioelectrical
// impedance measurement, using openScale-compatible coefficients. The caller
// must only invoke it with an impedance reading and a matched profile; any
// finite positive inputs produce a result.
func BodyComposition(weightKg, impedanceOhm float64, heightCm, age int, gender types.Gender) types.BodyComposition {
	heightSq := float64(heightCm) * float64(heightCm)

	var leanMassKg float64
	if gender == types.GenderMale {
		leanMassKg = 0.485*(heightSq/impedanceOhm) + 0.338*weightKg + 5.32
	} else {
		leanMassKg = 0.474*(heightSq/impedanceOhm) + 0.180*weightKg + 5.03
	}

	fatMassKg := weightKg - leanMassKg
	bodyFatPct := fatMassKg / weightKg * 100

	bodyWaterPct := leanMassKg * 0.73 / weightKg * 100
	muscleMassKg := leanMassKg * 0.9

	heightM := float64(heightCm) / 100
	boneMassKg := 0.18 * heightM * heightM * 22
	if gender != types.GenderMale {
		boneMassKg = 0.18 * heightM * heightM * 20
	}
	// Bone mass cannot plausibly exceed 5% of lean mass.
	boneMassKg = math.Min(boneMassKg, leanMassKg*0.05)

	// Mifflin-St Jeor.
	var bmr float64
	if gender == types.GenderMale {
		bmr = 88.36 + 13.4*weightKg + 4.8*float64(heightCm) - 5.7*float64(age)
	} else {
		bmr = 447.6 + 9.2*weightKg + 3.1*float64(heightCm) - 4.3*float64(age)
	}

	bmi := weightKg / (heightM * heightM)

	return types.BodyComposition{
		BodyFatPct:   round1(bodyFatPct),
		FatMassKg:    round1(fatMassKg),
		LeanMassKg:   round1(leanMassKg),
		BodyWaterPct: round1(bodyWaterPct),
		MuscleMassKg: round1(muscleMassKg),
		BoneMassKg:   round1(boneMassKg),
		BMRKcal:      int(math.Round(bmr)),
		BMI:          round1(bmi),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
