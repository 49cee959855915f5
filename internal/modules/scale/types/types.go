package types

import "time"

// Gender selects the coefficient set for the body-composition formulas.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// RawPacket is one captured BLE advertisement. The log is append-only; packets
// are never mutated or deleted once stored.
type RawPacket struct {
	ID             int64     `json:"id"`
	Time           time.Time `json:"time"`
	ManufacturerID uint16    `json:"manufacturer_id"`
	Payload        []byte    `json:"-"`
}

// ScaleReading is one decoded advertisement. Ephemeral: readings are derived
// from a RawPacket during ingest and never persisted directly.
type ScaleReading struct {
	WeightKg     float64
	ImpedanceRaw uint16
	ImpedanceOhm *float64
	UserID       uint16
	IsComplete   bool
	IsLocked     bool
}

// HasImpedance reports whether the scale measured impedance for this reading
// (the user was in contact with the electrode plates).
func (r ScaleReading) HasImpedance() bool {
	return r.ImpedanceOhm != nil
}

// Profile is a stored user profile. Profiles are maintained elsewhere and are
// read-only to the ingest pipeline.
type Profile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	HeightCm    int    `json:"height_cm"`
	Age         int    `json:"age"`
	Gender      Gender `json:"gender"`
	ScaleUserID *uint16 `json:"scale_user_id,omitempty"`

	// Legacy weight-range bounds from before the scale reported user IDs.
	// Kept for old rows; matching uses ScaleUserID only.
	MinWeightKg *float64 `json:"min_weight_kg,omitempty"`
	MaxWeightKg *float64 `json:"max_weight_kg,omitempty"`
}

// BodyComposition holds the derived metrics for one reading. All values are
// rounded to one decimal except BMRKcal, which is a whole number.
type BodyComposition struct {
	BodyFatPct   float64 `json:"body_fat_pct"`
	FatMassKg    float64 `json:"fat_mass_kg"`
	LeanMassKg   float64 `json:"lean_mass_kg"`
	BodyWaterPct float64 `json:"body_water_pct"`
	MuscleMassKg float64 `json:"muscle_mass_kg"`
	BoneMassKg   float64 `json:"bone_mass_kg"`
	BMRKcal      int     `json:"bmr_kcal"`
	BMI          float64 `json:"bmi"`
}

// Measurement is the durable record of one physical weigh-in. Optional columns
// map to nil pointers: a weight-only measurement has no impedance and no
// composition, and an unmatched one has no profile.
type Measurement struct {
	ID           int64     `json:"id"`
	Time         time.Time `json:"time"`
	ProfileID    *int64    `json:"profile_id,omitempty"`
	ProfileName  *string   `json:"profile_name,omitempty"`
	WeightKg     float64   `json:"weight_kg"`
	ImpedanceRaw *int64    `json:"impedance_raw,omitempty"`
	ImpedanceOhm *float64  `json:"impedance_ohm,omitempty"`

	BodyFatPct   *float64 `json:"body_fat_pct,omitempty"`
	FatMassKg    *float64 `json:"fat_mass_kg,omitempty"`
	LeanMassKg   *float64 `json:"lean_mass_kg,omitempty"`
	BodyWaterPct *float64 `json:"body_water_pct,omitempty"`
	MuscleMassKg *float64 `json:"muscle_mass_kg,omitempty"`
	BoneMassKg   *float64 `json:"bone_mass_kg,omitempty"`
	BMRKcal      *int     `json:"bmr_kcal,omitempty"`
	BMI          *float64 `json:"bmi,omitempty"`
}

// Stats summarises one ingest run.
type Stats struct {
	RunID               string `json:"run_id"`
	PacketsSeen         int    `json:"packets_seen"`
	PacketsSkipped      int    `json:"packets_skipped"`
	SessionsFound       int    `json:"sessions_found"`
	MeasurementsCreated int    `json:"measurements_created"`
	MeasurementsUpdated int    `json:"measurements_updated"`
}
