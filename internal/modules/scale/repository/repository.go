package repository

import (
	"context"
	"database/sql"
	"encoding/hex"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

//go:embed sql/append-raw-packet.sql
var appendRawPacketSQL string

//go:embed sql/list-raw-packets.sql
var listRawPacketsSQL string

//go:embed sql/list-profiles.sql
var listProfilesSQL string

//go:embed sql/find-measurement-near.sql
var findMeasurementNearSQL string

//go:embed sql/insert-measurement.sql
var insertMeasurementSQL string

//go:embed sql/update-measurement.sql
var updateMeasurementSQL string

//go:embed sql/list-measurements.sql
var listMeasurementsSQL string

// storedTimeFormat is RFC3339 UTC with a fixed nine-digit fraction. The fixed
// width keeps lexicographic ORDER BY over the TEXT columns chronological even
// when a timestamp lands exactly on a whole second.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// MeasurementStore is the transaction-scoped view the reconciliation engine
// writes through. All three calls made during one ingest run happen inside a
// single transaction obtained from Reconcile.
type MeasurementStore interface {
	FindMeasurementNear(ts time.Time, window time.Duration) (*types.Measurement, error)
	InsertMeasurement(m types.Measurement) (int64, error)
	UpdateMeasurement(id int64, m types.Measurement) error
}

type ScaleRepository interface {
	AppendRawPacket(ts time.Time, manufacturerID uint16, payload []byte) (int64, error)
	ListRawPackets() ([]types.RawPacket, error)
	ListProfiles() ([]types.Profile, error)
	ListMeasurements(limit int, profileID *int64) ([]types.Measurement, error)
	LatestMeasurement(profileID *int64) (*types.Measurement, error)

	// Reconcile runs fn inside one write transaction. fn's writes either all
	// commit or none do; on error the transaction is rolled back.
	Reconcile(ctx context.Context, fn func(MeasurementStore) error) error
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ScaleRepository {
	return &repositoryImpl{db: db}
}

// IsBusy reports whether err is a SQLite busy/locked condition, i.e. another
// writer held the database. Callers may retry the whole transaction.
func IsBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

func (r *repositoryImpl) AppendRawPacket(ts time.Time, manufacturerID uint16, payload []byte) (int64, error) {
	res, err := r.db.Exec(appendRawPacketSQL,
		ts.UTC().Format(storedTimeFormat),
		int64(manufacturerID),
		hex.EncodeToString(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("append raw packet: %w", err)
	}
	return res.LastInsertId()
}

func (r *repositoryImpl) ListRawPackets() ([]types.RawPacket, error) {
	rows, err := r.db.Query(listRawPacketsSQL)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "raw packets")

	var out []types.RawPacket
	for rows.Next() {
		var (
			p          types.RawPacket
			ts         string
			mfgID      int64
			payloadHex string
		)
		if err := rows.Scan(&p.ID, &ts, &mfgID, &payloadHex); err != nil {
			return nil, err
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		payload, err := hex.DecodeString(payloadHex)
		if err != nil {
			return nil, fmt.Errorf("packet %d payload: %w", p.ID, err)
		}
		p.Time = t
		p.ManufacturerID = uint16(mfgID)
		p.Payload = payload
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) ListProfiles() ([]types.Profile, error) {
	rows, err := r.db.Query(listProfilesSQL)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "profiles")

	var out []types.Profile
	for rows.Next() {
		var (
			p           types.Profile
			heightCm    sql.NullInt64
			age         sql.NullInt64
			gender      sql.NullString
			scaleUserID sql.NullInt64
			minWeight   sql.NullFloat64
			maxWeight   sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.Name, &heightCm, &age, &gender, &scaleUserID, &minWeight, &maxWeight); err != nil {
			return nil, err
		}
		p.HeightCm = int(heightCm.Int64)
		p.Age = int(age.Int64)
		p.Gender = types.Gender(gender.String)
		if scaleUserID.Valid {
			id := uint16(scaleUserID.Int64)
			p.ScaleUserID = &id
		}
		if minWeight.Valid {
			p.MinWeightKg = &minWeight.Float64
		}
		if maxWeight.Valid {
			p.MaxWeightKg = &maxWeight.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) ListMeasurements(limit int, profileID *int64) ([]types.Measurement, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(listMeasurementsSQL, nullableID(profileID), limit)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "measurements")

	var out []types.Measurement
	for rows.Next() {
		m, err := scanMeasurementWithName(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) LatestMeasurement(profileID *int64) (*types.Measurement, error) {
	ms, err := r.ListMeasurements(1, profileID)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, nil
	}
	return &ms[0], nil
}

func (r *repositoryImpl) Reconcile(ctx context.Context, fn func(MeasurementStore) error) error {
	// The DSN sets _txlock=immediate so the write lock is taken up front:
	// two concurrent ingest runs serialise here instead of both deciding to
	// insert for the same session.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconcile tx: %w", err)
	}
	if err := fn(&txStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("reconcile rollback", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconcile tx: %w", err)
	}
	return nil
}

// txStore implements MeasurementStore over one open transaction.
type txStore struct {
	tx *sql.Tx
}

func (s *txStore) FindMeasurementNear(ts time.Time, window time.Duration) (*types.Measurement, error) {
	tsStr := ts.UTC().Format(storedTimeFormat)
	windowSec := int64(window / time.Second)
	row := s.tx.QueryRow(findMeasurementNearSQL, tsStr, windowSec, tsStr)
	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *txStore) InsertMeasurement(m types.Measurement) (int64, error) {
	res, err := s.tx.Exec(insertMeasurementSQL,
		m.Time.UTC().Format(storedTimeFormat),
		nullableID(m.ProfileID),
		m.WeightKg,
		nullableID(m.ImpedanceRaw),
		nullableFloat(m.ImpedanceOhm),
		nullableFloat(m.BodyFatPct),
		nullableFloat(m.FatMassKg),
		nullableFloat(m.LeanMassKg),
		nullableFloat(m.BodyWaterPct),
		nullableFloat(m.MuscleMassKg),
		nullableFloat(m.BoneMassKg),
		nullableInt(m.BMRKcal),
		nullableFloat(m.BMI),
	)
	if err != nil {
		return 0, fmt.Errorf("insert measurement: %w", err)
	}
	return res.LastInsertId()
}

func (s *txStore) UpdateMeasurement(id int64, m types.Measurement) error {
	_, err := s.tx.Exec(updateMeasurementSQL,
		nullableID(m.ProfileID),
		m.WeightKg,
		nullableID(m.ImpedanceRaw),
		nullableFloat(m.ImpedanceOhm),
		nullableFloat(m.BodyFatPct),
		nullableFloat(m.FatMassKg),
		nullableFloat(m.LeanMassKg),
		nullableFloat(m.BodyWaterPct),
		nullableFloat(m.MuscleMassKg),
		nullableFloat(m.BoneMassKg),
		nullableInt(m.BMRKcal),
		nullableFloat(m.BMI),
		id,
	)
	if err != nil {
		return fmt.Errorf("update measurement %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(row rowScanner) (types.Measurement, error) {
	var (
		m         types.Measurement
		ts        string
		profileID sql.NullInt64
		impRaw    sql.NullInt64
		bmrKcal   sql.NullInt64
	)
	err := row.Scan(&m.ID, &ts, &profileID, &m.WeightKg, &impRaw, &m.ImpedanceOhm,
		&m.BodyFatPct, &m.FatMassKg, &m.LeanMassKg, &m.BodyWaterPct,
		&m.MuscleMassKg, &m.BoneMassKg, &bmrKcal, &m.BMI)
	if err != nil {
		return types.Measurement{}, err
	}
	return finishMeasurement(m, ts, profileID, impRaw, bmrKcal)
}

func scanMeasurementWithName(row rowScanner) (types.Measurement, error) {
	var (
		m           types.Measurement
		ts          string
		profileID   sql.NullInt64
		profileName sql.NullString
		impRaw      sql.NullInt64
		bmrKcal     sql.NullInt64
	)
	err := row.Scan(&m.ID, &ts, &profileID, &profileName, &m.WeightKg, &impRaw, &m.ImpedanceOhm,
		&m.BodyFatPct, &m.FatMassKg, &m.LeanMassKg, &m.BodyWaterPct,
		&m.MuscleMassKg, &m.BoneMassKg, &bmrKcal, &m.BMI)
	if err != nil {
		return types.Measurement{}, err
	}
	if profileName.Valid {
		m.ProfileName = &profileName.String
	}
	return finishMeasurement(m, ts, profileID, impRaw, bmrKcal)
}

func finishMeasurement(m types.Measurement, ts string, profileID, impRaw, bmrKcal sql.NullInt64) (types.Measurement, error) {
	t, err := parseTime(ts)
	if err != nil {
		return types.Measurement{}, err
	}
	m.Time = t
	if profileID.Valid {
		m.ProfileID = &profileID.Int64
	}
	if impRaw.Valid {
		m.ImpedanceRaw = &impRaw.Int64
	}
	if bmrKcal.Valid {
		kcal := int(bmrKcal.Int64)
		m.BMRKcal = &kcal
	}
	return m, nil
}

func parseTime(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, ts)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", ts, err, err2)
		}
	}
	return t, nil
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close rows", "what", what, "error", err)
	}
}
