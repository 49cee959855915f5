package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/gfrmin/scalibur/internal/db/migrate"
	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrate.Run(db))
	return db
}

func insertProfile(t *testing.T, db *sql.DB, name string, heightCm, age int, gender string, scaleUserID int) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO profiles (name, height_cm, age, gender, scale_user_id) VALUES (?, ?, ?, ?, ?)`,
		name, heightCm, age, gender, scaleUserID,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestAppendAndListRawPackets(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)
	payload := []byte{0x03, 0x40, 0x13, 0x9b, 0x00, 0x01, 0x21, 0x03, 0x39}

	// Insert out of order; listing must come back in timestamp order.
	_, err := repo.AppendRawPacket(base.Add(5*time.Second), 0xa6c0, payload)
	require.NoError(t, err)
	_, err = repo.AppendRawPacket(base, 0xa6c0, payload)
	require.NoError(t, err)

	packets, err := repo.ListRawPackets()
	require.NoError(t, err)
	require.Len(t, packets, 2)
	require.True(t, packets[0].Time.Equal(base), "first packet ts = %v, want %v", packets[0].Time, base)
	require.Equal(t, uint16(0xa6c0), packets[0].ManufacturerID)
	require.Equal(t, payload, packets[0].Payload)
}

func TestListRawPackets_SubsecondOrdering(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)

	// A whole-second timestamp and a fractional one inside the same second:
	// the stored TEXT must still sort chronologically.
	base := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)
	mid := base.Add(500 * time.Millisecond)

	_, err := repo.AppendRawPacket(mid, 0xa6c0, []byte{0x01})
	require.NoError(t, err)
	_, err = repo.AppendRawPacket(base, 0xa6c0, []byte{0x02})
	require.NoError(t, err)

	packets, err := repo.ListRawPackets()
	require.NoError(t, err)
	require.Len(t, packets, 2)
	require.True(t, packets[0].Time.Equal(base), "first = %v, want %v", packets[0].Time, base)
	require.True(t, packets[1].Time.Equal(mid), "second = %v, want %v", packets[1].Time, mid)
}

func TestListProfiles(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)

	insertProfile(t, db, "gal", 173, 43, "male", 3)
	_, err := db.Exec(`INSERT INTO profiles (name) VALUES ('guest')`)
	require.NoError(t, err)

	profiles, err := repo.ListProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	require.Equal(t, "gal", profiles[0].Name)
	require.Equal(t, 173, profiles[0].HeightCm)
	require.Equal(t, types.GenderMale, profiles[0].Gender)
	require.NotNil(t, profiles[0].ScaleUserID)
	require.Equal(t, uint16(3), *profiles[0].ScaleUserID)

	// Profile rows may have every optional column NULL.
	require.Equal(t, "guest", profiles[1].Name)
	require.Nil(t, profiles[1].ScaleUserID)
	require.Zero(t, profiles[1].HeightCm)
}

func TestReconcile_InsertFindUpdate(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ts := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)
	profileID := insertProfile(t, db, "gal", 173, 43, "male", 3)

	var insertedID int64
	err := repo.Reconcile(ctx, func(store MeasurementStore) error {
		var err error
		insertedID, err = store.InsertMeasurement(types.Measurement{
			Time:      ts,
			ProfileID: &profileID,
			WeightKg:  82.4,
		})
		return err
	})
	require.NoError(t, err)
	require.NotZero(t, insertedID)

	err = repo.Reconcile(ctx, func(store MeasurementStore) error {
		// 10 seconds away: inside the window.
		found, err := store.FindMeasurementNear(ts.Add(10*time.Second), 30*time.Second)
		require.NoError(t, err)
		require.NotNil(t, found)
		require.Equal(t, insertedID, found.ID)
		require.Nil(t, found.ImpedanceOhm)

		// Far away: nothing.
		far, err := store.FindMeasurementNear(ts.Add(5*time.Minute), 30*time.Second)
		require.NoError(t, err)
		require.Nil(t, far)

		ohm := 501.9
		raw := int64(5019)
		return store.UpdateMeasurement(found.ID, types.Measurement{
			Time:         ts,
			ProfileID:    &profileID,
			WeightKg:     82.5,
			ImpedanceRaw: &raw,
			ImpedanceOhm: &ohm,
		})
	})
	require.NoError(t, err)

	latest, err := repo.LatestMeasurement(nil)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, insertedID, latest.ID)
	require.Equal(t, 82.5, latest.WeightKg)
	require.NotNil(t, latest.ImpedanceOhm)
	require.Equal(t, 501.9, *latest.ImpedanceOhm)
}

func TestReconcile_RollbackOnError(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.Reconcile(ctx, func(store MeasurementStore) error {
		_, err := store.InsertMeasurement(types.Measurement{
			Time:     time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC),
			WeightKg: 82.5,
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM measurements`).Scan(&count))
	require.Zero(t, count, "rolled-back insert must not persist")
}

func TestListMeasurements_ProfileFilterAndName(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	galID := insertProfile(t, db, "gal", 173, 43, "male", 3)
	base := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)

	err := repo.Reconcile(ctx, func(store MeasurementStore) error {
		for i := 0; i < 3; i++ {
			m := types.Measurement{Time: base.Add(time.Duration(i) * time.Hour), WeightKg: 82.0 + float64(i)}
			if i < 2 {
				m.ProfileID = &galID
			}
			if _, err := store.InsertMeasurement(m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	all, err := repo.ListMeasurements(10, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	require.Equal(t, 84.0, all[0].WeightKg)
	require.Nil(t, all[0].ProfileName)

	gal, err := repo.ListMeasurements(10, &galID)
	require.NoError(t, err)
	require.Len(t, gal, 2)
	for _, m := range gal {
		require.NotNil(t, m.ProfileName)
		require.Equal(t, "gal", *m.ProfileName)
	}

	limited, err := repo.ListMeasurements(1, nil)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestIsBusy(t *testing.T) {
	require.False(t, IsBusy(nil))
	require.False(t, IsBusy(errors.New("plain")))
	require.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	require.True(t, IsBusy(fmt.Errorf("wrapped: %w", sqlite3.Error{Code: sqlite3.ErrLocked})))
}
