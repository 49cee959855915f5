// Package etl reconstructs weigh-in events from the raw packet log and
// reconciles them against the measurement store. A run is a pure re-derivation
// over the full log: nothing is accumulated between runs, so it can be invoked
// from a timer, the HTTP API or the CLI at any time without duplicate writes.
package etl

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gfrmin/scalibur/internal/modules/scale/decode"
	"github.com/gfrmin/scalibur/internal/modules/scale/repository"
	"github.com/gfrmin/scalibur/internal/modules/scale/session"
	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

type Pipeline struct {
	repo   repository.ScaleRepository
	gap    time.Duration
	window time.Duration
	logger *slog.Logger
}

func NewPipeline(repo repository.ScaleRepository, gap, window time.Duration, logger *slog.Logger) *Pipeline {
	if gap <= 0 {
		gap = session.DefaultGap
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{repo: repo, gap: gap, window: window, logger: logger}
}

// Run executes one ingest pass: load the full packet log and profile list,
// partition into sessions, pick the best reading per session, and apply the
// reconciliation decision for every session inside a single transaction.
// A busy store (concurrent run holding the write lock) is retried once.
func (p *Pipeline) Run(ctx context.Context) (types.Stats, error) {
	stats := types.Stats{RunID: uuid.NewString()}

	packets, err := p.repo.ListRawPackets()
	if err != nil {
		return stats, err
	}
	stats.PacketsSeen = len(packets)

	profiles, err := p.repo.ListProfiles()
	if err != nil {
		return stats, err
	}

	sessions := session.Group(packets, p.gap)
	stats.SessionsFound = len(sessions)

	var candidates []candidate
	for _, s := range sessions {
		best, undecoded := session.BestReading(s)
		stats.PacketsSkipped += undecoded
		if best == nil {
			continue
		}
		candidates = append(candidates, p.resolve(best, profiles))
	}

	apply := func(store repository.MeasurementStore) error {
		created, updated, err := p.applyAll(store, candidates)
		stats.MeasurementsCreated = created
		stats.MeasurementsUpdated = updated
		return err
	}

	err = p.repo.Reconcile(ctx, apply)
	if repository.IsBusy(err) {
		p.logger.Warn("store busy, retrying run once", "run_id", stats.RunID, "error", err)
		err = p.repo.Reconcile(ctx, apply)
	}
	if err != nil {
		return types.Stats{RunID: stats.RunID}, err
	}

	p.logger.Info("ingest run finished",
		"run_id", stats.RunID,
		"packets_seen", stats.PacketsSeen,
		"packets_skipped", stats.PacketsSkipped,
		"sessions_found", stats.SessionsFound,
		"measurements_created", stats.MeasurementsCreated,
		"measurements_updated", stats.MeasurementsUpdated,
	)
	return stats, nil
}

// candidate is one session's resolved best reading, ready to reconcile.
type candidate struct {
	measurement  types.Measurement
	hasImpedance bool
}

func (p *Pipeline) resolve(best *session.Candidate, profiles []types.Profile) candidate {
	r := best.Reading
	m := types.Measurement{
		Time:     best.Packet.Time,
		WeightKg: r.WeightKg,
	}
	if r.ImpedanceRaw > 0 {
		raw := int64(r.ImpedanceRaw)
		m.ImpedanceRaw = &raw
		m.ImpedanceOhm = r.ImpedanceOhm
	}

	profile := matchProfile(r.UserID, profiles)
	if profile != nil {
		m.ProfileID = &profile.ID
	}

	// Composition needs both the impedance measurement and the profile's
	// height/age/gender; a weight-only or unmatched session stores neither.
	if r.HasImpedance() && profile != nil {
		comp := decode.BodyComposition(r.WeightKg, *r.ImpedanceOhm, profile.HeightCm, profile.Age, profile.Gender)
		m.BodyFatPct = &comp.BodyFatPct
		m.FatMassKg = &comp.FatMassKg
		m.LeanMassKg = &comp.LeanMassKg
		m.BodyWaterPct = &comp.BodyWaterPct
		m.MuscleMassKg = &comp.MuscleMassKg
		m.BoneMassKg = &comp.BoneMassKg
		m.BMRKcal = &comp.BMRKcal
		m.BMI = &comp.BMI
	}

	return candidate{measurement: m, hasImpedance: r.HasImpedance()}
}

func (p *Pipeline) applyAll(store repository.MeasurementStore, candidates []candidate) (created, updated int, err error) {
	for _, c := range candidates {
		existing, err := store.FindMeasurementNear(c.measurement.Time, p.window)
		if err != nil {
			return created, updated, err
		}

		switch action := decide(existing, c.hasImpedance); action {
		case ActionInsert:
			id, err := store.InsertMeasurement(c.measurement)
			if err != nil {
				return created, updated, err
			}
			created++
			p.logger.Debug("measurement inserted", "id", id, "ts", c.measurement.Time)
		case ActionUpdate:
			if err := store.UpdateMeasurement(existing.ID, c.measurement); err != nil {
				return created, updated, err
			}
			updated++
			p.logger.Debug("measurement upgraded with impedance", "id", existing.ID, "ts", c.measurement.Time)
		case ActionSkip:
			p.logger.Debug("measurement already recorded", "existing_id", existing.ID, "ts", c.measurement.Time)
		}
	}
	return created, updated, nil
}
