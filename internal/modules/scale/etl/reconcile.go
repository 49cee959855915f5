package etl

import (
	"time"

	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

// DefaultWindow is the reconciliation window: an existing measurement within
// this distance of a session's timestamp is taken to be the same physical
// weigh-in.
const DefaultWindow = 30 * time.Second

// Action is the reconciliation outcome for one session.
type Action int

const (
	// ActionInsert records a weigh-in not seen before.
	ActionInsert Action = iota
	// ActionUpdate upgrades an impedance-less record in place with a richer
	// reading for the same weigh-in.
	ActionUpdate
	// ActionSkip leaves the store untouched: the weigh-in is already recorded
	// at least as richly as the new reading.
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	}
	return "unknown"
}

// decide applies the reconciliation decision table:
//
//	existing   existing impedance   new impedance   action
//	none       -                    -               insert
//	found      no                   yes             update
//	found      yes                  any             skip
//	found      no                   no              skip
//
// Repeated runs over an unchanged packet log therefore reach a fixed point:
// once a session's best data is stored, every later run decides skip.
func decide(existing *types.Measurement, newHasImpedance bool) Action {
	switch {
	case existing == nil:
		return ActionInsert
	case existing.ImpedanceOhm == nil && newHasImpedance:
		return ActionUpdate
	default:
		return ActionSkip
	}
}

// matchProfile resolves a packet's embedded user ID to a stored profile by
// exact equality on the profile's scale user ID. No fuzzy matching: an
// unmatched session is persisted without a profile and without composition.
func matchProfile(userID uint16, profiles []types.Profile) *types.Profile {
	for i := range profiles {
		if profiles[i].ScaleUserID != nil && *profiles[i].ScaleUserID == userID {
			return &profiles[i]
		}
	}
	return nil
}
