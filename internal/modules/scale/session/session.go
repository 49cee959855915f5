// Package session reconstructs weigh-in sessions from the raw packet log.
// A session is a maximal run of packets in which no two adjacent packets are
// further apart than the gap threshold; one session is presumed to be one
// physical step onto the scale.
package session

import (
	"time"

	"github.com/gfrmin/scalibur/internal/modules/scale/decode"
	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

// DefaultGap is the inter-arrival gap that separates two sessions. The scale
// broadcasts several times a second while someone stands on it, so anything
// beyond this is a new weigh-in.
const DefaultGap = 30 * time.Second

// Group partitions a timestamp-ordered packet log into sessions. It is a pure
// fold over the input: re-running it over the same log always yields the same
// partition, and every returned session is non-empty.
func Group(packets []types.RawPacket, gap time.Duration) [][]types.RawPacket {
	if len(packets) == 0 {
		return nil
	}
	if gap <= 0 {
		gap = DefaultGap
	}

	var sessions [][]types.RawPacket
	current := []types.RawPacket{packets[0]}
	for _, p := range packets[1:] {
		if p.Time.Sub(current[len(current)-1].Time) > gap {
			sessions = append(sessions, current)
			current = []types.RawPacket{p}
			continue
		}
		current = append(current, p)
	}
	return append(sessions, current)
}

// Candidate is the reading chosen to represent a session, together with the
// packet it was decoded from (which carries the session's timestamp).
type Candidate struct {
	Packet  types.RawPacket
	Reading types.ScaleReading
}

// BestReading selects the authoritative reading for one session: the most
// recent complete-with-impedance reading, or failing that the most recent
// complete weight-only reading. Sessions with no decodable complete reading
// yield nil. The second return value counts packets that failed to decode.
func BestReading(packets []types.RawPacket) (*Candidate, int) {
	var best *Candidate
	bestHasImpedance := false
	undecoded := 0

	for _, p := range packets {
		r := decode.Packet(p.ManufacturerID, p.Payload)
		if r == nil {
			undecoded++
			continue
		}
		if !r.IsComplete {
			continue
		}
		if decode.CompleteWithImpedance(r) {
			// Most recent within the preferred class wins.
			best = &Candidate{Packet: p, Reading: *r}
			bestHasImpedance = true
		} else if !bestHasImpedance {
			best = &Candidate{Packet: p, Reading: *r}
		}
	}
	return best, undecoded
}
