package containering

import "time"

// HLSMinBuffer is spec §4.5's MIN_BUFFER constant: once the downstream
// decoder buffer runs below this much queued media, DriftRecovery
// starts pushing timestamps into the future.
const HLSMinBuffer = 1 * time.Second

// HLSDriftBump is spec §4.5's per-check artificial PTS offset (Open
// Question (a), pinned in SPEC_FULL.md §6: applied once per
// below-threshold observation rather than scaled by how far under the
// threshold the buffer is).
const HLSDriftBump = 100 * time.Millisecond

// HLSDriftRecovery watches an HLS input's buffered-duration estimate
// and bumps its Tracker's drift offset whenever the buffer runs low,
// trading latency for freedom from stalls (spec §4.5).
type HLSDriftRecovery struct {
	tracker *Tracker
}

// NewHLSDriftRecovery attaches drift recovery to tracker, which should
// be the PTS tracker for the same stream (spec §4.5 names this a
// PTS-only heuristic; DTS just follows via the stream's normal
// discontinuity handling).
func NewHLSDriftRecovery(tracker *Tracker) *HLSDriftRecovery {
	return &HLSDriftRecovery{tracker: tracker}
}

// Check observes the current buffered duration and applies a drift bump
// if it is below HLSMinBuffer. Returns whether a bump was applied.
func (r *HLSDriftRecovery) Check(buffered time.Duration) bool {
	if buffered >= HLSMinBuffer {
		return false
	}
	r.tracker.AddDriftBump(HLSDriftBump)
	return true
}
