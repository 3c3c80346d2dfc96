// Package containering implements container-demuxer timing for HLS and
// RTMP ingest (spec §4.5, component C5): PTS/DTS discontinuity
// detection against a running per-stream offset, and HLS drift
// recovery when the decoder buffer runs low.
package containering

import "time"

// DiscontinuityThreshold is spec §4.5's fixed 10s jump detector.
const DiscontinuityThreshold = 10 * time.Second

// Tracker maintains one timestamp stream's discontinuity state: the
// last observed raw timestamp, the predicted next one, a cumulative
// correction offset applied on discontinuity, and a separate drift-bump
// offset applied by HLS buffer-drain recovery. PTS and DTS get
// independent Trackers (spec §4.5).
type Tracker struct {
	// isDTS selects the "observed < prev" monotonicity check, which
	// only applies to decode timestamps.
	isDTS bool

	havePrev       bool
	prevTS         time.Duration
	packetDuration time.Duration

	correction time.Duration
	driftBump  time.Duration
}

// NewPTSTracker constructs a Tracker for a presentation-timestamp
// stream.
func NewPTSTracker() *Tracker { return &Tracker{} }

// NewDTSTracker constructs a Tracker for a decode-timestamp stream,
// which additionally flags any observed decrease as a discontinuity.
func NewDTSTracker() *Tracker { return &Tracker{isDTS: true} }

// Observe feeds one raw container timestamp and returns the
// offset-corrected queue timestamp, along with whether this sample
// triggered a new discontinuity.
func (t *Tracker) Observe(observed time.Duration) (corrected time.Duration, discontinuous bool) {
	offset := t.correction + t.driftBump

	if !t.havePrev {
		t.havePrev = true
		t.prevTS = observed
		return observed + offset, false
	}

	predicted := t.prevTS + t.packetDuration
	jump := predicted - observed
	if jump < 0 {
		jump = -jump
	}

	discontinuous = jump >= DiscontinuityThreshold || (t.isDTS && observed < t.prevTS)
	if discontinuous {
		t.correction += predicted - observed
		t.driftBump = 0 // spec §4.5: drift recovery resets to zero on any discontinuity
		offset = t.correction
	}

	// Only re-estimate packetDuration from a normal step. On a
	// discontinuity, observed-prevTS is the jump size, not a packet
	// spacing; overwriting packetDuration with it would mispredict the
	// very next packet and trigger a false second discontinuity.
	if !discontinuous {
		t.packetDuration = observed - t.prevTS
		if t.packetDuration < 0 {
			t.packetDuration = 0
		}
	}
	t.prevTS = observed

	return observed + offset, discontinuous
}

// AddDriftBump nudges the drift-recovery offset, used by
// HLSDriftRecovery to push timestamps forward when the decoder buffer
// runs low.
func (t *Tracker) AddDriftBump(delta time.Duration) { t.driftBump += delta }

// Offset reports the tracker's total current correction, combining the
// discontinuity correction and any outstanding drift bump.
func (t *Tracker) Offset() time.Duration { return t.correction + t.driftBump }
