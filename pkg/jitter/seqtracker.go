// Package jitter implements the reorder/jitter buffer (spec §4.3,
// component C3): it accepts RTP packets out of order and emits them in
// ascending sequence, bounded by a configured maximum wait, and maps
// each track's RTP timestamp onto the pipeline's wall clock.
package jitter

// SequenceTracker extends 16-bit RTP sequence numbers into a
// monotonically increasing uint64, flipping the high bits each time the
// wire sequence wraps past the midpoint threshold (ground: teacher's
// pacer.go uint32 timestamp-wraparound arithmetic, generalized to the
// 16-bit sequence-number case named by spec §4.3).
type SequenceTracker struct {
	haveSeen bool
	cycles   uint64
	lastSeq  uint16
}

// rolloverThreshold is half the 16-bit sequence space: a jump larger
// than this, in either direction, is treated as a wraparound rather than
// a large forward/backward reorder.
const rolloverThreshold = 1 << 15

// Extend maps a raw 16-bit sequence number onto the tracker's extended
// (rollover-aware) sequence space. Calls must be made in arrival order;
// Extend does not sort, it only disambiguates wraparound.
func (t *SequenceTracker) Extend(seq uint16) uint64 {
	if !t.haveSeen {
		t.haveSeen = true
		t.lastSeq = seq
		return uint64(seq)
	}

	delta := int32(seq) - int32(t.lastSeq)
	switch {
	case delta < -rolloverThreshold:
		// seq wrapped forward past 65535 -> 0.
		t.cycles++
	case delta > rolloverThreshold:
		// seq arrived from a packet that is itself from before the last
		// wrap (a very late, very old packet) — step cycles back down
		// only for the purpose of this packet's extension, without
		// disturbing the tracker's notion of "current" cycle.
		return (t.cycles-1)<<16 | uint64(seq)
	}

	t.lastSeq = seq
	return t.cycles<<16 | uint64(seq)
}
