package containering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerNoDiscontinuityOnSteadyStream(t *testing.T) {
	tr := NewPTSTracker()
	base := 100 * time.Millisecond

	_, d := tr.Observe(0)
	assert.False(t, d)
	for i := 1; i <= 5; i++ {
		_, d := tr.Observe(time.Duration(i) * base)
		assert.False(t, d)
	}
}

func TestTrackerDetectsForwardJump(t *testing.T) {
	tr := NewPTSTracker()
	tr.Observe(0)
	tr.Observe(100 * time.Millisecond)

	corrected, d := tr.Observe(100*time.Millisecond + 20*time.Second)
	assert.True(t, d)
	// corrected should be pulled back near the predicted continuation.
	assert.Less(t, corrected, 20*time.Second)
}

func TestTrackerDoesNotReintroduceGapAfterJump(t *testing.T) {
	tr := NewPTSTracker()
	for i := 0; i <= 9; i++ {
		_, d := tr.Observe(time.Duration(i) * time.Second)
		assert.False(t, d)
	}

	corrected, d := tr.Observe(100 * time.Second)
	assert.True(t, d)
	assert.Equal(t, 10*time.Second, corrected)

	// The next normal packet keeps the steady 1s spacing. It must not be
	// flagged as a second discontinuity, and the correction must not
	// unwind back toward the 90s jump it was meant to remove.
	corrected, d = tr.Observe(101 * time.Second)
	assert.False(t, d)
	assert.Equal(t, 11*time.Second, corrected)
}

func TestDTSTrackerDetectsBackwardJump(t *testing.T) {
	tr := NewDTSTracker()
	tr.Observe(2 * time.Second)
	_, d := tr.Observe(1 * time.Second)
	assert.True(t, d)
}

func TestPTSTrackerIgnoresBackwardJumpBelowThreshold(t *testing.T) {
	tr := NewPTSTracker()
	tr.Observe(2 * time.Second)
	_, d := tr.Observe(1900 * time.Millisecond)
	assert.False(t, d)
}

func TestHLSDriftRecoveryBumpsBelowMinBuffer(t *testing.T) {
	tr := NewPTSTracker()
	rec := NewHLSDriftRecovery(tr)

	applied := rec.Check(500 * time.Millisecond)
	assert.True(t, applied)
	assert.Equal(t, HLSDriftBump, tr.Offset())

	notApplied := rec.Check(2 * time.Second)
	assert.False(t, notApplied)
	assert.Equal(t, HLSDriftBump, tr.Offset())
}

func TestHLSDriftBumpResetsOnDiscontinuity(t *testing.T) {
	tr := NewPTSTracker()
	rec := NewHLSDriftRecovery(tr)

	tr.Observe(0)
	tr.Observe(100 * time.Millisecond)
	rec.Check(200 * time.Millisecond)
	assert.Equal(t, HLSDriftBump, tr.Offset())

	tr.Observe(100*time.Millisecond + 20*time.Second)
	assert.Equal(t, time.Duration(0), tr.driftBump)
}
