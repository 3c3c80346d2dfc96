package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncPointElapsedMonotonic(t *testing.T) {
	sp := NewSyncPoint()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, sp.Elapsed(), 5*time.Millisecond)
}

func TestClockRecordTick(t *testing.T) {
	sp := NewSyncPoint()
	c := New(sp)

	assert.Equal(t, time.Duration(0), c.RenderDelay())

	c.RecordTick(1 * time.Hour)
	assert.Greater(t, c.RenderDelay(), time.Duration(0))
	assert.Equal(t, uint64(1), c.Ticks())
}

func TestWallClockRoundTrip(t *testing.T) {
	sp := NewSyncPoint()
	pts := 250 * time.Millisecond
	wc := sp.WallClock(pts)
	assert.WithinDuration(t, sp.Instant().Add(pts), wc, time.Microsecond)
}
