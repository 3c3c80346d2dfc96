package inputproc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/clock"
	"github.com/avmux/compositor-core/pkg/pipeevent"
)

func newTestLogger(t *testing.T) *pipelog.Logger {
	t.Helper()
	l, err := pipelog.New(pipelog.NewConfig())
	require.NoError(t, err)
	return l
}

func TestFirstPTSCellLatchesOnce(t *testing.T) {
	var cell FirstPTSCell
	cell.Latch(5 * time.Second)
	cell.Latch(50 * time.Second)

	v, ok := cell.Get()
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, v)
}

func TestProcessRewritesPTSRelativeToFirst(t *testing.T) {
	var cell FirstPTSCell
	sp := clock.NewSyncPoint()
	p := New[pipeevent.Frame](time.Second, &cell, true, sp, newTestLogger(t))

	now := time.Now()
	f1 := pipeevent.Data(pipeevent.Frame{PTS: 10 * time.Second})
	out := p.Process(now, f1)
	require.Len(t, out, 1)
	assert.Equal(t, time.Duration(0), out[0].Data.PTS)

	f2 := pipeevent.Data(pipeevent.Frame{PTS: 10500 * time.Millisecond})
	out2 := p.Process(now, f2)
	require.Len(t, out2, 1)
	assert.Equal(t, 500*time.Millisecond, out2[0].Data.PTS)
}

func TestEOSPassedThroughOnce(t *testing.T) {
	var cell FirstPTSCell
	sp := clock.NewSyncPoint()
	p := New[pipeevent.Frame](time.Second, &cell, true, sp, newTestLogger(t))

	now := time.Now()
	out := p.Process(now, pipeevent.EOS[pipeevent.Frame]())
	require.Len(t, out, 1)
	assert.True(t, out[0].IsEOS())

	out2 := p.Process(now, pipeevent.EOS[pipeevent.Frame]())
	assert.Len(t, out2, 0)
}

func TestDataAfterEOSDropped(t *testing.T) {
	var cell FirstPTSCell
	sp := clock.NewSyncPoint()
	p := New[pipeevent.Frame](time.Second, &cell, true, sp, newTestLogger(t))

	now := time.Now()
	p.Process(now, pipeevent.EOS[pipeevent.Frame]())
	out := p.Process(now, pipeevent.Data(pipeevent.Frame{PTS: time.Second}))
	assert.Len(t, out, 0)
}

func TestSharedFirstPTSAcrossTracks(t *testing.T) {
	var cell FirstPTSCell
	sp := clock.NewSyncPoint()
	video := New[pipeevent.Frame](time.Second, &cell, true, sp, newTestLogger(t))
	audio := New[pipeevent.InputAudioSamples](time.Second, &cell, true, sp, newTestLogger(t))

	now := time.Now()
	video.Process(now, pipeevent.Data(pipeevent.Frame{PTS: 2 * time.Second}))

	audioEvt := pipeevent.Data(pipeevent.InputAudioSamples{
		StartPTS: 2500 * time.Millisecond,
		EndPTS:   2600 * time.Millisecond,
	})
	out := audio.Process(now, audioEvt)
	require.Len(t, out, 1)
	assert.Equal(t, 500*time.Millisecond, out[0].Data.StartPTS)
}
