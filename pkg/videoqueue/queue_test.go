package videoqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/clock"
	"github.com/avmux/compositor-core/pkg/inputproc"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
)

func newTestLogger(t *testing.T) *pipelog.Logger {
	t.Helper()
	l, err := pipelog.New(pipelog.NewConfig())
	require.NoError(t, err)
	return l
}

func newTestProc(t *testing.T) *inputproc.InputProcessor[pipeevent.Frame] {
	t.Helper()
	var cell inputproc.FirstPTSCell
	return inputproc.New[pipeevent.Frame](time.Second, &cell, true, clock.NewSyncPoint(), newTestLogger(t))
}

func TestGetFramesBatchPicksClosestFrame(t *testing.T) {
	now := time.Now()
	ch := make(chan pipeevent.PipelineEvent[pipeevent.Frame], 8)
	ch <- pipeevent.Data(pipeevent.Frame{PTS: 0})
	ch <- pipeevent.Data(pipeevent.Frame{PTS: 1 * time.Second})
	ch <- pipeevent.Data(pipeevent.Frame{PTS: 2 * time.Second})

	q := New()
	id := pipeids.NewInputID()
	q.AddInput(id, ch, Options{Required: true}, newTestProc(t), now)

	batch := q.GetFramesBatch(1400*time.Millisecond, now)
	evt, ok := batch.Frames[id]
	require.True(t, ok)
	require.False(t, evt.IsEOS())
	assert.Equal(t, 1*time.Second, evt.Data.PTS)
}

func TestGetFramesBatchBreaksTieTowardEarlierFrame(t *testing.T) {
	now := time.Now()
	ch := make(chan pipeevent.PipelineEvent[pipeevent.Frame], 8)
	ch <- pipeevent.Data(pipeevent.Frame{PTS: 0})
	ch <- pipeevent.Data(pipeevent.Frame{PTS: 1 * time.Second})

	q := New()
	id := pipeids.NewInputID()
	q.AddInput(id, ch, Options{Required: true}, newTestProc(t), now)

	batch := q.GetFramesBatch(500*time.Millisecond, now)
	evt, ok := batch.Frames[id]
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), evt.Data.PTS)
}

func TestEOSPropagatesOnceQueueDrains(t *testing.T) {
	now := time.Now()
	ch := make(chan pipeevent.PipelineEvent[pipeevent.Frame], 8)
	ch <- pipeevent.Data(pipeevent.Frame{PTS: 0})
	ch <- pipeevent.EOS[pipeevent.Frame]()

	q := New()
	id := pipeids.NewInputID()
	q.AddInput(id, ch, Options{Required: true}, newTestProc(t), now)

	batch1 := q.GetFramesBatch(0, now)
	evt1, ok := batch1.Frames[id]
	require.True(t, ok)
	require.False(t, evt1.IsEOS())
	assert.Equal(t, time.Duration(0), evt1.Data.PTS)

	batch2 := q.GetFramesBatch(500*time.Millisecond, now)
	evt2, ok := batch2.Frames[id]
	require.True(t, ok)
	assert.False(t, evt2.IsEOS())

	batch3 := q.GetFramesBatch(500*time.Millisecond, now)
	evt3, ok := batch3.Frames[id]
	require.True(t, ok)
	assert.True(t, evt3.IsEOS())

	batch4 := q.GetFramesBatch(500*time.Millisecond, now)
	_, ok = batch4.Frames[id]
	assert.False(t, ok)
}

func TestOffsetInputNotYetDueIsVacuouslyReady(t *testing.T) {
	now := time.Now()
	ch := make(chan pipeevent.PipelineEvent[pipeevent.Frame])
	offset := 2 * time.Second

	q := New()
	id := pipeids.NewInputID()
	q.AddInput(id, ch, Options{Required: true, Offset: &offset}, newTestProc(t), now)

	assert.True(t, q.CheckAllRequiredInputsReadyForPTS(500*time.Millisecond, now))
}

func TestOffsetInputDueWithoutDataIsNotReady(t *testing.T) {
	now := time.Now()
	ch := make(chan pipeevent.PipelineEvent[pipeevent.Frame])
	offset := 2 * time.Second

	q := New()
	id := pipeids.NewInputID()
	q.AddInput(id, ch, Options{Required: true, Offset: &offset}, newTestProc(t), now)

	assert.False(t, q.CheckAllRequiredInputsReadyForPTS(3*time.Second, now))
}

func TestRemoveInputDropsItFromBatches(t *testing.T) {
	now := time.Now()
	ch := make(chan pipeevent.PipelineEvent[pipeevent.Frame], 1)
	ch <- pipeevent.Data(pipeevent.Frame{PTS: 0})

	q := New()
	id := pipeids.NewInputID()
	q.AddInput(id, ch, Options{Required: true}, newTestProc(t), now)
	q.RemoveInput(id)

	batch := q.GetFramesBatch(0, now)
	assert.Empty(t, batch.Frames)
}
