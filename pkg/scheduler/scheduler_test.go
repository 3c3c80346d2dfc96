package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/audioqueue"
	"github.com/avmux/compositor-core/pkg/clock"
	"github.com/avmux/compositor-core/pkg/inputproc"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
	"github.com/avmux/compositor-core/pkg/videoqueue"
)

func newTestLogger(t *testing.T) *pipelog.Logger {
	t.Helper()
	l, err := pipelog.New(pipelog.NewConfig())
	require.NoError(t, err)
	return l
}

func audioFlatBatch(startPTS time.Duration, sampleRate int, count int, v float64) pipeevent.InputAudioSamples {
	samples := make([]pipeevent.StereoSample, count)
	for i := range samples {
		samples[i] = pipeevent.StereoSample{Left: v, Right: v}
	}
	sd := time.Duration(float64(time.Second) / float64(sampleRate))
	return pipeevent.InputAudioSamples{
		StartPTS: startPTS,
		EndPTS:   startPTS + time.Duration(count)*sd,
		Layout:   pipeevent.SampleLayoutStereo,
		Stereo:   samples,
	}
}

// buildScheduler wires a video queue with three 100ms-spaced frames and
// an audio queue with one 400ms batch, enough for a bounded number of
// dispatches before both queues run dry and Tick returns.
func buildScheduler(t *testing.T, now time.Time) (*Scheduler, chan videoqueue.Batch, chan pipeevent.OutputSamples) {
	t.Helper()

	vq := videoqueue.New()
	var vCell inputproc.FirstPTSCell
	vProc := inputproc.New[pipeevent.Frame](time.Second, &vCell, true, clock.NewSyncPoint(), newTestLogger(t))
	vCh := make(chan pipeevent.PipelineEvent[pipeevent.Frame], 8)
	vCh <- pipeevent.Data(pipeevent.Frame{PTS: 0})
	vCh <- pipeevent.Data(pipeevent.Frame{PTS: 100 * time.Millisecond})
	vCh <- pipeevent.Data(pipeevent.Frame{PTS: 200 * time.Millisecond})
	vq.AddInput(pipeids.NewInputID(), vCh, videoqueue.Options{Required: true}, vProc, now)

	aq := audioqueue.New()
	var aCell inputproc.FirstPTSCell
	aProc := inputproc.New[pipeevent.InputAudioSamples](time.Second, &aCell, true, clock.NewSyncPoint(), newTestLogger(t))
	aCh := make(chan pipeevent.PipelineEvent[pipeevent.InputAudioSamples], 8)
	aCh <- pipeevent.Data(audioFlatBatch(0, 10, 4, 1.0)) // covers [0, 400ms)
	aq.AddInput(pipeids.NewInputID(), aCh, audioqueue.Options{Required: true}, aProc, now)

	videoOut := make(chan videoqueue.Batch, 16)
	audioOut := make(chan pipeevent.OutputSamples, 16)

	sched := New(vq, aq, clock.NewSyncPoint(),
		VideoSink{Ch: videoOut, Required: true},
		AudioSink{Ch: audioOut, Required: true},
		Options{
			TickPeriod:  10 * time.Millisecond,
			AudioChunk:  200 * time.Millisecond,
			FramePeriod: 100 * time.Millisecond,
			SampleRate:  10,
			MixStrategy: audioqueue.MixSumClip,
		},
		newTestLogger(t),
	)
	return sched, videoOut, audioOut
}

func TestIdleTickDoesNotDispatch(t *testing.T) {
	now := time.Now()
	sched, videoOut, audioOut := buildScheduler(t, now)

	sched.Tick(now)

	assert.Equal(t, StateIdle, sched.State())
	assert.Empty(t, videoOut)
	assert.Empty(t, audioOut)
}

func TestRunningTickDrainsBothQueuesThenStops(t *testing.T) {
	now := time.Now()
	sched, videoOut, audioOut := buildScheduler(t, now)

	sched.Start()
	sched.Tick(now)

	assert.Equal(t, uint64(3), sched.kV)
	assert.Equal(t, uint64(2), sched.kA)
	assert.Len(t, videoOut, 3)
	assert.Len(t, audioOut, 2)
}

func TestScheduledEventFiresOnceCursorPasses(t *testing.T) {
	now := time.Now()
	sched, _, _ := buildScheduler(t, now)

	fired := false
	sched.ScheduleEvent(150*time.Millisecond, func() { fired = true })

	sched.Start()
	sched.Tick(now)

	assert.True(t, fired)
}

func TestScheduledEventInThePastIsDropped(t *testing.T) {
	now := time.Now()
	sched, _, _ := buildScheduler(t, now)

	fired := false
	sched.ScheduleEvent(-1*time.Millisecond, func() { fired = true })

	sched.Start()
	sched.Tick(now)

	assert.False(t, fired)
}

func TestRequestCloseStopsRunLoop(t *testing.T) {
	now := time.Now()
	sched, _, _ := buildScheduler(t, now)
	sched.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	sched.RequestClose()

	select {
	case <-sched.Stopped():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after RequestClose")
	}
}
