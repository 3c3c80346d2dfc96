// Package scheduler implements the tick-driven Idle/Running state
// machine that pulls output batches from the video and audio queues at
// the output cadence, fires scheduled events, and applies per-track
// back-pressure (spec §4.9, component C9). Its tick/select loop shape
// and drain-until-nothing-ready inner loop are grounded on the
// teacher's pkg/bridge/pacer.go pacing goroutines; its scheduled-event
// ordering is grounded on pkg/nest/queue.go's ticketHeap.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/audioqueue"
	"github.com/avmux/compositor-core/pkg/clock"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/videoqueue"
)

// State is the scheduler's run state.
type State int

const (
	StateIdle State = iota
	StateRunning
)

// VideoSink is the bounded channel video batches are dispatched to, and
// whether the track is required (spec §4.9's back-pressure rule).
type VideoSink struct {
	Ch       chan<- videoqueue.Batch
	Required bool
}

// AudioSink is the audio analogue of VideoSink.
type AudioSink struct {
	Ch       chan<- pipeevent.OutputSamples
	Required bool
}

// Options configures a Scheduler's cadence and mixing strategy.
type Options struct {
	TickPeriod             time.Duration
	AudioChunk             time.Duration
	FramePeriod            time.Duration
	SampleRate             int
	MixStrategy            audioqueue.MixStrategy
	RunLateScheduledEvents bool
}

// Scheduler drives a video and an audio queue at a fixed cadence,
// dispatching whichever is due first on each tick, per spec §4.9.
type Scheduler struct {
	opts Options
	sp   clock.SyncPoint

	video *videoqueue.Queue
	audio *audioqueue.Queue

	videoSink VideoSink
	audioSink AudioSink

	logger *pipelog.Logger

	mu         sync.Mutex
	state      State
	kA, kV     uint64
	events     eventHeap
	seqCounter uint64

	shouldClose atomic.Bool
	stopped     chan struct{}
}

// New constructs a Scheduler in the Idle state.
func New(video *videoqueue.Queue, audio *audioqueue.Queue, sp clock.SyncPoint, videoSink VideoSink, audioSink AudioSink, opts Options, logger *pipelog.Logger) *Scheduler {
	return &Scheduler{
		opts:      opts,
		sp:        sp,
		video:     video,
		audio:     audio,
		videoSink: videoSink,
		audioSink: audioSink,
		logger:    logger,
		state:     StateIdle,
		stopped:   make(chan struct{}),
	}
}

// Start transitions the scheduler from Idle to Running, per spec §4.9.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
}

// State reports the scheduler's current run state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequestClose sets the should_close flag polled between ticks (spec
// §4.9's cancellation rule). Run returns once the flag is observed.
func (s *Scheduler) RequestClose() {
	s.shouldClose.Store(true)
}

// ScheduleEvent submits a (pts, fn) pair, grounded on spec §4.9's
// "Scheduled events". Events whose pts already lies behind both cursors
// are discarded unless Options.RunLateScheduledEvents is set.
func (s *Scheduler) ScheduleEvent(pts time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := s.dispatchCursor()
	if pts < cursor && !s.opts.RunLateScheduledEvents {
		s.logger.Warn("dropping scheduled event behind dispatch cursor", "pts", pts, "cursor", cursor)
		return
	}

	s.seqCounter++
	heap.Push(&s.events, &scheduledEvent{pts: pts, seq: s.seqCounter, fn: fn})
}

func (s *Scheduler) dispatchCursor() time.Duration {
	audioStart := time.Duration(s.kA) * s.opts.AudioChunk
	videoPTS := time.Duration(s.kV) * s.opts.FramePeriod
	if videoPTS < audioStart {
		return videoPTS
	}
	return audioStart
}

// Run ticks the scheduler at Options.TickPeriod until ctx is canceled or
// RequestClose is called, then closes its stopped channel.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.stopped)

	ticker := time.NewTicker(s.opts.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.shouldClose.Load() {
				return
			}
			s.Tick(time.Now())
		}
	}
}

// Stopped returns a channel closed once Run has returned.
func (s *Scheduler) Stopped() <-chan struct{} {
	return s.stopped
}

// Tick runs one scheduling pass. In Idle it only prunes frames that
// have already fallen behind wall-clock "now" so input rings don't grow
// unbounded while waiting for Start. In Running it repeats the
// dispatch algorithm until nothing is ready.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state == StateIdle {
		s.video.DropOldFramesBeforeStart(now)
		s.audio.DropOldBatchesBeforeStart(now)
		return
	}

	for s.dispatchOnce(now) {
	}
}

// dispatchOnce runs one iteration of the Running-state inner loop (spec
// §4.9 steps 1-5), returning true if it dispatched something and the
// caller should try again.
func (s *Scheduler) dispatchOnce(now time.Time) bool {
	s.mu.Lock()
	audioStart := time.Duration(s.kA) * s.opts.AudioChunk
	audioEnd := time.Duration(s.kA+1) * s.opts.AudioChunk
	videoPTS := time.Duration(s.kV) * s.opts.FramePeriod
	s.mu.Unlock()

	s.fireDueEvents(minDuration(audioStart, videoPTS))

	if videoPTS <= audioStart && s.video.CheckAllRequiredInputsReadyForPTS(videoPTS, now) {
		batch := s.video.GetFramesBatch(videoPTS, now)
		s.dispatchVideo(batch, videoPTS, now)
		s.mu.Lock()
		s.kV++
		s.mu.Unlock()
		return true
	}

	if s.audio.CheckAllRequiredInputsReadyForRange(audioEnd, now) {
		out := s.audio.GetOutputBatch(audioStart, audioEnd, s.opts.SampleRate, now, s.opts.MixStrategy)
		s.dispatchAudio(out, audioEnd, now)
		s.mu.Lock()
		s.kA++
		s.mu.Unlock()
		return true
	}

	return false
}

func (s *Scheduler) fireDueEvents(cursor time.Duration) {
	s.mu.Lock()
	var due []*scheduledEvent
	for s.events.Len() > 0 && s.events[0].pts < cursor {
		due = append(due, heap.Pop(&s.events).(*scheduledEvent))
	}
	s.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
}

func (s *Scheduler) dispatchVideo(batch videoqueue.Batch, pts time.Duration, now time.Time) {
	if s.videoSink.Ch == nil {
		return
	}
	if s.videoSink.Required {
		s.videoSink.Ch <- batch
		return
	}

	wait := s.sp.WallClock(pts).Sub(now)
	if wait <= 0 {
		select {
		case s.videoSink.Ch <- batch:
		default:
			s.logger.Warn("dropping video batch, optional output not ready", "pts", pts)
		}
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.videoSink.Ch <- batch:
	case <-timer.C:
		s.logger.Warn("dropping video batch, optional output not ready by deadline", "pts", pts)
	}
}

func (s *Scheduler) dispatchAudio(out pipeevent.OutputSamples, pts time.Duration, now time.Time) {
	if s.audioSink.Ch == nil {
		return
	}
	if s.audioSink.Required {
		s.audioSink.Ch <- out
		return
	}

	wait := s.sp.WallClock(pts).Sub(now)
	if wait <= 0 {
		select {
		case s.audioSink.Ch <- out:
		default:
			s.logger.Warn("dropping audio batch, optional output not ready", "pts", pts)
		}
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.audioSink.Ch <- out:
	case <-timer.C:
		s.logger.Warn("dropping audio batch, optional output not ready by deadline", "pts", pts)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
