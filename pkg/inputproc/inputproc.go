// Package inputproc implements the per-input processing stage (spec §4.2,
// component C2): it latches the input's first PTS once and rewrites
// native decoder PTS into queue PTS. Each Data event is forwarded as
// soon as it is processed; the bufferDuration passed to New is stored
// but applies no buffering delay.
package inputproc

import (
	"sync"
	"time"

	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/clock"
	"github.com/avmux/compositor-core/pkg/pipeevent"
)

// FirstPTSCell is a single-writer-many-reader once-cell shared between
// an input's video and audio tracks (spec §3 invariant: "For any input,
// video and audio share a single first_pts cell; once latched, neither
// track may retroactively change it").
type FirstPTSCell struct {
	once sync.Once
	val  time.Duration
	set  bool
	mu   sync.RWMutex
}

// Latch records v as the first PTS if no value has been latched yet.
// Subsequent calls are no-ops; the first writer wins.
func (c *FirstPTSCell) Latch(v time.Duration) {
	c.once.Do(func() {
		c.mu.Lock()
		c.val = v
		c.set = true
		c.mu.Unlock()
	})
}

// Get returns the latched value and whether one has been latched.
func (c *FirstPTSCell) Get() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val, c.set
}

// timestamped is implemented by any payload InputProcessor can re-stamp.
type timestamped interface {
	pipeevent.Frame | pipeevent.InputAudioSamples
}

// ptsOf and withPTS let InputProcessor be generic over Frame and
// InputAudioSamples without reflection.
func ptsOf[T timestamped](v T) time.Duration {
	switch x := any(v).(type) {
	case pipeevent.Frame:
		return x.PTS
	case pipeevent.InputAudioSamples:
		return x.StartPTS
	}
	panic("unreachable")
}

func shiftPTS[T timestamped](v T, delta time.Duration) T {
	switch x := any(v).(type) {
	case pipeevent.Frame:
		x.PTS += delta
		return any(x).(T)
	case pipeevent.InputAudioSamples:
		x.StartPTS += delta
		x.EndPTS += delta
		return any(x).(T)
	}
	panic("unreachable")
}

// InputProcessor adapts a raw decoder stream into a queue-ready stream,
// per spec §4.2's contract: process(event) -> 0..N events.
type InputProcessor[T timestamped] struct {
	bufferDuration time.Duration
	firstPTS       *FirstPTSCell
	required       bool
	logger         *pipelog.Logger
	syncPoint      clock.SyncPoint

	eosSeen bool

	startedAt *time.Time // wall-clock instant the first data event was processed
}

// New creates an InputProcessor. firstPTS is shared with the sibling
// track of the same input (spec §3). sp is the pipeline's sync point,
// used to translate queue PTS back to wall-clock for the lateness check.
func New[T timestamped](bufferDuration time.Duration, firstPTS *FirstPTSCell, required bool, sp clock.SyncPoint, logger *pipelog.Logger) *InputProcessor[T] {
	return &InputProcessor[T]{
		bufferDuration: bufferDuration,
		firstPTS:       firstPTS,
		required:       required,
		syncPoint:      sp,
		logger:         logger,
	}
}

// DidReceiveEOS reports whether this processor has already seen and
// forwarded an EOS event.
func (p *InputProcessor[T]) DidReceiveEOS() bool {
	return p.eosSeen
}

// StartTime reports the wall-clock instant the first data event was
// processed, or nil before then. Used by C7/C8 to know
// when an input "switched from buffering to ready" (ground:
// original_source video_queue.rs's input_start_time).
func (p *InputProcessor[T]) StartTime() *time.Time {
	return p.startedAt
}

// Process converts a single incoming event into zero or more queue-ready
// events, per spec §4.2.
func (p *InputProcessor[T]) Process(now time.Time, evt pipeevent.PipelineEvent[T]) []pipeevent.PipelineEvent[T] {
	if evt.IsEOS() {
		if p.eosSeen {
			p.logger.Trace(pipelog.CatQueue, "dropping duplicate EOS")
			return nil
		}
		p.eosSeen = true
		return []pipeevent.PipelineEvent[T]{pipeevent.EOS[T]()}
	}

	if p.eosSeen {
		// spec §3 invariant: any Data following EOS on the same logical
		// stream is silently dropped.
		return nil
	}

	nativePTS := ptsOf(evt.Data)
	p.firstPTS.Latch(nativePTS)
	first, _ := p.firstPTS.Get()

	if p.startedAt == nil {
		t := now
		p.startedAt = &t
	}

	queuePTS := nativePTS - first
	out := shiftPTS(evt.Data, queuePTS-nativePTS)

	// spec §4.2 lateness policy: if sync_point + frame.pts < now and the
	// input is not required, trace and still enqueue — the queue decides
	// whether to drop it.
	if p.syncPoint.WallClock(queuePTS).Before(now) && !p.required {
		p.logger.Trace(pipelog.CatQueue, "frame delivered too late", "pts", queuePTS)
	}

	return []pipeevent.PipelineEvent[T]{pipeevent.Data(out)}
}
