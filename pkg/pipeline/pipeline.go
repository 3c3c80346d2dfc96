// Package pipeline is the top-level control-plane orchestrator: it owns
// the shared video/audio queues (C7/C8), the scheduler driving them
// (C9), and the registered inputs/outputs that RegisterInput,
// UnregisterInput, RegisterOutput, UpdateOutput, RequestKeyframe, and
// Schedule mutate, per spec §4's "Control plane" description. Grounded
// on the teacher's pkg/relay/relay.go (CameraRelay: a single-input
// pipeline's start/stop lifecycle) generalized to N inputs and N
// outputs the way pkg/relay/multi_relay.go generalizes one camera to
// many, and on pkg/nest/queue.go's CommandQueue for the control
// channel's single-writer, ticket-plus-response-channel dispatch shape
// (the priority heap and rate limiter are dropped: the control plane
// has no priority classes or external rate limit to respect, just FIFO
// serialization).
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/audioqueue"
	"github.com/avmux/compositor-core/pkg/clock"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
	"github.com/avmux/compositor-core/pkg/scheduler"
	"github.com/avmux/compositor-core/pkg/videoqueue"
)

// Options configures a Pipeline's output cadence, shared by every
// registered output.
type Options struct {
	TickPeriod  time.Duration
	FramePeriod time.Duration
	AudioChunk  time.Duration
	SampleRate  int
	MixStrategy audioqueue.MixStrategy
}

// Pipeline is the top-level orchestrator. One shared video queue and
// one shared audio queue feed a single scheduler; each registered
// output renders the shared video tick through its own Scene and
// encodes both tracks through its own encoder/sink pair.
//
// Audio mixing gain (spec §4.8's per-input Gain) is set once per input
// across the whole pipeline rather than per (input, output) pair: C9
// drives exactly one audioqueue.Queue, and giving every output its own
// mix would require teeing each input's raw sample channel to one
// audioqueue.Queue per output, which no ingress component in this
// pack produces. Recorded as an Open Question decision in DESIGN.md.
type Pipeline struct {
	opts   Options
	sp     clock.SyncPoint
	logger *pipelog.Logger

	video *videoqueue.Queue
	audio *audioqueue.Queue
	sched *scheduler.Scheduler

	videoBatches chan videoqueue.Batch
	audioBatches chan pipeevent.OutputSamples

	mu      sync.RWMutex
	inputs  map[pipeids.InputID]*inputEntry
	outputs map[pipeids.OutputID]*outputEntry

	commands chan *commandTicket

	wg sync.WaitGroup
}

// New constructs a Pipeline. Call Run to start its control-plane
// dispatcher, scheduler, and fan-out loop; it stays idle (no output
// dispatch) until Start is also called.
func New(opts Options, logger *pipelog.Logger) *Pipeline {
	sp := clock.NewSyncPoint()
	video := videoqueue.New()
	audio := audioqueue.New()

	videoBatches := make(chan videoqueue.Batch, 8)
	audioBatches := make(chan pipeevent.OutputSamples, 8)

	sched := scheduler.New(video, audio, sp,
		scheduler.VideoSink{Ch: videoBatches, Required: true},
		scheduler.AudioSink{Ch: audioBatches, Required: true},
		scheduler.Options{
			TickPeriod:  opts.TickPeriod,
			AudioChunk:  opts.AudioChunk,
			FramePeriod: opts.FramePeriod,
			SampleRate:  opts.SampleRate,
			MixStrategy: opts.MixStrategy,
		},
		logger,
	)

	return &Pipeline{
		opts:         opts,
		sp:           sp,
		logger:       logger,
		video:        video,
		audio:        audio,
		sched:        sched,
		videoBatches: videoBatches,
		audioBatches: audioBatches,
		inputs:       make(map[pipeids.InputID]*inputEntry),
		outputs:      make(map[pipeids.OutputID]*outputEntry),
		commands:     make(chan *commandTicket, 64),
	}
}

// SyncPoint returns the instant every queue PTS in this pipeline is
// measured from.
func (p *Pipeline) SyncPoint() clock.SyncPoint {
	return p.sp
}

// Run starts the control-plane dispatcher, the scheduler's tick loop,
// and the fan-out loop that forwards each tick's batch to every
// registered output. It blocks until ctx is canceled, then waits for
// those goroutines to exit.
func (p *Pipeline) Run(ctx context.Context) {
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.sched.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.fanoutLoop(ctx)
	}()

	p.dispatchLoop(ctx)
	p.wg.Wait()
}

// Start transitions the scheduler from Idle to Running, per spec §4.9.
// Routed through the command dispatcher like every other control-plane
// operation.
func (p *Pipeline) Start() error {
	return p.submit(func() error {
		p.sched.Start()
		return nil
	})
}

// Schedule submits a (pts, fn) pair to the scheduler's event queue.
func (p *Pipeline) Schedule(pts time.Duration, fn func()) error {
	return p.submit(func() error {
		p.sched.ScheduleEvent(pts, fn)
		return nil
	})
}

func (p *Pipeline) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.commands:
			err := t.ExecuteFn()
			t.Response <- err
			close(t.Response)
		}
	}
}

// submit enqueues fn on the control command channel and blocks until
// the dispatcher has executed it, returning its error. Every exported
// mutating method routes through here so the core's internal state is
// only ever touched by the single dispatcher goroutine Run starts.
func (p *Pipeline) submit(fn func() error) error {
	t := &commandTicket{ExecuteFn: fn, Response: make(chan error, 1)}
	p.commands <- t
	return <-t.Response
}

// fanoutLoop pulls each tick's shared video batch / mixed audio batch
// off the scheduler's sinks and forwards them to every currently
// registered output.
func (p *Pipeline) fanoutLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-p.videoBatches:
			if !ok {
				return
			}
			p.forwardVideo(batch)
			p.checkEndConditions()
		case out, ok := <-p.audioBatches:
			if !ok {
				return
			}
			p.forwardAudio(out)
			p.checkEndConditions()
		}
	}
}

func (p *Pipeline) forwardVideo(batch videoqueue.Batch) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, o := range p.outputs {
		o.submitVideo(batch)
	}
}

func (p *Pipeline) forwardAudio(out pipeevent.OutputSamples) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, o := range p.outputs {
		o.submitAudio(out)
	}
}

// checkEndConditions closes and unregisters any output whose
// EndCondition is now satisfied, called by fanoutLoop after every
// forwarded video or audio batch. Holds p.mu for writing; callers must
// not hold it already.
func (p *Pipeline) checkEndConditions() {
	p.mu.Lock()
	var toClose []*outputEntry
	for id, o := range p.outputs {
		if p.endConditionMetLocked(o.endCondition) {
			toClose = append(toClose, o)
			delete(p.outputs, id)
		}
	}
	p.mu.Unlock()

	for _, o := range toClose {
		o.close()
	}
}

func (p *Pipeline) endConditionMetLocked(cond EndCondition) bool {
	switch cond.Kind {
	case EndNever:
		return false
	case EndAllInputsFinished:
		return p.allInputsFinishedLocked()
	case EndAnyInputFinished:
		return p.anyInputFinishedLocked()
	case EndAnyOf:
		for _, id := range cond.Set {
			if p.inputFinishedLocked(id) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (p *Pipeline) allInputsFinishedLocked() bool {
	if len(p.inputs) == 0 {
		return false
	}
	for id := range p.inputs {
		if !p.inputFinishedLocked(id) {
			return false
		}
	}
	return true
}

func (p *Pipeline) anyInputFinishedLocked() bool {
	for id := range p.inputs {
		if p.inputFinishedLocked(id) {
			return true
		}
	}
	return false
}

// inputFinishedLocked reports whether the given input has reached EOS on
// every track it registered.
func (p *Pipeline) inputFinishedLocked(id pipeids.InputID) bool {
	in, ok := p.inputs[id]
	if !ok {
		return true
	}
	if in.hasVideo && !p.video.InputEOS(id) {
		return false
	}
	if in.hasAudio && !p.audio.InputEOS(id) {
		return false
	}
	return in.hasVideo || in.hasAudio
}
