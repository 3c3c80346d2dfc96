// Package videoqueue implements the per-input video frame ring and
// output-batch assembly (spec §4.7, component C7), ported function for
// function from original_source/compositor_pipeline/src/queue/video_queue.rs's
// VideoQueue/VideoQueueInput into idiomatic Go: a map of per-input
// rings, each fed by its own InputProcessor, queried once per output
// tick for the frame closest to the requested PTS.
package videoqueue

import (
	"time"

	"github.com/avmux/compositor-core/pkg/inputproc"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
)

// Options configure one input's admission into the queue (spec §3's
// Input entity fields relevant to C7/C8).
type Options struct {
	Required bool
	// Offset, if non-nil, pins the input's first frame to this queue
	// PTS rather than letting it be derived from wall-clock arrival.
	Offset *time.Duration
}

// Source is the channel an input's decoder writes frames to; Queue
// drains it lazily, one event at a time, only as far as it needs to
// answer a readiness or batch-assembly query.
type Source = <-chan pipeevent.PipelineEvent[pipeevent.Frame]

// Queue holds every registered video input's ring buffer.
type Queue struct {
	inputs map[pipeids.InputID]*Input
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{inputs: make(map[pipeids.InputID]*Input)}
}

// AddInput registers a new input, grounded on VideoQueue::add_input.
func (q *Queue) AddInput(id pipeids.InputID, source Source, opts Options, proc *inputproc.InputProcessor[pipeevent.Frame], queueStart time.Time) {
	q.inputs[id] = &Input{
		id:         id,
		source:     source,
		proc:       proc,
		required:   opts.Required,
		offset:     opts.Offset,
		queueStart: queueStart,
	}
}

// RemoveInput drops an input and its buffered frames.
func (q *Queue) RemoveInput(id pipeids.InputID) {
	delete(q.inputs, id)
}

// Batch is one output tick's frame set, grounded on QueueVideoOutput.
type Batch struct {
	PTS    time.Duration
	Frames map[pipeids.InputID]pipeevent.PipelineEvent[pipeevent.Frame]
}

// GetFramesBatch returns the frame closest to bufferPTS for every input
// that has one, ported from VideoQueue::get_frames_batch. It does not
// check readiness; call CheckAllRequiredInputsReadyForPTS first.
func (q *Queue) GetFramesBatch(bufferPTS time.Duration, now time.Time) Batch {
	out := Batch{PTS: bufferPTS, Frames: make(map[pipeids.InputID]pipeevent.PipelineEvent[pipeevent.Frame])}
	for id, in := range q.inputs {
		if evt, ok := in.getFrame(bufferPTS, now); ok {
			out.Frames[id] = evt
		}
	}
	return out
}

// CheckAllInputsReadyForPTS reports whether every input (required or
// not) has data to answer a query for nextBufferPTS, ported from
// VideoQueue::check_all_inputs_ready_for_pts.
func (q *Queue) CheckAllInputsReadyForPTS(nextBufferPTS time.Duration, now time.Time) bool {
	for _, in := range q.inputs {
		if !in.checkReadyForPTS(nextBufferPTS, now) {
			return false
		}
	}
	return true
}

// CheckAllRequiredInputsReadyForPTS is the same check restricted to
// required inputs, ported from
// VideoQueue::check_all_required_inputs_ready_for_pts.
func (q *Queue) CheckAllRequiredInputsReadyForPTS(nextBufferPTS time.Duration, now time.Time) bool {
	for _, in := range q.inputs {
		if in.required && !in.checkReadyForPTS(nextBufferPTS, now) {
			return false
		}
	}
	return true
}

// HasRequiredInputsForPTS reports whether any required input's offset
// means it should already be contributing frames at nextBufferPTS,
// ported from VideoQueue::has_required_inputs_for_pts.
func (q *Queue) HasRequiredInputsForPTS(nextBufferPTS time.Duration, now time.Time) bool {
	for _, in := range q.inputs {
		if !in.required {
			continue
		}
		if _, ok := in.inputPTSFromQueuePTS(nextBufferPTS, now); ok {
			return true
		}
	}
	return false
}

// InputIDs returns every currently registered input id, in no
// particular order.
func (q *Queue) InputIDs() []pipeids.InputID {
	ids := make([]pipeids.InputID, 0, len(q.inputs))
	for id := range q.inputs {
		ids = append(ids, id)
	}
	return ids
}

// InputEOS reports whether the given input has sent its end-of-stream
// marker downstream. Returns false for an unknown id.
func (q *Queue) InputEOS(id pipeids.InputID) bool {
	in, ok := q.inputs[id]
	return ok && in.eosSent
}

// AllInputsEOS reports whether every registered input has sent EOS. An
// empty queue reports false rather than vacuously true, since an output
// with no inputs yet hasn't "finished" anything.
func (q *Queue) AllInputsEOS() bool {
	if len(q.inputs) == 0 {
		return false
	}
	for _, in := range q.inputs {
		if !in.eosSent {
			return false
		}
	}
	return true
}

// AnyInputEOS reports whether at least one registered input has sent
// EOS.
func (q *Queue) AnyInputEOS() bool {
	for _, in := range q.inputs {
		if in.eosSent {
			return true
		}
	}
	return false
}

// DropOldFramesBeforeStart prunes every input's ring of frames that are
// already in the past relative to wall-clock "now", called by the
// scheduler on every tick while it is still Idle (spec §4.9's startup
// sequence), ported
// from VideoQueue::drop_old_frames_before_start.
func (q *Queue) DropOldFramesBeforeStart(now time.Time) {
	for _, in := range q.inputs {
		in.dropOldFramesBeforeStart(now)
	}
}
