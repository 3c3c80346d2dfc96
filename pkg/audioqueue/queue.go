// Package audioqueue implements the per-input audio sample ring,
// per-output batch assembly, and mixing-strategy dispatch (spec §4.8,
// component C8). Its readiness/ring-drop rules mirror pkg/videoqueue's
// (both are ported from the same family of methods on
// original_source/compositor_pipeline/src/queue/video_queue.rs's
// VideoQueue/VideoQueueInput, generalized from point PTS queries to
// [start, end) range queries), and its windowing delegates the actual
// sample alignment to pkg/audiomix.
package audioqueue

import (
	"time"

	"github.com/avmux/compositor-core/pkg/inputproc"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
)

// MixStrategy selects how per-input samples are combined into an output
// batch, per spec §4.8.
type MixStrategy int

const (
	// MixSumClip adds every input's (gain-scaled) sample and clips the
	// result to [-1, 1].
	MixSumClip MixStrategy = iota
	// MixSumScale adds every input's (gain-scaled) sample and divides by
	// the number of inputs that actually contributed to this batch.
	MixSumScale
)

// Options configure one input's admission into an audio queue,
// mirroring videoqueue.Options plus the input's mix gain.
type Options struct {
	Required bool
	Offset   *time.Duration
	// Gain is this input's volume in this Queue's mix, applied before
	// summation. Values outside [0, 1] are clamped. pkg/pipeline drives
	// one Queue for all outputs, so the gain is the same in every
	// output's audio.
	Gain float64
}

func clampGain(g float64) float64 {
	switch {
	case g < 0:
		return 0
	case g > 1:
		return 1
	default:
		return g
	}
}

// Source is the channel an input's audio decoder writes sample batches
// to.
type Source = <-chan pipeevent.PipelineEvent[pipeevent.InputAudioSamples]

// Queue holds every input registered against one audio mix; pkg/pipeline
// uses a single Queue whose mix every output receives.
type Queue struct {
	inputs map[pipeids.InputID]*Input
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{inputs: make(map[pipeids.InputID]*Input)}
}

// AddInput registers a new input against this Queue's mix.
func (q *Queue) AddInput(id pipeids.InputID, source Source, opts Options, proc *inputproc.InputProcessor[pipeevent.InputAudioSamples], queueStart time.Time) {
	q.inputs[id] = &Input{
		id:         id,
		source:     source,
		proc:       proc,
		required:   opts.Required,
		offset:     opts.Offset,
		gain:       clampGain(opts.Gain),
		queueStart: queueStart,
	}
}

// RemoveInput drops an input and its buffered batches.
func (q *Queue) RemoveInput(id pipeids.InputID) {
	delete(q.inputs, id)
}

// CheckAllRequiredInputsReadyForRange reports whether every required
// input can answer a query covering [windowStart, windowEnd).
func (q *Queue) CheckAllRequiredInputsReadyForRange(windowEnd time.Duration, now time.Time) bool {
	for _, in := range q.inputs {
		if in.required && !in.checkReadyForRange(windowEnd, now) {
			return false
		}
	}
	return true
}

// CheckAllInputsReadyForRange is the same check over every input.
func (q *Queue) CheckAllInputsReadyForRange(windowEnd time.Duration, now time.Time) bool {
	for _, in := range q.inputs {
		if !in.checkReadyForRange(windowEnd, now) {
			return false
		}
	}
	return true
}

// DropOldBatchesBeforeStart prunes every input's ring of batches that
// are already in the past relative to wall-clock "now", mirroring
// videoqueue.Queue.DropOldFramesBeforeStart.
func (q *Queue) DropOldBatchesBeforeStart(now time.Time) {
	for _, in := range q.inputs {
		in.dropOldBatchesBeforeStart(now)
	}
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
// empty queue reports false rather than vacuously true.
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

// GetOutputBatch assembles and mixes one output window's samples across
// every currently-contributing input, per spec §4.8.
func (q *Queue) GetOutputBatch(windowStart, windowEnd time.Duration, sampleRate int, now time.Time, strategy MixStrategy) pipeevent.OutputSamples {
	n := 0
	contributions := make([][]pipeevent.StereoSample, 0, len(q.inputs))
	gains := make([]float64, 0, len(q.inputs))

	for _, in := range q.inputs {
		samples, ok := in.getWindow(windowStart, windowEnd, sampleRate, now)
		if !ok {
			continue
		}
		if len(samples) > n {
			n = len(samples)
		}
		contributions = append(contributions, samples)
		gains = append(gains, in.gain)
	}

	mixed := mix(contributions, gains, n, strategy)
	return pipeevent.OutputSamples{StartPTS: windowStart, EndPTS: windowEnd, Samples: mixed}
}

func mix(contributions [][]pipeevent.StereoSample, gains []float64, n int, strategy MixStrategy) []pipeevent.StereoSample {
	out := make([]pipeevent.StereoSample, n)
	if n == 0 {
		return out
	}

	active := 0
	for _, c := range contributions {
		if len(c) > 0 {
			active++
		}
	}
	if active == 0 {
		active = 1
	}

	for i := 0; i < n; i++ {
		var l, r float64
		for ci, c := range contributions {
			if i >= len(c) {
				continue
			}
			l += c[i].Left * gains[ci]
			r += c[i].Right * gains[ci]
		}
		if strategy == MixSumScale {
			l /= float64(active)
			r /= float64(active)
		} else {
			l = clipUnit(l)
			r = clipUnit(r)
		}
		out[i] = pipeevent.StereoSample{Left: l, Right: r}
	}
	return out
}

func clipUnit(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
