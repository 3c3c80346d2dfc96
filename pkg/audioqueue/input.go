package audioqueue

import (
	"time"

	"github.com/avmux/compositor-core/pkg/audiomix"
	"github.com/avmux/compositor-core/pkg/inputproc"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
)

// Input is one registered audio input's sample-batch ring and
// bookkeeping, the range-query analogue of videoqueue.Input.
type Input struct {
	id pipeids.InputID

	// batches holds raw decoder batches in the InputProcessor's
	// relative-to-first-pts timeline, oldest first.
	batches []pipeevent.InputAudioSamples

	source Source
	proc   *inputproc.InputProcessor[pipeevent.InputAudioSamples]

	required bool
	offset   *time.Duration
	gain     float64

	queueStart time.Time

	eosSent bool
}

// tryEnqueueBatch drains one event from source, if any is immediately
// available, feeding it through the InputProcessor and appending any
// resulting Data batch to the ring.
func (in *Input) tryEnqueueBatch(now time.Time) bool {
	select {
	case evt, ok := <-in.source:
		if !ok {
			return false
		}
		for _, out := range in.proc.Process(now, evt) {
			if !out.IsEOS() {
				in.batches = append(in.batches, out.Data)
			}
		}
		return true
	default:
		return false
	}
}

func (in *Input) inputStartTime(now time.Time) (time.Time, bool) {
	for {
		if st := in.proc.StartTime(); st != nil {
			return *st, true
		}
		if !in.tryEnqueueBatch(now) {
			return time.Time{}, false
		}
	}
}

// translateToInputPTS converts a queue-relative instant into this
// input's own timeline, the audio analogue of
// videoqueue.Input.inputPTSFromQueuePTS.
func (in *Input) translateToInputPTS(queuePTS time.Duration, now time.Time) (time.Duration, bool) {
	if in.offset != nil {
		v := queuePTS - *in.offset
		if v < 0 {
			return 0, false
		}
		return v, true
	}
	st, ok := in.inputStartTime(now)
	if !ok {
		return 0, false
	}
	return in.queueStart.Add(queuePTS).Sub(st), true
}

func (in *Input) hasCoverageUntil(target time.Duration) bool {
	if len(in.batches) == 0 {
		return false
	}
	return in.batches[len(in.batches)-1].EndPTS >= target
}

// checkReadyForRange reports whether this input can answer a query
// covering up to windowEnd, pulling batches as needed.
func (in *Input) checkReadyForRange(windowEnd time.Duration, now time.Time) bool {
	if in.proc.DidReceiveEOS() {
		if len(in.batches) == 0 {
			in.eosSent = true
		}
		return true
	}

	target, ok := in.translateToInputPTS(windowEnd, now)
	if !ok {
		if in.offset != nil {
			return *in.offset > windowEnd
		}
		return true
	}

	for !in.hasCoverageUntil(target) {
		if !in.tryEnqueueBatch(now) {
			return false
		}
	}
	return true
}

// dropOldBatches discards every batch that ends at or before
// windowStart; it can never again contribute to a later window.
func (in *Input) dropOldBatches(windowStart time.Duration) {
	cut := 0
	for cut < len(in.batches) && in.batches[cut].EndPTS <= windowStart {
		cut++
	}
	in.batches = in.batches[cut:]
}

// dropOldBatchesBeforeStart prunes batches that are already in the past
// relative to wall-clock "now", mirroring
// videoqueue.Input.dropOldFramesBeforeStart.
func (in *Input) dropOldBatchesBeforeStart(now time.Time) {
	if in.offset != nil {
		return
	}

	st, ok := in.inputStartTime(now)
	if !ok {
		return
	}

	for {
		if len(in.batches) == 0 && !in.tryEnqueueBatch(now) {
			return
		}
		if len(in.batches) == 0 {
			return
		}
		end := st.Add(in.batches[0].EndPTS)
		if end.After(now) || end.Equal(now) {
			return
		}
		in.batches = in.batches[1:]
	}
}

// getWindow returns this input's samples for [windowStart, windowEnd),
// translated into its own timeline and aligned by pkg/audiomix. Returns
// ok=false only when the input has never produced any data at all and
// carries no explicit offset, meaning it has nothing to contribute yet.
func (in *Input) getWindow(windowStart, windowEnd time.Duration, sampleRate int, now time.Time) ([]pipeevent.StereoSample, bool) {
	in.checkReadyForRange(windowEnd, now)

	var localStart, localEnd time.Duration
	if in.offset != nil {
		localStart = windowStart - *in.offset
		localEnd = windowEnd - *in.offset
	} else {
		st, ok := in.inputStartTime(now)
		if !ok {
			return nil, false
		}
		localStart = in.queueStart.Add(windowStart).Sub(st)
		localEnd = in.queueStart.Add(windowEnd).Sub(st)
	}

	in.dropOldBatches(localStart)

	samples := audiomix.FrameInputSamples(localStart, localEnd, in.batches, sampleRate)
	return samples, true
}
