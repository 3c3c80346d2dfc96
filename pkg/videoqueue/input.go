package videoqueue

import (
	"time"

	"github.com/avmux/compositor-core/pkg/inputproc"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
)

// Input is one registered video input's ring buffer and bookkeeping,
// ported from VideoQueueInput.
type Input struct {
	id pipeids.InputID

	// queue holds frames in ascending PTS order, PTS=0 meaning the
	// start of the stream as the InputProcessor sees it.
	queue []pipeevent.Frame

	source Source
	proc   *inputproc.InputProcessor[pipeevent.Frame]

	required bool
	offset   *time.Duration

	// queueStart is the wall-clock instant the owning Queue began
	// ticking; queue PTS values are durations relative to it.
	queueStart time.Time

	eosSent        bool
	firstFrameSent bool
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// tryEnqueueFrame drains one event from source, if any is immediately
// available, feeding it through the InputProcessor and appending any
// resulting Data frame to the ring. Returns false once the channel has
// no pending event (mirrors TryRecvError in the original).
func (in *Input) tryEnqueueFrame(now time.Time) bool {
	select {
	case evt, ok := <-in.source:
		if !ok {
			return false
		}
		for _, out := range in.proc.Process(now, evt) {
			if !out.IsEOS() {
				in.queue = append(in.queue, out.Data)
			}
		}
		return true
	default:
		return false
	}
}

// inputStartTime returns the wall-clock instant this input switched
// from buffering to ready, pulling frames until one is available or the
// source channel is drained, ported from VideoQueueInput::input_start_time.
func (in *Input) inputStartTime(now time.Time) (time.Time, bool) {
	for {
		if st := in.proc.StartTime(); st != nil {
			return *st, true
		}
		if !in.tryEnqueueFrame(now) {
			return time.Time{}, false
		}
	}
}

// inputPTSFromQueuePTS translates a queue PTS into this input's own
// timeline, ported from VideoQueueInput::input_pts_from_queue_pts.
func (in *Input) inputPTSFromQueuePTS(queuePTS time.Duration, now time.Time) (time.Duration, bool) {
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
	d := in.queueStart.Add(queuePTS).Sub(st)
	if d < 0 {
		return 0, false
	}
	return d, true
}

// checkReadyForPTS reports whether this input has enough data to answer
// a query for nextBufferPTS, pulling frames as needed, ported from
// VideoQueueInput::check_ready_for_pts.
func (in *Input) checkReadyForPTS(nextBufferPTS time.Duration, now time.Time) bool {
	if in.proc.DidReceiveEOS() {
		return true
	}

	target, ok := in.inputPTSFromQueuePTS(nextBufferPTS, now)
	if !ok {
		if in.offset != nil {
			return *in.offset > nextBufferPTS
		}
		return true
	}

	hasFrameForPTS := func() bool {
		if len(in.queue) == 0 {
			return false
		}
		return in.queue[len(in.queue)-1].PTS >= target
	}

	for !hasFrameForPTS() {
		if !in.tryEnqueueFrame(now) {
			return false
		}
	}
	return true
}

// dropOldFrames discards frames older than whichever buffered frame is
// closest to nextBufferPTS, ported from VideoQueueInput::drop_old_frames.
func (in *Input) dropOldFrames(nextBufferPTS time.Duration, now time.Time) {
	target, ok := in.inputPTSFromQueuePTS(nextBufferPTS, now)
	if !ok {
		return
	}

	for {
		if len(in.queue) > 0 {
			bestIdx := 0
			bestDiff := absDuration(in.queue[0].PTS - target)
			for i := 1; i < len(in.queue); i++ {
				d := absDuration(in.queue[i].PTS - target)
				if d < bestDiff {
					bestDiff = d
					bestIdx = i
				}
			}
			in.queue = in.queue[bestIdx:]
		}

		if len(in.queue) > 0 {
			return
		}
		if !in.tryEnqueueFrame(now) {
			return
		}
	}
}

// dropOldFramesBeforeStart prunes frames that are already in the past
// relative to wall-clock "now", called on every scheduler tick while the
// scheduler is Idle. Ported from VideoQueueInput::drop_old_frames_before_start.
func (in *Input) dropOldFramesBeforeStart(now time.Time) {
	if in.offset != nil {
		return
	}

	st, ok := in.inputStartTime(now)
	if !ok {
		return
	}

	for {
		if len(in.queue) == 0 && !in.tryEnqueueFrame(now) {
			return
		}
		if len(in.queue) == 0 {
			return
		}
		if st.Add(in.queue[0].PTS).After(now) || st.Add(in.queue[0].PTS).Equal(now) {
			return
		}
		in.queue = in.queue[1:]
	}
}

// getFrame returns the frame closest to bufferPTS, dropping everything
// older, ported from VideoQueueInput::get_frame. It does not check
// whether the input is required.
func (in *Input) getFrame(bufferPTS time.Duration, now time.Time) (pipeevent.PipelineEvent[pipeevent.Frame], bool) {
	in.checkReadyForPTS(bufferPTS, now)
	in.dropOldFrames(bufferPTS, now)

	st, ok := in.inputStartTime(now)
	if !ok {
		return pipeevent.PipelineEvent[pipeevent.Frame]{}, false
	}

	var frame *pipeevent.Frame
	switch {
	case in.offset != nil && *in.offset > bufferPTS:
		frame = nil
	case in.offset != nil:
		if len(in.queue) > 0 {
			f := in.queue[0]
			f.PTS += *in.offset
			frame = &f
		}
	default:
		if len(in.queue) > 0 {
			f := in.queue[0]
			f.PTS = st.Add(f.PTS).Sub(in.queueStart)
			frame = &f
		}
	}

	if in.proc.DidReceiveEOS() && len(in.queue) == 1 {
		in.queue = in.queue[1:]
	}

	if in.proc.DidReceiveEOS() && frame == nil && !in.eosSent {
		in.eosSent = true
		return pipeevent.EOS[pipeevent.Frame](), true
	}

	if frame != nil {
		in.firstFrameSent = true
		return pipeevent.Data(*frame), true
	}
	return pipeevent.PipelineEvent[pipeevent.Frame]{}, false
}
