package pipeline

import (
	"time"

	"github.com/avmux/compositor-core/internal/pipeerr"
	"github.com/avmux/compositor-core/pkg/audioqueue"
	"github.com/avmux/compositor-core/pkg/inputproc"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
	"github.com/avmux/compositor-core/pkg/videoqueue"
)

// InputSpec describes one input's registration, per spec §3's Input
// entity. A decoder worker somewhere upstream (RTP/jitter-buffer,
// HLS/RTMP container timing, or an MP4 demuxer) owns VideoSource and
// AudioSource; either or both may be nil, but not both.
type InputSpec struct {
	Required bool
	// Offset pins this input's first frame/batch to a fixed queue PTS
	// rather than deriving it from wall-clock arrival (spec §3's
	// offset_from_start).
	Offset *time.Duration
	// BufferDuration is passed to the input processor, which stores it;
	// data is forwarded without waiting for it to elapse.
	BufferDuration time.Duration
	// Gain is this input's mix volume, applied before summation in every
	// output's audio batch (only meaningful when AudioSource != nil).
	Gain float64

	VideoSource videoqueue.Source
	AudioSource audioqueue.Source
}

// inputEntry is the control plane's bookkeeping record for one
// registered input, mirroring the teacher's CameraStream record in
// pkg/nest/multi_manager.go.
type inputEntry struct {
	id       pipeids.InputID
	hasVideo bool
	hasAudio bool
}

// RegisterInput admits a new input into the shared video/audio queues,
// returning its freshly generated InputID.
func (p *Pipeline) RegisterInput(spec InputSpec) (pipeids.InputID, error) {
	var id pipeids.InputID
	err := p.submit(func() error {
		if spec.VideoSource == nil && spec.AudioSource == nil {
			return pipeerr.New(pipeerr.CodeNoVideoOrAudioForOutput, nil)
		}

		id = pipeids.NewInputID()
		firstPTS := &inputproc.FirstPTSCell{}
		queueStart := p.sp.Instant()

		entry := &inputEntry{id: id}

		if spec.VideoSource != nil {
			proc := inputproc.New[pipeevent.Frame](spec.BufferDuration, firstPTS, spec.Required, p.sp, p.logger)
			p.video.AddInput(id, spec.VideoSource, videoqueue.Options{Required: spec.Required, Offset: spec.Offset}, proc, queueStart)
			entry.hasVideo = true
		}
		if spec.AudioSource != nil {
			proc := inputproc.New[pipeevent.InputAudioSamples](spec.BufferDuration, firstPTS, spec.Required, p.sp, p.logger)
			p.audio.AddInput(id, spec.AudioSource, audioqueue.Options{Required: spec.Required, Offset: spec.Offset, Gain: spec.Gain}, proc, queueStart)
			entry.hasAudio = true
		}

		p.mu.Lock()
		p.inputs[id] = entry
		p.mu.Unlock()
		return nil
	})
	return id, err
}

// UnregisterInput drops an input from both queues. Returns a NotFound
// pipeerr.Error if id is unknown.
func (p *Pipeline) UnregisterInput(id pipeids.InputID) error {
	return p.submit(func() error {
		p.mu.Lock()
		_, ok := p.inputs[id]
		if ok {
			delete(p.inputs, id)
		}
		p.mu.Unlock()

		if !ok {
			return pipeerr.NotFound(string(id))
		}

		p.video.RemoveInput(id)
		p.audio.RemoveInput(id)
		return nil
	})
}
