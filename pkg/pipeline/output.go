package pipeline

import (
	"sync/atomic"

	"github.com/avmux/compositor-core/internal/pipeerr"
	"github.com/avmux/compositor-core/pkg/codecneg"
	"github.com/avmux/compositor-core/pkg/encbridge"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeids"
	"github.com/avmux/compositor-core/pkg/videoqueue"
)

// VideoEncoderFactory builds a VideoEncoder once NegotiateVideo has
// picked a concrete capability. The caller owns the codec binding
// itself (spec §1 scopes codec implementations out of the core).
type VideoEncoderFactory func(codecneg.Capability) (encbridge.VideoEncoder, error)

// AudioEncoderFactory is VideoEncoderFactory's audio analogue.
type AudioEncoderFactory func(codecneg.Capability) (encbridge.AudioEncoder, error)

// OutputSpec describes one output's registration, per spec §3's Output
// entity. At least one of the video or audio legs must be populated.
type OutputSpec struct {
	Scene        Scene
	EndCondition EndCondition

	// Renderer composites the shared video tick's frame-set into this
	// output's own frame. Required when VideoSink is set.
	Renderer Renderer

	VideoPrefs      []codecneg.VideoPreference
	VideoCaps       []codecneg.Capability
	NewVideoEncoder VideoEncoderFactory
	VideoSink       encbridge.ChunkSink

	AudioPrefs      []codecneg.AudioPreference
	AudioCaps       []codecneg.Capability
	NewAudioEncoder AudioEncoderFactory
	AudioSink       encbridge.ChunkSink

	// InputBuffer sizes the channel between the fan-out loop and this
	// output's encoder bridges. A full buffer drops the newest sample,
	// without logging it, rather than blocking the shared fan-out loop
	// and starving every other output.
	InputBuffer int
}

// outputEntry is the control plane's live record for one registered
// output.
type outputEntry struct {
	id           pipeids.OutputID
	endCondition EndCondition
	scene        atomic.Value

	renderer Renderer

	videoIn     chan pipeevent.PipelineEvent[pipeevent.Frame]
	audioIn     chan pipeevent.PipelineEvent[pipeevent.OutputSamples]
	videoBridge *encbridge.VideoBridge
	audioBridge *encbridge.AudioBridge
}

func (o *outputEntry) currentScene() Scene {
	v := o.scene.Load()
	if v == nil {
		return nil
	}
	return v.(sceneBox).v
}

// sceneBox wraps Scene so a nil interface value can still be stored in
// an atomic.Value, which panics on a bare nil.
type sceneBox struct{ v Scene }

func (o *outputEntry) setScene(s Scene) {
	o.scene.Store(sceneBox{v: s})
}

func (o *outputEntry) submitVideo(batch videoqueue.Batch) {
	if o.videoIn == nil {
		return
	}
	frame, err := o.renderer.Render(batch, o.currentScene())
	if err != nil {
		return
	}
	select {
	case o.videoIn <- pipeevent.Data(frame):
	default:
	}
}

func (o *outputEntry) submitAudio(out pipeevent.OutputSamples) {
	if o.audioIn == nil {
		return
	}
	select {
	case o.audioIn <- pipeevent.Data(out):
	default:
	}
}

// close signals EOS to both bridges and waits for their worker
// goroutines to drain and flush.
func (o *outputEntry) close() {
	if o.videoIn != nil {
		o.videoIn <- pipeevent.EOS[pipeevent.Frame]()
		close(o.videoIn)
		o.videoBridge.Wait()
	}
	if o.audioIn != nil {
		o.audioIn <- pipeevent.EOS[pipeevent.OutputSamples]()
		close(o.audioIn)
		o.audioBridge.Wait()
	}
}

const defaultOutputInputBuffer = 8

// RegisterOutput negotiates codecs against the supplied capability
// sets, builds the requested encoders, and starts their bridges.
func (p *Pipeline) RegisterOutput(spec OutputSpec) (pipeids.OutputID, error) {
	var id pipeids.OutputID
	err := p.submit(func() error {
		if spec.VideoSink == nil && spec.AudioSink == nil {
			return pipeerr.New(pipeerr.CodeNoVideoOrAudioForOutput, nil)
		}

		buf := spec.InputBuffer
		if buf <= 0 {
			buf = defaultOutputInputBuffer
		}

		entry := &outputEntry{endCondition: spec.EndCondition, renderer: spec.Renderer}
		entry.setScene(spec.Scene)

		if spec.VideoSink != nil {
			cap, _, err := codecneg.NegotiateVideo(spec.VideoPrefs, spec.VideoCaps)
			if err != nil {
				return err
			}
			enc, err := spec.NewVideoEncoder(cap)
			if err != nil {
				return pipeerr.New(pipeerr.CodeEncoderInit, err)
			}
			entry.videoIn = make(chan pipeevent.PipelineEvent[pipeevent.Frame], buf)
			entry.videoBridge = encbridge.NewVideoBridge(enc, spec.VideoSink, entry.videoIn, p.logger)
			entry.videoBridge.Start()
		}

		if spec.AudioSink != nil {
			cap, _, err := codecneg.NegotiateAudio(spec.AudioPrefs, spec.AudioCaps)
			if err != nil {
				return err
			}
			enc, err := spec.NewAudioEncoder(cap)
			if err != nil {
				return pipeerr.New(pipeerr.CodeEncoderInit, err)
			}
			entry.audioIn = make(chan pipeevent.PipelineEvent[pipeevent.OutputSamples], buf)
			entry.audioBridge = encbridge.NewAudioBridge(enc, spec.AudioSink, entry.audioIn, p.logger)
			entry.audioBridge.Start()
		}

		id = pipeids.NewOutputID()
		entry.id = id

		p.mu.Lock()
		p.outputs[id] = entry
		p.mu.Unlock()
		return nil
	})
	return id, err
}

// UnregisterOutput flushes and closes an output's encoder bridges and
// removes it from the registry.
func (p *Pipeline) UnregisterOutput(id pipeids.OutputID) error {
	var entry *outputEntry
	err := p.submit(func() error {
		p.mu.Lock()
		e, ok := p.outputs[id]
		if ok {
			delete(p.outputs, id)
		}
		p.mu.Unlock()

		if !ok {
			return pipeerr.NotFound(string(id))
		}
		entry = e
		return nil
	})
	if err != nil {
		return err
	}
	entry.close()
	return nil
}

// UpdateOutput swaps a registered output's scene (spec §4's "UpdateOutput
// (scene change)"). Safe to call while the output is actively rendering:
// the fan-out loop always reads the latest stored scene.
func (p *Pipeline) UpdateOutput(id pipeids.OutputID, scene Scene) error {
	return p.submit(func() error {
		p.mu.RLock()
		entry, ok := p.outputs[id]
		p.mu.RUnlock()

		if !ok {
			return pipeerr.NotFound(string(id))
		}
		entry.setScene(scene)
		return nil
	})
}

// RequestKeyframe forwards a keyframe request to the given output's
// video encoder, per spec §4.11's keyframe-request protocol. Returns an
// error if the output has no video leg.
func (p *Pipeline) RequestKeyframe(id pipeids.OutputID) error {
	return p.submit(func() error {
		p.mu.RLock()
		entry, ok := p.outputs[id]
		p.mu.RUnlock()

		if !ok {
			return pipeerr.NotFound(string(id))
		}
		if entry.videoBridge == nil {
			return pipeerr.New(pipeerr.CodeNoVideoCodecNegotiated, nil)
		}
		entry.videoBridge.RequestKeyframe()
		return nil
	})
}
