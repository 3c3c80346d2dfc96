// Package encbridge hosts the encoder worker and its downstream
// payloader/muxer hand-off (spec §4.11, component C11): one goroutine
// per output track pulls raw frames or sample batches off a bounded
// channel, runs them through an encoder, and writes the resulting
// chunks to whichever ChunkSink backs that track (an RTP payloader for
// WHIP/WHEP/RTP outputs, or a container muxer for MP4/HLS/RTMP
// outputs). The worker-goroutine shape and its shutdown sequencing are
// grounded on the teacher's pkg/bridge/bridge.go: its per-track
// RTCP-reader goroutines for the concurrency pattern, and Close()'s
// stop-then-drain ordering for the flush protocol here.
package encbridge

import (
	"sync"
	"sync/atomic"

	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/pipeevent"
)

// ChunkSink is the downstream consumer of encoder output: either an
// RTPPayloadSink fragmenting into RTP packets, or a MuxerSink handing
// chunks to a container muxer. Close is called once, after the last
// WriteChunk, when the upstream source reaches EOS.
type ChunkSink interface {
	WriteChunk(chunk pipeevent.EncodedOutputChunk) error
	Close() error
}

// VideoEncoder turns raw frames into encoded chunks. forceKeyframe asks
// the encoder to emit an IDR/keyframe for this call regardless of its
// own GOP cadence.
type VideoEncoder interface {
	Encode(frame pipeevent.Frame, forceKeyframe bool) ([]pipeevent.EncodedOutputChunk, error)
	Flush() ([]pipeevent.EncodedOutputChunk, error)
}

// AudioEncoder is VideoEncoder's audio analogue. Audio has no keyframe
// concept.
type AudioEncoder interface {
	Encode(batch pipeevent.OutputSamples) ([]pipeevent.EncodedOutputChunk, error)
	Flush() ([]pipeevent.EncodedOutputChunk, error)
}

// VideoBridge hosts one video encoder worker. RequestKeyframe sets a
// one-shot flag consumed by the next Encode call, mirroring the
// teacher's readRTCP handling of PictureLossIndication/FullIntraRequest
// by exposing that request as an API instead of only a log line.
type VideoBridge struct {
	encoder VideoEncoder
	sink    ChunkSink
	input   <-chan pipeevent.PipelineEvent[pipeevent.Frame]
	logger  *pipelog.Logger

	keyframePending atomic.Bool

	wg sync.WaitGroup
}

// NewVideoBridge constructs a VideoBridge. Call Start to begin
// consuming input.
func NewVideoBridge(encoder VideoEncoder, sink ChunkSink, input <-chan pipeevent.PipelineEvent[pipeevent.Frame], logger *pipelog.Logger) *VideoBridge {
	return &VideoBridge{encoder: encoder, sink: sink, input: input, logger: logger}
}

// RequestKeyframe sets the one-shot keyframe flag. Safe to call from
// any goroutine, typically an RTCP reader handling PLI/FIR.
func (b *VideoBridge) RequestKeyframe() {
	b.keyframePending.Store(true)
}

// Start runs the encoder worker in its own goroutine until input is
// closed or an EOS event is observed. Wait blocks until it exits.
func (b *VideoBridge) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run()
	}()
}

// Wait blocks until the worker goroutine started by Start has
// returned.
func (b *VideoBridge) Wait() {
	b.wg.Wait()
}

func (b *VideoBridge) run() {
	for evt := range b.input {
		if evt.IsEOS() {
			b.flush()
			return
		}
		force := b.keyframePending.Swap(false)
		chunks, err := b.encoder.Encode(evt.Data, force)
		if err != nil {
			b.logger.Warn("video encode failed", "pts", evt.Data.PTS, "err", err)
			continue
		}
		b.writeAll(chunks)
	}
}

func (b *VideoBridge) flush() {
	chunks, err := b.encoder.Flush()
	if err != nil {
		b.logger.Warn("video encoder flush failed", "err", err)
	}
	b.writeAll(chunks)
	if err := b.sink.Close(); err != nil {
		b.logger.Warn("video sink close failed", "err", err)
	}
}

func (b *VideoBridge) writeAll(chunks []pipeevent.EncodedOutputChunk) {
	for _, c := range chunks {
		if err := b.sink.WriteChunk(c); err != nil {
			b.logger.Warn("video chunk sink write failed", "pts", c.PTS, "err", err)
		}
	}
}

// AudioBridge hosts one audio encoder worker. It has no keyframe
// concept, otherwise mirroring VideoBridge's run/flush shape.
type AudioBridge struct {
	encoder AudioEncoder
	sink    ChunkSink
	input   <-chan pipeevent.PipelineEvent[pipeevent.OutputSamples]
	logger  *pipelog.Logger

	wg sync.WaitGroup
}

// NewAudioBridge constructs an AudioBridge. Call Start to begin
// consuming input.
func NewAudioBridge(encoder AudioEncoder, sink ChunkSink, input <-chan pipeevent.PipelineEvent[pipeevent.OutputSamples], logger *pipelog.Logger) *AudioBridge {
	return &AudioBridge{encoder: encoder, sink: sink, input: input, logger: logger}
}

// Start runs the encoder worker in its own goroutine until input is
// closed or an EOS event is observed.
func (b *AudioBridge) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run()
	}()
}

// Wait blocks until the worker goroutine started by Start has
// returned.
func (b *AudioBridge) Wait() {
	b.wg.Wait()
}

func (b *AudioBridge) run() {
	for evt := range b.input {
		if evt.IsEOS() {
			b.flush()
			return
		}
		chunks, err := b.encoder.Encode(evt.Data)
		if err != nil {
			b.logger.Warn("audio encode failed", "pts", evt.Data.StartPTS, "err", err)
			continue
		}
		b.writeAll(chunks)
	}
}

func (b *AudioBridge) flush() {
	chunks, err := b.encoder.Flush()
	if err != nil {
		b.logger.Warn("audio encoder flush failed", "err", err)
	}
	b.writeAll(chunks)
	if err := b.sink.Close(); err != nil {
		b.logger.Warn("audio sink close failed", "err", err)
	}
}

func (b *AudioBridge) writeAll(chunks []pipeevent.EncodedOutputChunk) {
	for _, c := range chunks {
		if err := b.sink.WriteChunk(c); err != nil {
			b.logger.Warn("audio chunk sink write failed", "pts", c.PTS, "err", err)
		}
	}
}
