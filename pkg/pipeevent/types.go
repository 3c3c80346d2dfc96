// Package pipeevent defines the pipeline's wire-level data model: the
// PipelineEvent sum type, Frame/PixelBuffer, InputAudioSamples, and the
// encoded chunk types that flow between pipeline stages.
package pipeevent

import "time"

// Kind tags a PipelineEvent as carrying data or signaling end-of-stream.
type Kind int

const (
	KindData Kind = iota
	KindEOS
)

// PipelineEvent is the tagged sum type every inter-stage channel
// transports: either a data payload or an end-of-stream marker.
type PipelineEvent[T any] struct {
	Kind Kind
	Data T
}

// Data wraps a value as a Data(T) event.
func Data[T any](v T) PipelineEvent[T] {
	return PipelineEvent[T]{Kind: KindData, Data: v}
}

// EOS constructs an EOS event for type T.
func EOS[T any]() PipelineEvent[T] {
	return PipelineEvent[T]{Kind: KindEOS}
}

// IsEOS reports whether this event is the end-of-stream marker.
func (e PipelineEvent[T]) IsEOS() bool {
	return e.Kind == KindEOS
}

// Resolution is a frame's pixel dimensions.
type Resolution struct {
	Width  int
	Height int
}

// PixelFormat tags the concrete layout of a PixelBuffer.
type PixelFormat int

const (
	PixelFormatYUV420 PixelFormat = iota
	PixelFormatYUV422
	PixelFormatYUV444
	PixelFormatUYVY422
	PixelFormatYUYV422
	PixelFormatARGB
	PixelFormatBGRA
	PixelFormatOpaqueGPUHandle
)

// PixelBuffer is a tagged variant over supported pixel layouts. Exactly
// one of Planes, Packed, or GPUHandle is populated, selected by Format.
type PixelBuffer struct {
	Format PixelFormat

	// Planes holds planar YUV420/422/444 data, one []byte per plane.
	Planes [][]byte

	// Packed holds interleaved/packed formats (UYVY422, YUYV422, ARGB,
	// BGRA) as a single contiguous buffer.
	Packed []byte

	// GPUHandle is an opaque handle when Format is PixelFormatOpaqueGPUHandle.
	GPUHandle any
}

// Frame is an immutable video frame. Ownership moves from decoder to
// queue to renderer to drop; nothing mutates a Frame after creation.
type Frame struct {
	PTS        time.Duration
	Resolution Resolution
	Data       PixelBuffer
}

// SampleLayout tags whether InputAudioSamples carries mono or stereo data.
type SampleLayout int

const (
	SampleLayoutMono SampleLayout = iota
	SampleLayoutStereo
)

// StereoSample is one (left, right) pair, normalized to [-1, 1].
type StereoSample struct {
	Left  float64
	Right float64
}

// InputAudioSamples is a batch of equidistant samples covering
// [StartPTS, EndPTS). Exactly one of Mono or Stereo is populated,
// selected by Layout.
type InputAudioSamples struct {
	StartPTS time.Duration
	EndPTS   time.Duration
	Layout   SampleLayout
	Mono     []float64
	Stereo   []StereoSample
}

// Len returns the number of samples in the batch regardless of layout.
func (s InputAudioSamples) Len() int {
	if s.Layout == SampleLayoutMono {
		return len(s.Mono)
	}
	return len(s.Stereo)
}

// SampleRate derives the implied sample rate from batch length and
// duration. Returns 0 for an empty or zero-duration batch.
func (s InputAudioSamples) SampleRate() float64 {
	dur := (s.EndPTS - s.StartPTS).Seconds()
	if dur <= 0 {
		return 0
	}
	return float64(s.Len()) / dur
}

// OutputSamples is the mixed output of the audio queue/mixer for one
// output batch window.
type OutputSamples struct {
	StartPTS time.Duration
	EndPTS   time.Duration
	Samples  []StereoSample
}

// AudioCodec enumerates supported audio codecs.
type AudioCodec int

const (
	AudioCodecOpus AudioCodec = iota
	AudioCodecAAC
)

// VideoCodec enumerates supported video codecs.
type VideoCodec int

const (
	VideoCodecH264 VideoCodec = iota
	VideoCodecVP8
	VideoCodecVP9
)

// ChunkKind tags whether an encoded chunk carries audio or video, and
// which codec it was produced with.
type ChunkKind struct {
	IsAudio    bool
	AudioCodec AudioCodec
	VideoCodec VideoCodec
}

// EncodedInputChunk is a chunk of encoded media coming from a decoder-less
// passthrough input (e.g. already-encoded RTP payloads before decode).
type EncodedInputChunk struct {
	Data       []byte
	PTS        time.Duration
	DTS        *time.Duration
	Kind       ChunkKind
	IsKeyframe bool
}

// EncodedOutputChunk is a chunk of encoder output ready for payloading or
// muxing.
type EncodedOutputChunk struct {
	Data       []byte
	PTS        time.Duration
	DTS        *time.Duration
	Kind       ChunkKind
	IsKeyframe bool
}
