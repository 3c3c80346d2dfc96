package encbridge

import "github.com/avmux/compositor-core/pkg/pipeevent"

// ContainerMuxer is the subset of a container muxer (MP4/HLS/RTMP) that
// MuxerSink drives. WriteChunk receives pts and dts already rescaled to
// the time base MuxerSink was constructed with.
type ContainerMuxer interface {
	WriteChunk(chunk pipeevent.EncodedOutputChunk, pts, dts int64) error
	WriteTrailer() error
}

// MuxerSink adapts a ContainerMuxer to ChunkSink for MP4/HLS/RTMP
// outputs. Spec §4.11 requires EOS to translate into a write_trailer
// call so the container is left in a demuxable state; Close does
// exactly that.
type MuxerSink struct {
	muxer     ContainerMuxer
	timeBase  uint32
	trailerOK bool
}

// NewMuxerSink constructs a sink writing chunks rescaled to timeBase
// ticks per second.
func NewMuxerSink(muxer ContainerMuxer, timeBase uint32) *MuxerSink {
	return &MuxerSink{muxer: muxer, timeBase: timeBase}
}

// WriteChunk rescales chunk.PTS/DTS from 1ns units to the muxer's time
// base with half-up rounding before handing the chunk to the muxer. A
// nil DTS rescales to the same value as PTS, matching streams with no
// B-frames where decode and presentation order coincide.
func (s *MuxerSink) WriteChunk(chunk pipeevent.EncodedOutputChunk) error {
	pts := RescaleHalfUp(chunk.PTS, s.timeBase)
	dts := pts
	if chunk.DTS != nil {
		dts = RescaleHalfUp(*chunk.DTS, s.timeBase)
	}
	return s.muxer.WriteChunk(chunk, pts, dts)
}

// Close writes the container trailer. Safe to call at most once; a
// second call is a caller bug, not guarded against here since
// VideoBridge/AudioBridge only ever call it from their own single flush
// path.
func (s *MuxerSink) Close() error {
	return s.muxer.WriteTrailer()
}
