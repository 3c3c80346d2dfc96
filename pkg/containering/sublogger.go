package containering

import (
	"io"

	"github.com/rs/zerolog"
)

// SubLogger is a dedicated structured-event sink for HLS/RTMP container
// timing, separate from the pipeline-wide slog-based internal/pipelog
// logger: container discontinuity and drift events are high-volume and
// benefit from zerolog's allocation-free field encoding when a caller
// wants to ship them to a different sink (e.g. a metrics pipe) than the
// rest of the pipeline's logs.
type SubLogger struct {
	zl zerolog.Logger
}

// NewSubLogger wraps w as a zerolog JSON sink.
func NewSubLogger(w io.Writer) *SubLogger {
	return &SubLogger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Discontinuity logs a detected PTS/DTS discontinuity for one stream.
func (s *SubLogger) Discontinuity(streamID string, isDTS bool, jump, newOffset int64) {
	s.zl.Warn().
		Str("stream_id", streamID).
		Bool("dts", isDTS).
		Int64("jump_ns", jump).
		Int64("offset_ns", newOffset).
		Msg("container timestamp discontinuity")
}

// DriftBump logs an HLS buffer-drain drift correction.
func (s *SubLogger) DriftBump(streamID string, bumpNS int64) {
	s.zl.Debug().
		Str("stream_id", streamID).
		Int64("bump_ns", bumpNS).
		Msg("HLS drift recovery bump applied")
}

// ChecksumFailure logs a corrupt MPEG-TS/FLV chunk rejected by
// ValidateTSPacket/ValidateFLVTag.
func (s *SubLogger) ChecksumFailure(streamID string, reason string) {
	s.zl.Error().
		Str("stream_id", streamID).
		Str("reason", reason).
		Msg("container chunk failed checksum validation")
}
