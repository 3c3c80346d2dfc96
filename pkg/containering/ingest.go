package containering

import "time"

// StreamIngest is the C5 entry point a container demuxer feeds raw
// chunks through before they reach the PTS/DTS Tracker: it validates
// each chunk's integrity trailer, logs discontinuities and checksum
// failures through a SubLogger, and exposes the ReconnectLimiter an
// RTMP source should wait on after the underlying connection drops.
type StreamIngest struct {
	streamID  string
	pts       *Tracker
	log       *SubLogger
	reconnect *ReconnectLimiter
	isFLV     bool
}

// NewTSIngest builds a StreamIngest for an MPEG-TS (HLS) source.
func NewTSIngest(streamID string, pts *Tracker, log *SubLogger, reconnect *ReconnectLimiter) *StreamIngest {
	return &StreamIngest{streamID: streamID, pts: pts, log: log, reconnect: reconnect}
}

// NewFLVIngest builds a StreamIngest for an RTMP/FLV source.
func NewFLVIngest(streamID string, pts *Tracker, log *SubLogger, reconnect *ReconnectLimiter) *StreamIngest {
	return &StreamIngest{streamID: streamID, pts: pts, log: log, reconnect: reconnect, isFLV: true}
}

// Observe validates chunk's integrity trailer, then feeds observedPTS
// through the Tracker, logging whichever of the two outcomes occurred.
// A checksum failure skips the Tracker update entirely: a torn chunk's
// timestamp is not trustworthy enough to reason about discontinuity.
func (si *StreamIngest) Observe(chunk []byte, observedPTS time.Duration) (corrected time.Duration, ok bool) {
	var err error
	if si.isFLV {
		err = ValidateFLVTag(chunk)
	} else {
		err = ValidateTSPacket(chunk)
	}
	if err != nil {
		if si.log != nil {
			si.log.ChecksumFailure(si.streamID, err.Error())
		}
		return 0, false
	}

	prevCorrection := si.pts.correction
	corrected, discontinuous := si.pts.Observe(observedPTS)
	if discontinuous && si.log != nil {
		si.log.Discontinuity(si.streamID, false, int64(si.pts.correction-prevCorrection), int64(si.pts.Offset()))
	}
	return corrected, true
}

// ReconnectLimiter exposes the pacing limiter the source's reconnect
// loop should wait on between attempts.
func (si *StreamIngest) ReconnectLimiter() *ReconnectLimiter { return si.reconnect }
