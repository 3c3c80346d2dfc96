package encbridge

import (
	"github.com/pion/rtp"

	"github.com/avmux/compositor-core/pkg/pipeevent"
)

// Payloader fragments one encoded chunk into RTP payloads, matching
// pion/rtp/codecs' H264Payloader/OpusPayloader/VP8Payloader shape as
// used by the teacher's writeVideoSampleDirect.
type Payloader interface {
	Payload(mtu uint16, payload []byte) [][]byte
}

// PacketWriter writes one fully-formed RTP packet downstream, e.g. a
// webrtc.TrackLocalStaticRTP.WriteRTP.
type PacketWriter func(pkt *rtp.Packet) error

// RTPPayloadSink adapts an encoder's output chunks to RTP packets for
// WHIP/WHEP/RTP outputs, grounded on the teacher's
// writeVideoSampleDirect (NALU fragmentation via codecs.H264Payloader,
// marker bit on the last fragment of each chunk, monotonic
// sequence numbering) and RescaleHalfUp for the PTS-to-RTP-timestamp
// conversion spec §4.11 requires.
type RTPPayloadSink struct {
	payloader   Payloader
	clockRate   uint32
	mtu         uint16
	ssrc        uint32
	payloadType uint8
	write       PacketWriter

	seq uint16
}

// NewRTPPayloadSink constructs a sink writing packets for one SSRC/
// payload type pair. mtu bounds each RTP payload's size, matching the
// teacher's fragmentation MTU.
func NewRTPPayloadSink(payloader Payloader, clockRate uint32, mtu uint16, ssrc uint32, payloadType uint8, write PacketWriter) *RTPPayloadSink {
	return &RTPPayloadSink{payloader: payloader, clockRate: clockRate, mtu: mtu, ssrc: ssrc, payloadType: payloadType, write: write}
}

// WriteChunk fragments chunk.Data via the configured Payloader and
// writes one RTP packet per fragment, setting the marker bit on the
// final fragment.
func (s *RTPPayloadSink) WriteChunk(chunk pipeevent.EncodedOutputChunk) error {
	fragments := s.payloader.Payload(s.mtu, chunk.Data)
	ts := uint32(RescaleHalfUp(chunk.PTS, s.clockRate))

	for i, frag := range fragments {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == len(fragments)-1,
				PayloadType:    s.payloadType,
				SequenceNumber: s.seq,
				Timestamp:      ts,
				SSRC:           s.ssrc,
			},
			Payload: frag,
		}
		if err := s.write(pkt); err != nil {
			return err
		}
		s.seq++
	}
	return nil
}

// Close is a no-op for RTP output: there is no trailer to write, only
// container muxers need a close-time flush.
func (s *RTPPayloadSink) Close() error {
	return nil
}
