// Package rtpdemux implements the RTP/RTCP demultiplexer (spec §4.4,
// component C4): it splits RTP from RTCP by payload type, routes RTP
// packets to an audio or video track by payload type, latches SSRC per
// track, and applies RTCP Sender Reports / BYE to the timestamp mapper
// and EOS signaling (ground: teacher's pkg/rtp/h264.go and aac.go
// depacketizers, and bridge.go's RTCP packet-type switch).
package rtpdemux

import (
	"fmt"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/jitter"
)

// TrackKind distinguishes the two track roles C4 routes to (spec §4.4:
// "Payload type 96 -> video track; 97 -> audio track").
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

const (
	// PayloadTypeVideo and PayloadTypeAudio are this pipeline's
	// convention for the dynamic RTP payload types named by spec §4.4.
	PayloadTypeVideo = 96
	PayloadTypeAudio = 97
)

// rtcpRangeLow and rtcpRangeHigh bound the RTCP payload-type range
// (spec §4.4: "payload types 0-63, 96-127" are RTP; "64-95" are RTCP).
const (
	rtcpRangeLow  = 64
	rtcpRangeHigh = 95
)

// IsRTCPPayloadType reports whether pt falls in the RTCP range.
func IsRTCPPayloadType(pt uint8) bool {
	return pt >= rtcpRangeLow && pt <= rtcpRangeHigh
}

// Track holds per-track demux state: the latched SSRC and this track's
// timestamp sync.
type Track struct {
	Kind      TrackKind
	ClockRate uint32
	Sync      *jitter.RtpTimestampSync

	ssrcLatched bool
	ssrc        uint32
	eos         bool
}

// NewTrack constructs a Track for the given kind and RTP clock rate.
func NewTrack(kind TrackKind, clockRate uint32) *Track {
	return &Track{
		Kind:      kind,
		ClockRate: clockRate,
		Sync:      jitter.NewRtpTimestampSync(clockRate),
	}
}

// EOS reports whether this track has received an RTCP BYE for its
// latched SSRC.
func (t *Track) EOS() bool { return t.eos }

// SSRC returns the latched SSRC and whether one has been latched yet.
func (t *Track) SSRC() (uint32, bool) { return t.ssrc, t.ssrcLatched }

// Demuxer routes a single session's RTP/RTCP stream to its video and
// audio tracks.
type Demuxer struct {
	video  *Track
	audio  *Track
	ntp    jitter.RtpNtpSyncPoint
	logger *pipelog.Logger

	loggedUnknownPT map[uint8]bool
}

// New constructs a Demuxer for one session with the given tracks.
// Either may be nil if the session carries only one kind of media, in
// which case packets for the missing kind are dropped like any other
// unroutable payload type.
func New(video, audio *Track, logger *pipelog.Logger) *Demuxer {
	return &Demuxer{
		video:           video,
		audio:           audio,
		logger:          logger,
		loggedUnknownPT: make(map[uint8]bool),
	}
}

// RoutedPacket is an RTP packet successfully routed to a track.
type RoutedPacket struct {
	Kind   TrackKind
	Track  *Track
	Packet *rtp.Packet
}

// HandleRTP routes a single RTP packet by payload type. It returns
// (_, false) for packets that must be dropped: unknown payload type, or
// an SSRC mismatch against an already-latched track (spec §4.4).
func (d *Demuxer) HandleRTP(pkt *rtp.Packet) (RoutedPacket, bool) {
	pt := pkt.PayloadType
	var track *Track
	var kind TrackKind

	switch {
	case pt == PayloadTypeVideo && d.video != nil:
		track, kind = d.video, TrackVideo
	case pt == PayloadTypeAudio && d.audio != nil:
		track, kind = d.audio, TrackAudio
	default:
		if !d.loggedUnknownPT[pt] {
			d.loggedUnknownPT[pt] = true
			d.logger.Trace(pipelog.CatRTP, "dropping unknown RTP payload type", "payload_type", pt)
		}
		return RoutedPacket{}, false
	}

	if !track.ssrcLatched {
		track.ssrcLatched = true
		track.ssrc = pkt.SSRC
	} else if track.ssrc != pkt.SSRC {
		d.logger.Trace(pipelog.CatRTP, "dropping packet with mismatched SSRC",
			"track", kind, "expected_ssrc", track.ssrc, "got_ssrc", pkt.SSRC)
		return RoutedPacket{}, false
	}

	return RoutedPacket{Kind: kind, Track: track, Packet: pkt}, true
}

// HandleRTCP applies a batch of RTCP packets for this session: the
// first Sender Report for a latched SSRC resolves the shared NTP sync
// point and rebases that report's track, and later Sender Reports
// rebase no track; a BYE for a latched SSRC marks that track's EOS.
// syncPoint is needed to rebase a track's RtpTimestampSync origin; now
// is not used.
func (d *Demuxer) HandleRTCP(packets []rtcp.Packet, now, syncPoint time.Time) {
	for _, p := range packets {
		switch pkt := p.(type) {
		case *rtcp.SenderReport:
			d.applySenderReport(pkt, syncPoint)
		case *rtcp.Goodbye:
			d.applyGoodbye(pkt)
		case *rtcp.PictureLossIndication, *rtcp.ReceiverReport, *rtcp.FullIntraRequest:
			// Informational for C4's purposes; the keyframe-request path
			// is owned by C11 (spec §4.11).
		default:
			d.logger.Trace(pipelog.CatRTP, "unhandled RTCP packet", "type", fmt.Sprintf("%T", p))
		}
	}
}

func (d *Demuxer) applyGoodbye(pkt *rtcp.Goodbye) {
	for _, ssrc := range pkt.Sources {
		if d.video != nil && d.video.ssrcLatched && d.video.ssrc == ssrc {
			d.video.eos = true
			d.logger.Trace(pipelog.CatRTP, "RTCP BYE -> video EOS", "ssrc", ssrc)
		}
		if d.audio != nil && d.audio.ssrcLatched && d.audio.ssrc == ssrc {
			d.audio.eos = true
			d.logger.Trace(pipelog.CatRTP, "RTCP BYE -> audio EOS", "ssrc", ssrc)
		}
	}
}

func (d *Demuxer) applySenderReport(pkt *rtcp.SenderReport, syncPoint time.Time) {
	var track *Track
	switch {
	case d.video != nil && d.video.ssrcLatched && d.video.ssrc == pkt.SSRC:
		track = d.video
	case d.audio != nil && d.audio.ssrcLatched && d.audio.ssrc == pkt.SSRC:
		track = d.audio
	default:
		return
	}
	d.ntp.ResolveFromSenderReport(uint32(pkt.NTPTime>>32), uint32(pkt.NTPTime), track.Sync, pkt.RTPTime, syncPoint)
}
