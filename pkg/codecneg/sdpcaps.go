package codecneg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"

	"github.com/avmux/compositor-core/internal/pipeerr"
)

// CapabilitiesFromSDP extracts the Capability set a WHIP/WHEP offer
// advertises, by reading each media section's rtpmap/fmtp attributes.
// This is the negotiator's only contact with the wire-level signaling
// format: nothing here touches ICE/DTLS/SRTP transport, which remain
// the external HTTP/WebRTC layer's responsibility per spec §1.
func CapabilitiesFromSDP(offer string) ([]Capability, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(offer)); err != nil {
		return nil, pipeerr.New(pipeerr.CodeUnsupportedCodec, fmt.Errorf("parse SDP offer: %w", err))
	}

	var out []Capability
	for _, media := range sd.MediaDescriptions {
		if media.MediaName.Media != "audio" && media.MediaName.Media != "video" {
			continue
		}
		for _, format := range media.MediaName.Formats {
			pt, err := strconv.ParseUint(format, 10, 8)
			if err != nil {
				continue
			}
			cap, ok := capabilityFromRtpmap(media, uint8(pt), media.MediaName.Media)
			if !ok {
				continue
			}
			out = append(out, cap)
		}
	}

	if len(out) == 0 {
		return nil, pipeerr.New(pipeerr.CodeUnsupportedCodec, fmt.Errorf("no audio/video payload types found in SDP offer"))
	}
	return out, nil
}

func capabilityFromRtpmap(media *sdp.MediaDescription, pt uint8, kind string) (Capability, bool) {
	prefix := strconv.FormatUint(uint64(pt), 10) + " "

	var rtpmap string
	var fmtpLine string
	for _, attr := range media.Attributes {
		switch attr.Key {
		case "rtpmap":
			if strings.HasPrefix(attr.Value, prefix) {
				rtpmap = strings.TrimPrefix(attr.Value, prefix)
			}
		case "fmtp":
			if strings.HasPrefix(attr.Value, prefix) {
				fmtpLine = strings.TrimPrefix(attr.Value, prefix)
			}
		}
	}
	if rtpmap == "" {
		return Capability{}, false
	}

	parts := strings.Split(rtpmap, "/")
	codecName := parts[0]
	clockRate := uint64(90000)
	var channels uint16 = 1
	if len(parts) > 1 {
		if v, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
			clockRate = v
		}
	}
	if len(parts) > 2 {
		if v, err := strconv.ParseUint(parts[2], 10, 16); err == nil {
			channels = uint16(v)
		}
	}

	return Capability{
		MimeType:    kind + "/" + strings.ToLower(codecName),
		ClockRate:   uint32(clockRate),
		Channels:    channels,
		FmtpLine:    fmtpLine,
		PayloadType: pt,
	}, true
}
