// Package codecneg implements the output codec negotiator (spec §4.10,
// component C10): matching a user's ordered encoder preference list
// against the capability set a remote peer advertised (or a container
// output supports), grounded on the teacher's webrtc.RTPCodecCapability
// registration shape in pkg/bridge/bridge.go's RegisterCodec calls.
package codecneg

import (
	"fmt"
	"strings"

	"github.com/avmux/compositor-core/internal/pipeerr"
)

// Capability is one codec a peer or container advertised support for,
// shaped after webrtc.RTPCodecCapability plus its negotiated payload
// type.
type Capability struct {
	MimeType    string
	ClockRate   uint32
	Channels    uint16
	FmtpLine    string
	PayloadType uint8
}

// VideoPreference is one entry in a user's ordered video encoder
// preference list.
type VideoPreference int

const (
	VideoAny VideoPreference = iota
	VideoH264
	VideoVP8
	VideoVP9
)

// AudioPreference is the audio analogue of VideoPreference.
type AudioPreference int

const (
	AudioAny AudioPreference = iota
	AudioOpusFEC
	AudioOpusNoFEC
)

// anyVideoExpansion is spec §4.10's priority order for the video Any
// preference.
var anyVideoExpansion = []VideoPreference{VideoVP9, VideoVP8, VideoH264}

// anyAudioExpansion is spec §4.10's priority order for the audio Any
// preference.
var anyAudioExpansion = []AudioPreference{AudioOpusFEC, AudioOpusNoFEC}

func videoBucket(mimeType string) (VideoPreference, bool) {
	switch {
	case strings.EqualFold(mimeType, "video/h264"):
		return VideoH264, true
	case strings.EqualFold(mimeType, "video/vp8"):
		return VideoVP8, true
	case strings.EqualFold(mimeType, "video/vp9"):
		return VideoVP9, true
	default:
		return 0, false
	}
}

func hasInbandFEC(fmtpLine string) bool {
	return strings.Contains(strings.ToLower(fmtpLine), "useinbandfec=1")
}

// NegotiateVideo walks prefs in order, expanding VideoAny per spec
// §4.10, and returns the first capability that matches a preference.
// H.264 variants collapse to a single bucket regardless of
// profile-level-id: the negotiator does not re-rank by profile.
func NegotiateVideo(prefs []VideoPreference, caps []Capability) (Capability, VideoPreference, error) {
	for _, pref := range expandVideoPrefs(prefs) {
		for _, c := range caps {
			bucket, ok := videoBucket(c.MimeType)
			if ok && bucket == pref {
				return c, pref, nil
			}
		}
	}
	return Capability{}, 0, pipeerr.New(pipeerr.CodeNoVideoCodecNegotiated, fmt.Errorf("no capability matches any of %d video preferences", len(prefs)))
}

// NegotiateAudio is NegotiateVideo's audio analogue. AudioOpusFEC only
// matches a capability whose fmtp line advertises useinbandfec=1;
// AudioOpusNoFEC matches any Opus capability.
func NegotiateAudio(prefs []AudioPreference, caps []Capability) (Capability, AudioPreference, error) {
	for _, pref := range expandAudioPrefs(prefs) {
		for _, c := range caps {
			if !strings.EqualFold(c.MimeType, "audio/opus") {
				continue
			}
			if pref == AudioOpusFEC && !hasInbandFEC(c.FmtpLine) {
				continue
			}
			return c, pref, nil
		}
	}
	return Capability{}, 0, pipeerr.New(pipeerr.CodeNoAudioCodecNegotiated, fmt.Errorf("no capability matches any of %d audio preferences", len(prefs)))
}

func expandVideoPrefs(prefs []VideoPreference) []VideoPreference {
	out := make([]VideoPreference, 0, len(prefs)+len(anyVideoExpansion))
	for _, p := range prefs {
		if p == VideoAny {
			out = append(out, anyVideoExpansion...)
			continue
		}
		out = append(out, p)
	}
	return out
}

func expandAudioPrefs(prefs []AudioPreference) []AudioPreference {
	out := make([]AudioPreference, 0, len(prefs)+len(anyAudioExpansion))
	for _, p := range prefs {
		if p == AudioAny {
			out = append(out, anyAudioExpansion...)
			continue
		}
		out = append(out, p)
	}
	return out
}
