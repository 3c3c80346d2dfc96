package codecneg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOffer = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"a=rtpmap:96 H264/90000\r\n" +
	"a=fmtp:96 profile-level-id=42e01f\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"a=fmtp:111 useinbandfec=1\r\n"

func TestCapabilitiesFromSDPExtractsVideoAndAudio(t *testing.T) {
	caps, err := CapabilitiesFromSDP(sampleOffer)
	require.NoError(t, err)
	require.Len(t, caps, 2)

	var video, audio *Capability
	for i := range caps {
		switch caps[i].MimeType {
		case "video/h264":
			video = &caps[i]
		case "audio/opus":
			audio = &caps[i]
		}
	}
	require.NotNil(t, video)
	require.NotNil(t, audio)

	assert.EqualValues(t, 90000, video.ClockRate)
	assert.Equal(t, uint8(96), video.PayloadType)
	assert.Contains(t, video.FmtpLine, "profile-level-id=42e01f")

	assert.EqualValues(t, 48000, audio.ClockRate)
	assert.EqualValues(t, 2, audio.Channels)
	assert.Contains(t, audio.FmtpLine, "useinbandfec=1")
}

func TestCapabilitiesFromSDPErrorsOnNoMediaSections(t *testing.T) {
	_, err := CapabilitiesFromSDP("v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n")
	assert.Error(t, err)
}

func TestCapabilitiesFromSDPErrorsOnMalformedOffer(t *testing.T) {
	_, err := CapabilitiesFromSDP("not an sdp document")
	assert.Error(t, err)
}

func TestNegotiateVideoAcceptsCapabilitiesParsedFromSDP(t *testing.T) {
	caps, err := CapabilitiesFromSDP(sampleOffer)
	require.NoError(t, err)

	chosen, pref, err := NegotiateVideo([]VideoPreference{VideoH264}, caps)
	require.NoError(t, err)
	assert.Equal(t, VideoH264, pref)
	assert.Equal(t, "video/h264", chosen.MimeType)
}
