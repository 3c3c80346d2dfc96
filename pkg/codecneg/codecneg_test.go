package codecneg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmux/compositor-core/internal/pipeerr"
)

func TestNegotiateVideoPicksFirstMatchingPreference(t *testing.T) {
	caps := []Capability{
		{MimeType: "video/H264", ClockRate: 90000, PayloadType: 96},
		{MimeType: "video/VP8", ClockRate: 90000, PayloadType: 97},
	}
	cap, pref, err := NegotiateVideo([]VideoPreference{VideoVP9, VideoVP8, VideoH264}, caps)
	require.NoError(t, err)
	assert.Equal(t, VideoVP8, pref)
	assert.Equal(t, uint8(97), cap.PayloadType)
}

func TestNegotiateVideoH264VariantsCollapseToOneBucket(t *testing.T) {
	caps := []Capability{
		{MimeType: "video/h264", FmtpLine: "profile-level-id=42e01f", PayloadType: 96},
	}
	cap, pref, err := NegotiateVideo([]VideoPreference{VideoH264}, caps)
	require.NoError(t, err)
	assert.Equal(t, VideoH264, pref)
	assert.Equal(t, uint8(96), cap.PayloadType)
}

func TestNegotiateVideoAnyExpandsInPriorityOrder(t *testing.T) {
	caps := []Capability{
		{MimeType: "video/H264", PayloadType: 96},
		{MimeType: "video/VP8", PayloadType: 97},
	}
	_, pref, err := NegotiateVideo([]VideoPreference{VideoAny}, caps)
	require.NoError(t, err)
	assert.Equal(t, VideoVP8, pref, "VP8 outranks H264 in the Any expansion, even though H264 appears first in caps")
}

func TestNegotiateVideoNoMatchReturnsNoVideoCodecNegotiated(t *testing.T) {
	caps := []Capability{{MimeType: "video/VP9", PayloadType: 98}}
	_, _, err := NegotiateVideo([]VideoPreference{VideoH264}, caps)
	require.Error(t, err)
	var pErr *pipeerr.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, pipeerr.CodeNoVideoCodecNegotiated, pErr.Code)
}

func TestNegotiateAudioFECRequiresFmtpFlag(t *testing.T) {
	caps := []Capability{
		{MimeType: "audio/opus", FmtpLine: "minptime=10;useinbandfec=0", PayloadType: 111},
	}
	_, _, err := NegotiateAudio([]AudioPreference{AudioOpusFEC}, caps)
	require.Error(t, err)
}

func TestNegotiateAudioFECMatchesWhenFlagSet(t *testing.T) {
	caps := []Capability{
		{MimeType: "audio/opus", FmtpLine: "minptime=10;useinbandfec=1", PayloadType: 111},
	}
	cap, pref, err := NegotiateAudio([]AudioPreference{AudioOpusFEC}, caps)
	require.NoError(t, err)
	assert.Equal(t, AudioOpusFEC, pref)
	assert.Equal(t, uint8(111), cap.PayloadType)
}

func TestNegotiateAudioAnyPrefersFECOverNoFEC(t *testing.T) {
	caps := []Capability{
		{MimeType: "audio/opus", FmtpLine: "useinbandfec=1", PayloadType: 111},
	}
	_, pref, err := NegotiateAudio([]AudioPreference{AudioAny}, caps)
	require.NoError(t, err)
	assert.Equal(t, AudioOpusFEC, pref)
}

func TestNegotiateAudioNoOpusCapabilityFails(t *testing.T) {
	caps := []Capability{{MimeType: "audio/AAC", PayloadType: 100}}
	_, _, err := NegotiateAudio([]AudioPreference{AudioAny}, caps)
	require.Error(t, err)
	var pErr *pipeerr.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, pipeerr.CodeNoAudioCodecNegotiated, pErr.Code)
}
