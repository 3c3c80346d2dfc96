package containering

import (
	"bytes"
	"testing"
	"time"

	"github.com/sigurn/crc16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tsPacket(t *testing.T, body []byte) []byte {
	t.Helper()
	crc := crc16.Checksum(body, tsCRCTable)
	return append(append([]byte{}, body...), byte(crc>>8), byte(crc))
}

func TestStreamIngestObservePassesGoodChunkToTracker(t *testing.T) {
	var buf bytes.Buffer
	ingest := NewTSIngest("stream-1", NewPTSTracker(), NewSubLogger(&buf), NewReconnectLimiter(time.Second))

	corrected, ok := ingest.Observe(tsPacket(t, []byte{0x47, 0x00}), 0)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), corrected)
}

func TestStreamIngestObserveRejectsCorruptChunkWithoutTouchingTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewPTSTracker()
	ingest := NewTSIngest("stream-1", tracker, NewSubLogger(&buf), nil)

	_, ok := ingest.Observe([]byte{0x47, 0x00, 0xff, 0xff}, 5*time.Second)
	assert.False(t, ok)
	assert.False(t, tracker.havePrev)
	assert.Contains(t, buf.String(), "checksum")
}

func TestStreamIngestObserveLogsDiscontinuity(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewPTSTracker()
	ingest := NewTSIngest("stream-1", tracker, NewSubLogger(&buf), nil)

	_, ok := ingest.Observe(tsPacket(t, []byte{0x47, 0x00}), 0)
	require.True(t, ok)
	_, ok = ingest.Observe(tsPacket(t, []byte{0x47, 0x01}), 100*time.Millisecond)
	require.True(t, ok)

	_, ok = ingest.Observe(tsPacket(t, []byte{0x47, 0x02}), 100*time.Millisecond+20*time.Second)
	require.True(t, ok)
	assert.Contains(t, buf.String(), "discontinuity")
}

func TestStreamIngestReconnectLimiterIsExposed(t *testing.T) {
	limiter := NewReconnectLimiter(time.Second)
	ingest := NewFLVIngest("stream-1", NewPTSTracker(), nil, limiter)
	assert.Same(t, limiter, ingest.ReconnectLimiter())
}
