package encbridge

import "time"

// RescaleHalfUp converts a time.Duration (1ns units) into ticks of a
// destination clock running at clockRate Hz, rounding half away from
// zero rather than truncating. Spec §4.11 requires this exact rounding
// rule for both RTP timestamp rescaling and container-muxer time base
// conversion, so both RTPPayloadSink and MuxerSink call through here
// rather than rolling their own division.
func RescaleHalfUp(d time.Duration, clockRate uint32) int64 {
	const nsPerSec = int64(time.Second)
	num := int64(d) * int64(clockRate)
	if num >= 0 {
		return (num + nsPerSec/2) / nsPerSec
	}
	return (num - nsPerSec/2) / nsPerSec
}
