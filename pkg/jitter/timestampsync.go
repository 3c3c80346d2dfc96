package jitter

import "time"

// RtpTimestampSync maps a track's RTP timestamp onto queue PTS (spec
// §4.3: "on the first packet records (rtp_timestamp_0, pts_0 = now -
// sync_point); subsequent packets compute pts = pts_0 +
// (rtp_ts-rtp_ts_0)/clock_rate").
type RtpTimestampSync struct {
	clockRate uint32

	haveFirst bool
	rtpTS0    uint32
	pts0      time.Duration

	lastRawTS uint32
	cycles    int64 // number of full uint32 wraps observed
}

// NewRtpTimestampSync constructs a sync for a track sampled at
// clockRate Hz (e.g. 90000 for H.264, 48000 for Opus).
func NewRtpTimestampSync(clockRate uint32) *RtpTimestampSync {
	return &RtpTimestampSync{clockRate: clockRate}
}

// rtpWrapThreshold mirrors jitter's sequence-rollover threshold but
// over the 32-bit RTP timestamp space (ground: teacher's pacer.go
// 0xFFFFFFFF wraparound arithmetic in calculateVideoDelay/
// calculateAudioDelay).
const rtpWrapThreshold = 1 << 31

// Observe latches the first (rtp_ts, pts0) pair it sees and returns the
// queue PTS for every packet, including the first.
func (s *RtpTimestampSync) Observe(rtpTS uint32, now time.Time, syncPoint time.Time) time.Duration {
	if !s.haveFirst {
		s.haveFirst = true
		s.rtpTS0 = rtpTS
		s.pts0 = now.Sub(syncPoint)
		s.lastRawTS = rtpTS
		return s.pts0
	}

	delta := int64(rtpTS) - int64(s.lastRawTS)
	switch {
	case delta < -rtpWrapThreshold:
		s.cycles++
	case delta > rtpWrapThreshold:
		s.cycles--
	}
	s.lastRawTS = rtpTS

	extended := s.cycles<<32 | int64(rtpTS)
	extendedOrigin := int64(s.rtpTS0)
	ticks := extended - extendedOrigin

	return s.pts0 + time.Duration(float64(ticks)/float64(s.clockRate)*float64(time.Second))
}

// Rebase replaces pts0 with an NTP-derived origin, as an
// RtpNtpSyncPoint does for the track whose Sender Report resolves the
// session's shared origin (spec §4.3).
func (s *RtpTimestampSync) Rebase(newPTS0 time.Duration) {
	s.pts0 = newPTS0
}

// RtpNtpSyncPoint latches one remote session's NTP origin the first
// time an RTCP Sender Report arrives for any of the session's tracks,
// and rebases that one track's pts0 onto it. The session's other tracks
// are not rebased: their Sender Reports arrive after the origin is
// latched and are ignored, so they keep their arrival-derived pts0.
type RtpNtpSyncPoint struct {
	resolved bool

	// ntpOrigin is the wall-clock instant corresponding to NTP time 0
	// for this session, derived from the first Sender Report seen.
	ntpOrigin time.Time
}

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// ResolveFromSenderReport latches the session's NTP origin from an
// RTCP Sender Report's (ntpSeconds, ntpFraction, rtpTimestamp) triple
// for one track, and rebases that track's sync so its pts0 is the queue
// PTS of rtp_ts_0 on the sender's NTP clock. No-op after the first
// call: later Sender Reports, for this or any other track, are ignored
// (spec §3: once latched, an input's timing origin does not
// retroactively change).
func (n *RtpNtpSyncPoint) ResolveFromSenderReport(ntpSeconds, ntpFraction uint32, trackSync *RtpTimestampSync, rtpTimestamp uint32, syncPoint time.Time) {
	if n.resolved {
		return
	}
	unixSeconds := int64(ntpSeconds) - ntpEpochOffset
	frac := time.Duration(float64(ntpFraction) / (1 << 32) * float64(time.Second))
	wallTime := time.Unix(unixSeconds, 0).Add(frac)

	n.ntpOrigin = wallTime
	n.resolved = true

	// The Sender Report's rtpTimestamp corresponds to wallTime; derive
	// pts0 for this track as wallTime - syncPoint, offset back to
	// rtp_ts_0 using the track's own clock rate via Rebase.
	ticks := int64(int32(rtpTimestamp - trackSync.rtpTS0))
	offset := time.Duration(float64(ticks) / float64(trackSync.clockRate) * float64(time.Second))
	trackSync.Rebase(wallTime.Sub(syncPoint) - offset)
}

// Resolved reports whether this session's NTP origin has been latched.
func (n *RtpNtpSyncPoint) Resolved() bool { return n.resolved }
