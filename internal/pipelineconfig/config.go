// Package pipelineconfig holds the pipeline-wide tunables: output frame
// rate, jitter buffer timing, scheduler cadence, channel capacities, and
// protocol timeouts. Loading these from a file or flags is outside the
// core (spec §1 Non-goals); this package only owns the validated struct.
package pipelineconfig

import (
	"fmt"
	"time"
)

// Rational is a frame rate expressed as num/den frames per second.
type Rational struct {
	Num int
	Den int
}

// FramePeriod returns the duration of one frame at this rate.
func (r Rational) FramePeriod() time.Duration {
	return time.Duration(float64(r.Den) / float64(r.Num) * float64(time.Second))
}

// Config holds every tunable named or implied by spec §2-§6.
type Config struct {
	// OutputFrameRate is the compositor's output clock (spec §3).
	OutputFrameRate Rational

	// SchedulerTickPeriod is C9's polling cadence (spec §4.9, ~10ms).
	SchedulerTickPeriod time.Duration

	// JitterMaxWait bounds how long C3 waits for an out-of-order RTP
	// packet before giving up on it (spec §4.3, default 30ms).
	JitterMaxWait time.Duration

	// JitterPreferredSize is the contiguous-prefix length C3 will pop
	// eagerly even before MaxWait elapses (spec §4.3).
	JitterPreferredSize int

	// RunLateScheduledEvents controls whether scheduled events with a
	// past PTS still fire (spec §3 invariants, §4.9).
	RunLateScheduledEvents bool

	// HLSMinBufferDuration and HLSDriftBump carry spec §4.5's
	// drift-recovery values (Open Question (a), pinned in SPEC_FULL.md
	// §6). pkg/containering does not read them: HLSDriftRecovery uses its
	// own HLSMinBuffer and HLSDriftBump constants.
	HLSMinBufferDuration time.Duration
	HLSDriftBump         time.Duration

	// DiscontinuityThreshold is spec §4.5's "10s" constant.
	DiscontinuityThreshold time.Duration

	// WHIPInitTimeout is spec §5's 60s WHIP/WHEP session-establishment
	// timeout.
	WHIPInitTimeout time.Duration

	// RTMPConnectRetryInterval is spec §5's 3s RTMP reconnect interval.
	RTMPConnectRetryInterval time.Duration

	// Channel capacities, per spec §5.
	QueueToRendererCapacity  int
	DecoderToQueueCapacity   int
	IngressToDecoderCapacity int

	// BufferSlack is a grace period past an optional input's target PTS
	// (spec §4.7). No readiness check reads it: the scheduler checks only
	// required inputs, so an optional input never holds back a tick.
	BufferSlack time.Duration
}

// Default returns the pipeline's default configuration: 30fps output,
// 10ms scheduler tick, 30ms jitter wait, spec-pinned HLS constants.
func Default() Config {
	return Config{
		OutputFrameRate:          Rational{Num: 30, Den: 1},
		SchedulerTickPeriod:      10 * time.Millisecond,
		JitterMaxWait:            30 * time.Millisecond,
		JitterPreferredSize:      8,
		RunLateScheduledEvents:   false,
		HLSMinBufferDuration:     1 * time.Second,
		HLSDriftBump:             100 * time.Millisecond,
		DiscontinuityThreshold:   10 * time.Second,
		WHIPInitTimeout:          60 * time.Second,
		RTMPConnectRetryInterval: 3 * time.Second,
		QueueToRendererCapacity:  1,
		DecoderToQueueCapacity:   5,
		IngressToDecoderCapacity: 2000,
		BufferSlack:              500 * time.Millisecond,
	}
}

// Validate checks required fields the way the teacher's config.Validate
// checks required credentials: explicit, named, fmt.Errorf per field.
func (c Config) Validate() error {
	if c.OutputFrameRate.Num <= 0 || c.OutputFrameRate.Den <= 0 {
		return fmt.Errorf("invalid output frame rate: %d/%d", c.OutputFrameRate.Num, c.OutputFrameRate.Den)
	}
	if c.SchedulerTickPeriod <= 0 {
		return fmt.Errorf("scheduler tick period must be positive")
	}
	if c.JitterMaxWait <= 0 {
		return fmt.Errorf("jitter max wait must be positive")
	}
	if c.JitterPreferredSize <= 0 {
		return fmt.Errorf("jitter preferred size must be positive")
	}
	if c.HLSMinBufferDuration <= 0 {
		return fmt.Errorf("HLS min buffer duration must be positive")
	}
	if c.WHIPInitTimeout <= 0 {
		return fmt.Errorf("WHIP init timeout must be positive")
	}
	if c.RTMPConnectRetryInterval <= 0 {
		return fmt.Errorf("RTMP connect retry interval must be positive")
	}
	if c.QueueToRendererCapacity <= 0 {
		return fmt.Errorf("queue to renderer channel capacity must be positive")
	}
	if c.DecoderToQueueCapacity <= 0 {
		return fmt.Errorf("decoder to queue channel capacity must be positive")
	}
	if c.IngressToDecoderCapacity <= 0 {
		return fmt.Errorf("ingress to decoder channel capacity must be positive")
	}
	return nil
}
