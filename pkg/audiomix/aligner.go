// Package audiomix implements the audio sample aligner (spec §4.6,
// component C6): it extracts an exact, evenly-spaced grid of samples
// for a requested [start, end) PTS window out of a set of input
// batches whose timestamps may be slightly misaligned by sub-sample
// drift, may overlap, or may leave small gaps (ground:
// original_source/compositor_pipeline/src/audio_mixer/prepare_inputs's
// frame_input_samples tests, which this package's tests port).
package audiomix

import (
	"math"
	"sort"
	"time"

	"github.com/avmux/compositor-core/pkg/pipeevent"
)

// FrameInputSamples extracts ceil(sampleRate*(end-start)) stereo
// samples for [start, end) from batches, which need not be sorted or
// contiguous. Boundary discrepancies under a full sample are treated as
// a direct continuation (jitter); at or beyond a full sample, a gap
// inserts silence and an overlap drops the duplicated leading samples of
// the later batch (spec §4.6).
func FrameInputSamples(start, end time.Duration, batches []pipeevent.InputAudioSamples, sampleRate int) []pipeevent.StereoSample {
	n := int(math.Ceil((end - start).Seconds() * float64(sampleRate)))
	out := make([]pipeevent.StereoSample, n)
	if len(batches) == 0 || n == 0 {
		return out
	}

	sorted := make([]pipeevent.InputAudioSamples, len(batches))
	copy(sorted, batches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartPTS < sorted[j].StartPTS })

	stitched, stitchedStart := stitch(sorted, sampleRate)
	if len(stitched) == 0 {
		return out
	}

	leadDelta := (start - stitchedStart).Seconds() * float64(sampleRate)
	leadIdx := int(math.Floor(leadDelta))

	for i := 0; i < n; i++ {
		idx := leadIdx + i
		if idx >= 0 && idx < len(stitched) {
			out[i] = stitched[idx]
		}
	}
	return out
}

// stitch concatenates batches (already sorted by StartPTS) into one
// logical sample sequence, resolving the boundary between each
// adjacent pair: a detected gap inserts silence, a detected overlap
// drops the later batch's duplicated leading samples.
func stitch(sorted []pipeevent.InputAudioSamples, sampleRate int) ([]pipeevent.StereoSample, time.Duration) {
	var out []pipeevent.StereoSample
	var start time.Duration

	for _, b := range sorted {
		samples := toStereo(b)
		if out == nil {
			out = append(out, samples...)
			start = b.StartPTS
			continue
		}

		prevEnd := start + time.Duration(len(out))*sampleDuration(sampleRate)
		diffSamples := (b.StartPTS - prevEnd).Seconds() * float64(sampleRate)
		// Truncate toward zero: sub-sample jitter (|diffSamples| < 1)
		// is a direct continuation, not a gap or overlap.
		d := int(math.Trunc(diffSamples))

		switch {
		case d > 0:
			out = append(out, make([]pipeevent.StereoSample, d)...)
			out = append(out, samples...)
		case d < 0:
			skip := -d
			if skip > len(samples) {
				skip = len(samples)
			}
			out = append(out, samples[skip:]...)
		default:
			out = append(out, samples...)
		}
	}

	return out, start
}

func sampleDuration(sampleRate int) time.Duration {
	return time.Duration(float64(time.Second) / float64(sampleRate))
}

// toStereo normalizes a batch to []StereoSample regardless of its
// native layout, duplicating mono samples to both channels.
func toStereo(b pipeevent.InputAudioSamples) []pipeevent.StereoSample {
	if b.Layout == pipeevent.SampleLayoutStereo {
		return b.Stereo
	}
	out := make([]pipeevent.StereoSample, len(b.Mono))
	for i, v := range b.Mono {
		out[i] = pipeevent.StereoSample{Left: v, Right: v}
	}
	return out
}
