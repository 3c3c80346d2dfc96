package audiomix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/avmux/compositor-core/pkg/pipeevent"
)

const testSampleRate = 48000

func stereoBatch(startPTS time.Duration, vals ...float64) pipeevent.InputAudioSamples {
	samples := make([]pipeevent.StereoSample, len(vals))
	for i, v := range vals {
		samples[i] = pipeevent.StereoSample{Left: v, Right: v}
	}
	sd := sampleDuration(testSampleRate)
	return pipeevent.InputAudioSamples{
		StartPTS: startPTS,
		EndPTS:   startPTS + time.Duration(len(vals))*sd,
		Layout:   pipeevent.SampleLayoutStereo,
		Stereo:   samples,
	}
}

func assertSamples(t *testing.T, want []float64, got []pipeevent.StereoSample) {
	t.Helper()
	if !assert.Len(t, got, len(want)) {
		return
	}
	for i, w := range want {
		assert.InDelta(t, w, got[i].Left, 1e-9, "sample %d left", i)
		assert.InDelta(t, w, got[i].Right, 1e-9, "sample %d right", i)
	}
}

func TestFrameInputSamplesNoBatchesIsSilence(t *testing.T) {
	start := 20 * time.Millisecond
	end := start + 125*time.Microsecond
	got := FrameInputSamples(start, end, nil, testSampleRate)
	assertSamples(t, []float64{0, 0, 0, 0, 0, 0}, got)
}

func TestFrameInputSamplesExactAlignment(t *testing.T) {
	start := 20 * time.Millisecond
	end := start + 125*time.Microsecond
	sd := sampleDuration(testSampleRate)

	smallError := time.Duration(float64(sd) * 0.001)
	firstStart := start - smallError
	secondStart := firstStart + 4*sd

	batches := []pipeevent.InputAudioSamples{
		stereoBatch(firstStart, 1, 2, 3, 4),
		stereoBatch(secondStart, 5, 6, 7, 8),
	}

	got := FrameInputSamples(start, end, batches, testSampleRate)
	assertSamples(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestFrameInputSamplesHalfSampleOffsetStillAligns(t *testing.T) {
	start := 20 * time.Millisecond
	end := start + 125*time.Microsecond
	sd := sampleDuration(testSampleRate)
	halfSample := sd / 2

	firstStart := start - halfSample
	secondStart := firstStart + 4*sd

	batches := []pipeevent.InputAudioSamples{
		stereoBatch(firstStart, 1, 2, 3, 4),
		stereoBatch(secondStart, 5, 6, 7, 8),
	}

	got := FrameInputSamples(start, end, batches, testSampleRate)
	assertSamples(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestFrameInputSamplesBatchStartsAfterWindowInsertsLeadingSilence(t *testing.T) {
	start := 20 * time.Millisecond
	end := start + 125*time.Microsecond
	sd := sampleDuration(testSampleRate)
	smallError := time.Duration(float64(sd) * 0.001)

	firstStart := start + smallError
	secondStart := firstStart + 4*sd

	batches := []pipeevent.InputAudioSamples{
		stereoBatch(firstStart, 1, 2, 3, 4),
		stereoBatch(secondStart, 5, 6, 7, 8),
	}

	got := FrameInputSamples(start, end, batches, testSampleRate)
	assertSamples(t, []float64{0, 1, 2, 3, 4, 5}, got)
}

func TestFrameInputSamplesOverlapMoreThanSampleSkipsOne(t *testing.T) {
	start := 20 * time.Millisecond
	end := start + 125*time.Microsecond
	sd := sampleDuration(testSampleRate)
	smallError := time.Duration(float64(sd) * 0.001)

	firstStart := start - sd + smallError
	secondStart := firstStart + 4*sd - smallError - sd

	batches := []pipeevent.InputAudioSamples{
		stereoBatch(firstStart, 1, 2, 3, 4),
		stereoBatch(secondStart, 5, 6, 7, 8),
	}

	got := FrameInputSamples(start, end, batches, testSampleRate)
	assertSamples(t, []float64{1, 2, 3, 4, 6, 7}, got)
}

func TestFrameInputSamplesGapMoreThanSampleInsertsSilence(t *testing.T) {
	start := 20 * time.Millisecond
	end := start + 125*time.Microsecond
	sd := sampleDuration(testSampleRate)
	smallError := time.Duration(float64(sd) * 0.001)

	firstStart := start - sd + smallError
	secondStart := firstStart + 4*sd + smallError + sd

	batches := []pipeevent.InputAudioSamples{
		stereoBatch(firstStart, 1, 2, 3, 4),
		stereoBatch(secondStart, 5, 6, 7, 8),
	}

	got := FrameInputSamples(start, end, batches, testSampleRate)
	assertSamples(t, []float64{1, 2, 3, 4, 0, 5}, got)
}

func TestFrameInputSamplesOverlapMoreThanHalfSampleStillAligns(t *testing.T) {
	start := 20 * time.Millisecond
	end := start + 125*time.Microsecond
	sd := sampleDuration(testSampleRate)
	smallError := time.Duration(float64(sd) * 0.001)
	halfSample := sd / 2

	firstStart := start - sd + smallError
	secondStart := firstStart + 4*sd - smallError - halfSample

	batches := []pipeevent.InputAudioSamples{
		stereoBatch(firstStart, 1, 2, 3, 4),
		stereoBatch(secondStart, 5, 6, 7, 8),
	}

	got := FrameInputSamples(start, end, batches, testSampleRate)
	assertSamples(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestFrameInputSamplesGapMoreThanHalfSampleStillAligns(t *testing.T) {
	start := 20 * time.Millisecond
	end := start + 125*time.Microsecond
	sd := sampleDuration(testSampleRate)
	smallError := time.Duration(float64(sd) * 0.001)
	halfSample := sd / 2

	firstStart := start - sd + smallError
	secondStart := firstStart + 4*sd + smallError + halfSample

	batches := []pipeevent.InputAudioSamples{
		stereoBatch(firstStart, 1, 2, 3, 4),
		stereoBatch(secondStart, 5, 6, 7, 8),
	}

	got := FrameInputSamples(start, end, batches, testSampleRate)
	assertSamples(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestFrameInputSamplesSeverelyMisalignedToLeft(t *testing.T) {
	start := 20 * time.Millisecond
	batchDuration := 125 * time.Microsecond
	end := start + batchDuration
	sd := sampleDuration(testSampleRate)

	firstStart := start - batchDuration
	secondStart := firstStart + 4*sd

	batches := []pipeevent.InputAudioSamples{
		stereoBatch(firstStart, 1, 2, 3, 4),
		stereoBatch(secondStart, 5, 6, 7, 8),
	}

	got := FrameInputSamples(start, end, batches, testSampleRate)
	assertSamples(t, []float64{7, 8, 0, 0, 0, 0}, got)
}
