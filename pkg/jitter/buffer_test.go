package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceTrackerOrdinaryAscending(t *testing.T) {
	var tr SequenceTracker
	assert.Equal(t, uint64(10), tr.Extend(10))
	assert.Equal(t, uint64(11), tr.Extend(11))
	assert.Equal(t, uint64(12), tr.Extend(12))
}

func TestSequenceTrackerRolloverAscending(t *testing.T) {
	// spec §8: feeding sequences 65534, 65535, 0, 1 yields output in
	// that order.
	var tr SequenceTracker
	e1 := tr.Extend(65534)
	e2 := tr.Extend(65535)
	e3 := tr.Extend(0)
	e4 := tr.Extend(1)

	assert.True(t, e1 < e2)
	assert.True(t, e2 < e3)
	assert.True(t, e3 < e4)
}

func TestSequenceTrackerOutOfOrderAcrossRollover(t *testing.T) {
	// spec §8: feeding 65535, 0, 65534 yields 65534, 65535, 0 after
	// sorting by extended sequence.
	var tr SequenceTracker
	e1 := tr.Extend(65535)
	e2 := tr.Extend(0)
	e3 := tr.Extend(65534)

	type pair struct {
		raw uint16
		ext uint64
	}
	pairs := []pair{{65535, e1}, {0, e2}, {65534, e3}}

	// sort by ext ascending
	for i := 1; i < len(pairs); i++ {
		v := pairs[i]
		j := i - 1
		for j >= 0 && pairs[j].ext > v.ext {
			pairs[j+1] = pairs[j]
			j--
		}
		pairs[j+1] = v
	}

	got := []uint16{pairs[0].raw, pairs[1].raw, pairs[2].raw}
	assert.Equal(t, []uint16{65534, 65535, 0}, got)
}

func TestBufferReleasesByMaxWait(t *testing.T) {
	b := NewBuffer(30*time.Millisecond, 100)
	start := time.Now()

	b.Push(5, "five", start)

	_, _, ok := b.Pop(start.Add(10 * time.Millisecond))
	assert.False(t, ok, "should not release before max wait elapses")

	pkt, gap, ok := b.Pop(start.Add(31 * time.Millisecond))
	require.True(t, ok)
	assert.Nil(t, gap)
	assert.Equal(t, "five", pkt.Payload)
}

func TestBufferReleasesByPreferredSize(t *testing.T) {
	b := NewBuffer(time.Hour, 3)
	start := time.Now()

	b.Push(1, "a", start)
	b.Push(2, "b", start)
	_, _, ok := b.Pop(start)
	assert.False(t, ok, "only 2 contiguous packets buffered, want 3")

	b.Push(3, "c", start)
	pkt, gap, ok := b.Pop(start)
	require.True(t, ok)
	assert.Nil(t, gap)
	assert.Equal(t, "a", pkt.Payload)
}

func TestBufferSurfacesGapOnSkip(t *testing.T) {
	b := NewBuffer(10*time.Millisecond, 100)
	start := time.Now()

	b.Push(1, "a", start)
	pkt, gap, ok := b.Pop(start.Add(20 * time.Millisecond))
	require.True(t, ok)
	assert.Nil(t, gap)
	assert.Equal(t, "a", pkt.Payload)

	// sequence 2 never arrives; 3 arrives and ages out, leaving a hole.
	b.Push(3, "c", start.Add(20*time.Millisecond))
	pkt2, gap2, ok := b.Pop(start.Add(60 * time.Millisecond))
	require.True(t, ok)
	require.NotNil(t, gap2)
	assert.Equal(t, uint64(2), gap2.FromSeq)
	assert.Equal(t, uint64(3), gap2.ToSeq)
	assert.Equal(t, "c", pkt2.Payload)
}

func TestBufferReordersOutOfOrderPackets(t *testing.T) {
	b := NewBuffer(time.Hour, 3)
	start := time.Now()

	b.Push(2, "second", start)
	b.Push(0, "first", start)
	b.Push(1, "middle", start)

	pkt, _, ok := b.Pop(start)
	require.True(t, ok)
	assert.Equal(t, "first", pkt.Payload)
}
