package jitter

import (
	"container/heap"
	"time"
)

// Packet is the minimal view Buffer needs of an RTP packet: its raw
// 16-bit sequence number and opaque payload. Callers reconstruct
// whatever richer packet type they need from Payload.
type Packet struct {
	Sequence uint16
	Payload  any
}

// entry is one buffered packet, ordered in the heap by extended
// sequence number (ground: teacher's nest/queue.go ticketHeap —
// container/heap priority queue with a secondary FIFO tiebreak,
// generalized here to sequence-ordered delivery instead of priority
// tiers).
type entry struct {
	extSeq  uint64
	arrived time.Time
	pkt     Packet
	index   int
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].extSeq < h[j].extSeq }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[0 : n-1]
	return e
}

// GapEvent is surfaced when the buffer skips a non-contiguous hole that
// has aged past MaxWait (spec §4.3: "the jitter buffer emitted gap
// event is surfaced to the caller").
type GapEvent struct {
	// FromSeq and ToSeq bound the skipped range, exclusive of ToSeq's
	// packet, which is what triggered the skip.
	FromSeq uint64
	ToSeq   uint64
}

// Buffer reorders packets by extended sequence number, releasing the
// smallest buffered packet once its arrival age exceeds MaxWait, or
// once a contiguous prefix of PreferredSize packets is held.
type Buffer struct {
	tracker      SequenceTracker
	h            entryHeap
	maxWait      time.Duration
	preferred    int
	nextExpected uint64
	haveExpected bool
}

// NewBuffer constructs an empty Buffer. maxWait and preferredSize are
// spec §4.3's tunables (pipelineconfig.JitterMaxWait /
// JitterPreferredSize).
func NewBuffer(maxWait time.Duration, preferredSize int) *Buffer {
	return &Buffer{
		maxWait:   maxWait,
		preferred: preferredSize,
	}
}

// Push admits a raw packet, extending its sequence number against the
// buffer's rollover tracker.
func (b *Buffer) Push(seq uint16, payload any, now time.Time) {
	ext := b.tracker.Extend(seq)
	heap.Push(&b.h, &entry{extSeq: ext, arrived: now, pkt: Packet{Sequence: seq, Payload: payload}})
}

// Pop returns the next packet to release, if one is ready at time now:
// either the smallest buffered packet has aged past maxWait, or the
// buffer holds a contiguous run of at least preferredSize packets
// starting at the smallest one. It also returns a GapEvent when popping
// a packet required skipping over a hole in the sequence space.
func (b *Buffer) Pop(now time.Time) (pkt Packet, gap *GapEvent, ok bool) {
	if b.h.Len() == 0 {
		return Packet{}, nil, false
	}

	top := b.h[0]
	age := now.Sub(top.arrived)
	contiguous := b.contiguousPrefixLen()

	ready := age >= b.maxWait || contiguous >= b.preferred
	if !ready {
		return Packet{}, nil, false
	}

	popped := heap.Pop(&b.h).(*entry)

	var g *GapEvent
	if b.haveExpected && popped.extSeq != b.nextExpected {
		g = &GapEvent{FromSeq: b.nextExpected, ToSeq: popped.extSeq}
	}
	b.nextExpected = popped.extSeq + 1
	b.haveExpected = true

	return popped.pkt, g, true
}

// Len reports the number of packets currently buffered.
func (b *Buffer) Len() int { return b.h.Len() }

// contiguousPrefixLen counts how many buffered packets, starting from
// the smallest, form an unbroken ascending run of sequence numbers.
// O(n²) via an insertion-sorted copy; the buffer is expected to stay small
// (bounded by preferredSize in steady state).
func (b *Buffer) contiguousPrefixLen() int {
	if b.h.Len() == 0 {
		return 0
	}
	seqs := make([]uint64, b.h.Len())
	for i, e := range b.h {
		seqs[i] = e.extSeq
	}
	// insertion sort: buffers are small (preferredSize-ish) in steady state
	for i := 1; i < len(seqs); i++ {
		v := seqs[i]
		j := i - 1
		for j >= 0 && seqs[j] > v {
			seqs[j+1] = seqs[j]
			j--
		}
		seqs[j+1] = v
	}

	run := 1
	for i := 1; i < len(seqs); i++ {
		if seqs[i] == seqs[i-1]+1 {
			run++
		} else {
			break
		}
	}
	return run
}
