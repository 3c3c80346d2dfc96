package scheduler

import "time"

// scheduledEvent is a (pts, callback) pair, fired once the scheduler's
// cursors pass its PTS (spec §4.9's "Scheduled events").
type scheduledEvent struct {
	pts   time.Duration
	seq   uint64
	fn    func()
	index int
}

// eventHeap orders scheduledEvents by PTS, then by submission order,
// grounded on the teacher's ticketHeap (pkg/nest/queue.go) priority
// ordering with its Timestamp FIFO tie-break.
type eventHeap []*scheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].pts != h[j].pts {
		return h[i].pts < h[j].pts
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	n := len(*h)
	e := x.(*scheduledEvent)
	e.index = n
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
