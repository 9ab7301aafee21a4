package reactor

import (
	"container/heap"
	"time"

	"github.com/benbjohnson/clock"
)

// Timer is one scheduled callback, fired synchronously on the loop
// thread when its Deadline passes (spec §4.9: "a small binary heap keyed
// by absolute deadline... on fire, the timer's callback runs
// synchronously on the loop thread").
type Timer struct {
	Deadline time.Time
	Callback func()
	index    int // heap.Interface bookkeeping
}

// timerHeap is a container/heap.Interface min-heap ordered by deadline.
type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].Deadline.Before(h[j].Deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// TimerQueue is the loop's timer registry. Clock is injectable so tests
// can advance time deterministically (the same benbjohnson/clock idiom
// the teacher's circuit pool health checks would use for a real clock).
type TimerQueue struct {
	h     timerHeap
	Clock clock.Clock
}

// NewTimerQueue returns an empty queue using the real wall clock.
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{Clock: clock.New()}
}

// Schedule adds a timer firing at deadline and returns it (callers may
// ignore the return value; it exists for future cancellation support).
func (q *TimerQueue) Schedule(deadline time.Time, cb func()) *Timer {
	t := &Timer{Deadline: deadline, Callback: cb}
	heap.Push(&q.h, t)
	return t
}

// NextTimeout returns the duration until the next timer fires, or -1 if
// the queue is empty (spec: "the next-poll timeout is
// min(deadline-now, INFINITE)").
func (q *TimerQueue) NextTimeout() time.Duration {
	if q.h.Len() == 0 {
		return -1
	}
	d := q.h[0].Deadline.Sub(q.Clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

// FireDue pops and runs every timer whose deadline has passed.
func (q *TimerQueue) FireDue() {
	now := q.Clock.Now()
	for q.h.Len() > 0 && !q.h[0].Deadline.After(now) {
		t := heap.Pop(&q.h).(*Timer)
		t.Callback()
	}
}
