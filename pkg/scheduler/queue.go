// Package scheduler implements RayforceDB's worker pool (spec §4.2): a
// fixed set of executors each owning its own VM/heap, a bounded
// Vyukov-style MPMC task queue that doubles its capacity on overflow, and
// a CPU-topology-aware pinning scheme for worker placement.
package scheduler

import (
	"runtime"
	"sync/atomic"
	"time"
)

// mpmcCell is one slot of the bounded MPMC queue: a sequence counter plus
// payload, the classic Vyukov layout.
type mpmcCell struct {
	seq   atomic.Uint64
	value any
}

// mpmcQueue is a fixed-capacity bounded multi-producer/multi-consumer
// queue (Vyukov 2010): producers CAS the tail position, consumers CAS the
// head position, and each cell's sequence number tells a racing
// producer/consumer whether the slot is ready for it yet.
type mpmcQueue struct {
	buf  []mpmcCell
	mask uint64

	enqueuePos atomic.Uint64
	dequeuePos atomic.Uint64
}

func newMPMCQueue(capacity int) *mpmcQueue {
	capacity = int(nextPow2(uint64(capacity)))
	q := &mpmcQueue{buf: make([]mpmcCell, capacity), mask: uint64(capacity) - 1}
	for i := range q.buf {
		q.buf[i].seq.Store(uint64(i))
	}
	return q
}

func nextPow2(x uint64) uint64 {
	if x < 1 {
		return 1
	}
	p := uint64(1)
	for p < x {
		p <<= 1
	}
	return p
}

func (q *mpmcQueue) cap() int { return len(q.buf) }

// tryEnqueue attempts to push v; returns false if the queue is full.
func (q *mpmcQueue) tryEnqueue(v any) bool {
	pos := q.enqueuePos.Load()
	for {
		cell := &q.buf[pos&q.mask]
		seq := cell.seq.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				cell.value = v
				cell.seq.Store(pos + 1)
				return true
			}
			pos = q.enqueuePos.Load()
		case diff < 0:
			return false
		default:
			pos = q.enqueuePos.Load()
		}
	}
}

// tryDequeue attempts to pop a value; returns (nil, false) if empty.
func (q *mpmcQueue) tryDequeue() (any, bool) {
	pos := q.dequeuePos.Load()
	for {
		cell := &q.buf[pos&q.mask]
		seq := cell.seq.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				v := cell.value
				cell.value = nil
				cell.seq.Store(pos + q.mask + 1)
				return v, true
			}
			pos = q.dequeuePos.Load()
		case diff < 0:
			return nil, false
		default:
			pos = q.dequeuePos.Load()
		}
	}
}

// growableQueue wraps an mpmcQueue behind a pointer so add_task can swap
// in a doubled-capacity queue when the current one is full, per spec
// §4.2: "When add_task observes a full queue it allocates a new queue of
// doubled capacity, drains the old one into it, replaces atomically."
type growableQueue struct {
	q atomic.Pointer[mpmcQueue]
}

func newGrowableQueue(initialCapacity int) *growableQueue {
	g := &growableQueue{}
	g.q.Store(newMPMCQueue(initialCapacity))
	return g
}

// enqueue always succeeds, growing the queue if necessary. Growth itself
// isn't lock-free (a grow races with other producers by retrying), but
// steady-state enqueue/dequeue stay lock-free.
func (g *growableQueue) enqueue(v any) {
	for {
		q := g.q.Load()
		if q.tryEnqueue(v) {
			return
		}
		g.grow(q)
	}
}

func (g *growableQueue) grow(observedFull *mpmcQueue) {
	grown := newMPMCQueue(observedFull.cap() * 2)
	for {
		v, ok := observedFull.tryDequeue()
		if !ok {
			break
		}
		grown.tryEnqueue(v)
	}
	g.q.CompareAndSwap(observedFull, grown)
}

func (g *growableQueue) dequeue() (any, bool) {
	return g.q.Load().tryDequeue()
}

// backoff implements the exponential-backoff-with-pause-hint retry policy
// spec §4.2 calls for around queue contention: runtime.Gosched() stands in
// for a CPU pause instruction (Go has no portable intrinsic for one), with
// the sleep duration doubling up to a small cap so idle workers don't spin
// a full core waiting for work.
type backoff struct {
	attempt int
}

const backoffCap = 200 * time.Microsecond

func (b *backoff) wait() {
	if b.attempt < 4 {
		runtime.Gosched()
		b.attempt++
		return
	}
	d := time.Duration(1<<uint(b.attempt-4)) * time.Microsecond
	if d > backoffCap {
		d = backoffCap
	}
	time.Sleep(d)
	b.attempt++
}

func (b *backoff) reset() { b.attempt = 0 }
