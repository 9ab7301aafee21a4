package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

const (
	initialQueueCapacity = 256
	// borrowBlocksPerWorker bounds how many small/medium free blocks
	// prepare() lends each worker from the main heap (spec §4.2:
	// "borrow a share of small and medium free blocks").
	borrowBlocksPerWorker = 32
	// splitByThreshold is the row-count floor below which parallelizing a
	// chunked op isn't worth the fan-out/merge overhead (spec §4.2's
	// "input-size threshold").
	splitByThreshold = 4096
	pageSize         = 4096
)

// worker is one non-main executor: its own VM/heap, OS-thread-pinned
// goroutine, and a per-pool stop signal.
type worker struct {
	ctx    *vm.Context
	heap   *heap.Heap
	cpu    int
	stopCh chan struct{}
}

// Pool is the worker pool from spec §4.2. Executor 0 is always the
// calling goroutine/thread ("the caller"); Pool itself owns executors
// 1..N-1 as persistent background goroutines.
type Pool struct {
	main    *heap.Heap
	mainCtx *vm.Context
	workers []*worker
	topo    *Topology

	queue   *growableQueue
	pending sync.WaitGroup

	resultsMu sync.Mutex
	results   map[int]*value.Value
	taskSeq   atomic.Int64

	firstErrMu sync.Mutex
	firstErr   error

	rcSync atomic.Bool

	// metrics is the process-wide error counter collector (spec §7's
	// ErrorMetrics), shared by the main executor and every worker so one
	// collector sees the pool's whole error rate. Exposed to callers that
	// build further VM contexts against this pool (cmd/rayforce's
	// per-request contexts) via Metrics().
	metrics *rferr.Metrics
}

// Create returns a pool with n executors (spec §4.2's create(N)):
// executor 0 is the caller, running against mainHeap; 1..n-1 are worker
// goroutines each with a freshly-allocated heap, pinned per BuildTopology.
func Create(n int, mainHeap *heap.Heap, mainExecutorID int) *Pool {
	if n < 1 {
		n = 1
	}
	metrics := rferr.NewMetrics()
	p := &Pool{
		main:    mainHeap,
		mainCtx: vm.New(mainHeap, mainExecutorID).WithMetrics(metrics),
		queue:   newGrowableQueue(initialQueueCapacity),
		results: make(map[int]*value.Value),
		topo:    BuildTopology(n - 1),
		metrics: metrics,
	}
	for i := 1; i < n; i++ {
		h := heap.New(uint32(mainHeap.ID())<<16 | uint32(i))
		h.Register()
		w := &worker{
			ctx:    vm.New(h, i).WithMetrics(metrics),
			heap:   h,
			cpu:    p.topo.CPUFor(i - 1),
			stopCh: make(chan struct{}),
		}
		// Workers set rc_sync permanently at startup (spec §4.2); only the
		// main executor's VM toggles it for the duration of a fan-out.
		w.ctx.RCSync = true
		p.workers = append(p.workers, w)
		go p.runWorker(w)
	}
	return p
}

func (p *Pool) runWorker(w *worker) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	_ = pinCurrentThread(w.cpu)

	var bo backoff
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		v, ok := p.queue.dequeue()
		if !ok {
			bo.wait()
			continue
		}
		bo.reset()
		p.execute(w.ctx, v.(task))
	}
}

func (p *Pool) execute(ctx *vm.Context, t task) {
	defer p.pending.Done()
	res, err := t.fn(ctx)
	if err != nil {
		p.firstErrMu.Lock()
		if p.firstErr == nil {
			p.firstErr = err
		}
		p.firstErrMu.Unlock()
		return
	}
	p.resultsMu.Lock()
	p.results[t.idx] = res
	p.resultsMu.Unlock()
}

// Prepare resets per-run counters and has each worker borrow a share of
// small/medium free blocks from the main heap (spec §4.2's prepare()).
func (p *Pool) Prepare() {
	p.taskSeq.Store(0)
	p.firstErrMu.Lock()
	p.firstErr = nil
	p.firstErrMu.Unlock()
	p.resultsMu.Lock()
	p.results = make(map[int]*value.Value)
	p.resultsMu.Unlock()
	for _, w := range p.workers {
		w.heap.Borrow(p.main, borrowBlocksPerWorker)
	}
}

// AddTask enqueues fn, returning its submission index for result ordering.
func (p *Pool) AddTask(fn TaskFunc) int {
	idx := int(p.taskSeq.Add(1) - 1)
	p.pending.Add(1)
	p.queue.enqueue(task{idx: idx, fn: fn})
	return idx
}

// Run signals workers, drains the queue on the calling thread too,
// waits for all in-flight tasks, merges worker heaps back into the main
// heap, and returns results as a LIST ordered by submission index (spec
// §4.2's run()). rc_sync is set on the main VM for the duration.
func (p *Pool) Run() (*value.Value, error) {
	p.rcSync.Store(true)
	p.mainCtx.RCSync = true
	defer func() {
		p.rcSync.Store(false)
		p.mainCtx.RCSync = false
	}()

	for {
		v, ok := p.queue.dequeue()
		if !ok {
			break
		}
		p.execute(p.mainCtx, v.(task))
	}
	p.pending.Wait()

	for _, w := range p.workers {
		p.main.Merge(w.heap)
	}

	p.firstErrMu.Lock()
	err := p.firstErr
	p.firstErrMu.Unlock()
	if err != nil {
		return nil, err
	}

	p.resultsMu.Lock()
	defer p.resultsMu.Unlock()
	n := len(p.results)
	elems := make([]*value.Value, n)
	for idx, v := range p.results {
		if idx < n {
			elems[idx] = v
		}
	}
	return value.NewList(elems), nil
}

// SplitBy returns the recommended worker count for a chunked operation
// over nRows rows producing nGroups groups (spec §4.2's split_by):
// degrades to 1 below the size threshold, while already inside a fan-out
// (rc_sync set), and once per-group contention would dominate (more
// groups than rows-per-worker would leave each worker).
func (p *Pool) SplitBy(nRows, nGroups int) int {
	if nRows < splitByThreshold {
		return 1
	}
	if p.mainCtx.RCSync {
		return 1
	}
	workers := len(p.workers) + 1
	if nGroups > 0 {
		for workers > 1 && nRows/workers < nGroups {
			workers--
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// ChunkAligned returns a chunk size for splitting total elements of
// elemSize bytes across workers, rounded up to whole memory pages (spec
// §4.2's chunk_aligned).
func ChunkAligned(total, workers, elemSize int) int {
	if workers < 1 {
		workers = 1
	}
	if elemSize < 1 {
		elemSize = 1
	}
	bytesPerWorker := (total*elemSize + workers - 1) / workers
	pages := (bytesPerWorker + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	chunkBytes := pages * pageSize
	chunk := chunkBytes / elemSize
	if chunk < 1 {
		chunk = 1
	}
	return chunk
}

// Close stops all worker goroutines. Call once the pool is no longer
// needed; a Pool is not usable afterward.
func (p *Pool) Close() {
	for _, w := range p.workers {
		close(w.stopCh)
	}
	for _, w := range p.workers {
		w.heap.Unregister()
	}
}

// NumExecutors returns the total executor count, including the main one.
func (p *Pool) NumExecutors() int { return len(p.workers) + 1 }

// Metrics returns the pool's shared error counter collector, so callers
// that build further VM contexts against this pool (one per IPC request,
// say) can attach it and have their errors tallied into the same totals
// as the pool's own executors.
func (p *Pool) Metrics() *rferr.Metrics { return p.metrics }
