package sortpkg

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

// runFanOut runs fn(i) for every i in [0,n), blocking until all have
// completed. When pool is non-nil the work is dispatched through the
// worker pool (spec §4.2: "data-parallel steps (histograms, scans,
// partial aggregates)" names exactly this kind of fan-out); when pool is
// nil (no pool available, e.g. a standalone sort call with no server
// around it) it falls back to an ad hoc errgroup of goroutines, which is
// what every parallel sort call used unconditionally before the worker
// pool existed.
func runFanOut(pool vm.Pool, n int, fn func(i int)) {
	if pool == nil {
		var g errgroup.Group
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				fn(i)
				return nil
			})
		}
		_ = g.Wait()
		return
	}
	pool.Prepare()
	for i := 0; i < n; i++ {
		i := i
		pool.AddTask(func(ctx *vm.Context) (*value.Value, error) {
			fn(i)
			return nil, nil
		})
	}
	_, _ = pool.Run()
}

// workerChunks splits n elements into up to `workers` contiguous,
// (start, end) ranges. Contiguous chunking (rather than striping) is what
// keeps each worker's scatter stable relative to the others: worker 0's
// elements always precede worker 1's within the same bucket.
func workerChunks(n, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	chunks := make([][2]int, 0, workers)
	base := n / workers
	rem := n % workers
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < rem {
			size++
		}
		end := start + size
		if end > start {
			chunks = append(chunks, [2]int{start, end})
		}
		start = end
	}
	return chunks
}

// defaultParallelism picks a worker count for a parallel sort dispatch,
// capped like the aggregate merge cap in spec §4.5.1 (16 workers) to bound
// phase-2 merge cost.
func defaultParallelism(requested int) int {
	if requested > 0 {
		if requested > 16 {
			return 16
		}
		return requested
	}
	n := runtime.GOMAXPROCS(0)
	if n > 16 {
		n = 16
	}
	if n < 1 {
		n = 1
	}
	return n
}

// parallelCountingSort implements spec §4.4's three-phase parallel
// counting sort: per-worker histogram, merge + per-worker position offsets
// via prefix sums, per-worker scatter. Each of the two data-parallel
// phases dispatches through pool when one is available (spec §4.2).
func parallelCountingSort(pool vm.Pool, bucketOf func(i int) int, n, numBuckets, workers int) []int64 {
	chunks := workerChunks(n, workers)
	w := len(chunks)
	if w <= 1 {
		return countingSortByBucket(n, bucketOf, numBuckets)
	}

	// Phase 1: per-worker histogram.
	hist := make([][]int64, w)
	runFanOut(pool, w, func(wi int) {
		ch := chunks[wi]
		h := make([]int64, numBuckets)
		for i := ch[0]; i < ch[1]; i++ {
			h[bucketOf(i)]++
		}
		hist[wi] = h
	})

	// Phase 2: merge into global prefix sums, then per-worker per-bucket
	// starting offsets (global bucket start + sum of earlier workers'
	// counts for that bucket).
	bucketTotal := make([]int64, numBuckets)
	for _, h := range hist {
		for b := 0; b < numBuckets; b++ {
			bucketTotal[b] += h[b]
		}
	}
	bucketStart := make([]int64, numBuckets)
	var running int64
	for b := 0; b < numBuckets; b++ {
		bucketStart[b] = running
		running += bucketTotal[b]
	}
	offsets := make([][]int64, w)
	for wi := 0; wi < w; wi++ {
		off := make([]int64, numBuckets)
		for b := 0; b < numBuckets; b++ {
			off[b] = bucketStart[b]
			for prior := 0; prior < wi; prior++ {
				off[b] += hist[prior][b]
			}
		}
		offsets[wi] = off
	}

	// Phase 3: per-worker scatter.
	out := make([]int64, n)
	runFanOut(pool, w, func(wi int) {
		ch := chunks[wi]
		pos := offsets[wi]
		for i := ch[0]; i < ch[1]; i++ {
			b := bucketOf(i)
			out[pos[b]] = int64(i)
			pos[b]++
		}
	})
	return out
}

// parallelRadixSort repeats the three-phase parallel counting sort once
// per digit, ping-ponging between the permutation produced by each pass
// (spec §4.4: "Parallel radix repeats the same three phases per 16-bit
// digit and ping-pongs between two index buffers").
func parallelRadixSort(pool vm.Pool, keys []uint64, n, digitBits, totalBits, workers int) []int64 {
	perm := iotaInt64(n)
	buckets := 1 << uint(digitBits)
	for shift := 0; shift < totalBits; shift += digitBits {
		s := uint(shift)
		mask := uint64(buckets - 1)
		bucketOf := func(i int) int { return int((keys[perm[i]] >> s) & mask) }
		nextPerm := parallelCountingSort(pool, bucketOf, n, buckets, workers)
		// nextPerm holds positions into perm; translate back to original indices.
		resolved := make([]int64, n)
		for i, p := range nextPerm {
			resolved[i] = perm[p]
		}
		perm = resolved
	}
	return perm
}
