package query

import (
	"math"
	"runtime"
	"sync/atomic"

	"github.com/RayforceDB/rayforce/pkg/hashtable"
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

// perfectHashThreshold and parallelAggThreshold are spec §4.5.1's
// PERFECT_HASH_THRESHOLD and PARALLEL_AGG_THRESHOLD ("e.g." values in the
// spec; fixed here the same way pkg/sortpkg fixes its own size cutoffs).
const (
	perfectHashThreshold = 65536
	parallelAggThreshold = 1 << 18
)

type aggOp int

const (
	aggSum aggOp = iota
	aggCount
	aggAvg
	aggMin
	aggMax
	aggFirst
	aggLast
)

// groupIndex is the materialized result of a group-discovery pass: which
// group each row belongs to, plus each group's representative row (spec
// §4.5.1: "the first row that inserted the group").
type groupIndex struct {
	ids        []uint32 // len == n rows
	repRow     []int64  // len == groupCount
	groupCount int
}

// aggStats is the per-group reduced state produced by the fused
// hash-aggregate, independent of which discovery path produced it (spec
// §4.5.1). Every supported op (sum/count/avg/min/max/first/last) reduces
// to a running float64 view of the value column (see elemAsF64), so one
// shape of accumulator serves all of them.
type aggStats struct {
	sum, min, max, first, last []float64
	count                      []int64
	seen                       []bool
}

func newAggStats(groupCount int) *aggStats {
	s := &aggStats{}
	for i := 0; i < groupCount; i++ {
		s.grow()
	}
	return s
}

// grow appends one more zero/sentinel group slot, for discovery paths
// (SYMBOL interning) where the final group count isn't known until the
// scan completes.
func (s *aggStats) grow() {
	s.sum = append(s.sum, 0)
	s.count = append(s.count, 0)
	s.min = append(s.min, math.Inf(1))
	s.max = append(s.max, math.Inf(-1))
	s.first = append(s.first, 0)
	s.last = append(s.last, 0)
	s.seen = append(s.seen, false)
}

func (s *aggStats) add(g uint32, x float64) {
	s.sum[g] += x
	s.count[g]++
	if x < s.min[g] {
		s.min[g] = x
	}
	if x > s.max[g] {
		s.max[g] = x
	}
	if !s.seen[g] {
		s.first[g] = x
		s.seen[g] = true
	}
	s.last[g] = x
}

// mergeFrom folds src's per-group state into s. Sum/count/min/max are
// order-independent; first/last are only correct if callers merge
// workers in ascending original-row order, which every caller here does
// (contiguous chunk splits, merged worker 0..w-1 in order).
func (s *aggStats) mergeFrom(src *aggStats) {
	for g := range s.sum {
		if src.count[g] == 0 && !src.seen[g] {
			continue
		}
		s.sum[g] += src.sum[g]
		s.count[g] += src.count[g]
		if src.min[g] < s.min[g] {
			s.min[g] = src.min[g]
		}
		if src.max[g] > s.max[g] {
			s.max[g] = src.max[g]
		}
		if src.seen[g] {
			if !s.seen[g] {
				s.first[g] = src.first[g]
			}
			s.last[g] = src.last[g]
			s.seen[g] = true
		}
	}
}

func (s *aggStats) result(op aggOp, groupCount int) []float64 {
	out := make([]float64, groupCount)
	for g := 0; g < groupCount; g++ {
		switch op {
		case aggSum:
			out[g] = s.sum[g]
		case aggCount:
			out[g] = float64(s.count[g])
		case aggAvg:
			if s.count[g] == 0 {
				out[g] = value.NullF64
			} else {
				out[g] = s.sum[g] / float64(s.count[g])
			}
		case aggMin:
			if s.count[g] == 0 {
				out[g] = value.NullF64
			} else {
				out[g] = s.min[g]
			}
		case aggMax:
			if s.count[g] == 0 {
				out[g] = value.NullF64
			} else {
				out[g] = s.max[g]
			}
		case aggFirst:
			out[g] = s.first[g]
		case aggLast:
			out[g] = s.last[g]
		}
	}
	return out
}

// aggFunc adapts an aggOp into the registry's evalFunc shape: if the sole
// argument is a MAPGROUP-tagged column, it runs the fused hash-aggregate
// (spec §4.5.1); otherwise it reduces the whole column with no grouping
// (the query had no `by` clause).
func aggFunc(op aggOp) evalFunc {
	return func(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
		if len(args) != 1 {
			return nil, rferr.NewArity(1, len(args))
		}
		col := args[0]
		if col.Tag == value.TMapGroup {
			return runGroupedAggregate(ctx, scope, col, op)
		}
		return runUngroupedAggregate(col, op)
	}
}

func runUngroupedAggregate(col *value.Value, op aggOp) (*value.Value, error) {
	n := int(col.Len())
	switch op {
	case aggCount:
		return value.NewI64(int64(n)), nil
	case aggFirst:
		if n == 0 {
			return value.NewF64(value.NullF64), nil
		}
		return value.NewF64(elemAsF64(col, 0)), nil
	case aggLast:
		if n == 0 {
			return value.NewF64(value.NullF64), nil
		}
		return value.NewF64(elemAsF64(col, n-1)), nil
	}
	var sum float64
	count := 0
	min, max := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		if isNullElem(col, i) {
			continue
		}
		x := elemAsF64(col, i)
		sum += x
		count++
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	switch op {
	case aggSum:
		return value.NewF64(sum), nil
	case aggAvg:
		if count == 0 {
			return value.NewF64(value.NullF64), nil
		}
		return value.NewF64(sum / float64(count)), nil
	case aggMin:
		if count == 0 {
			return value.NewF64(value.NullF64), nil
		}
		return value.NewF64(min), nil
	case aggMax:
		if count == 0 {
			return value.NewF64(value.NullF64), nil
		}
		return value.NewF64(max), nil
	default:
		return nil, rferr.NewNYI("aggregate op")
	}
}

func isNullElem(col *value.Value, i int) bool {
	switch col.Tag {
	case value.TF64:
		return math.IsNaN(col.F64s()[i])
	case value.TI64, value.TTimestamp:
		return col.I64s()[i] == value.NullI64
	case value.TI32, value.TDate, value.TTime:
		return col.I32s()[i] == value.NullI32
	case value.TI16:
		return col.I16s()[i] == value.NullI16
	default:
		return false
	}
}

// aggCacheKey identifies one (group key list, value column) pair within a
// select: sibling projections aggregating the same column over the same
// grouping (e.g. `x:(sum price)` and `y:(max price)`) share one
// accumulation pass (spec §4.5.1).
type aggCacheKey struct {
	keys *value.Value
	col  *value.Value
}

type cachedAgg struct {
	stats      *aggStats
	groupCount int
}

// runGroupedAggregate performs spec §4.5.1's fused hash-aggregate, in
// increasing order of cost:
//   - a sibling op already reduced this exact (keyList, column) pair this
//     select: reuse its cached stats.
//   - keyList's group identity is already known (a sibling op on a
//     different column, or the key-echo path, discovered it first): skip
//     discovery, reduce col against the cached groupIndex (parallel for
//     large n).
//   - neither cached: discover groups and reduce col in the same pass —
//     the fused path proper (parallel for large n).
func runGroupedAggregate(ctx *evalCtx, scope *evalScope, col *value.Value, op aggOp) (*value.Value, error) {
	base := col.MapGroupBase()
	keyList := col.MapGroupDesc()
	cacheKey := aggCacheKey{keys: keyList, col: base}

	if cached, ok := scope.aggCache[cacheKey]; ok {
		return vectorFromStats(ctx, cached.stats, op, cached.groupCount)
	}

	if gi, ok := scope.groupCache[keyList]; ok {
		stats := reduceColumn(ctx.VM.Pool, base, gi)
		scope.aggCache[cacheKey] = &cachedAgg{stats: stats, groupCount: gi.groupCount}
		return vectorFromStats(ctx, stats, op, gi.groupCount)
	}

	gi, stats, err := discoverAndAggregate(ctx.VM.Pool, keyList.Elems(), base)
	if err != nil {
		return nil, err
	}
	scope.groupCache[keyList] = gi
	scope.aggCache[cacheKey] = &cachedAgg{stats: stats, groupCount: gi.groupCount}
	return vectorFromStats(ctx, stats, op, gi.groupCount)
}

func vectorFromStats(ctx *evalCtx, stats *aggStats, op aggOp, groupCount int) (*value.Value, error) {
	return value.VectorFromF64(ctx.VM.Heap, stats.result(op, groupCount))
}

// groupIndexFor returns the cached groupIndex for keyList, running bare
// group discovery (no aggregation) once per key-list identity per select
// — used by the key-echo materialization, which needs only group
// membership and a representative row, not any reduced column.
func groupIndexFor(scope *evalScope, keyList *value.Value, base *value.Value) (*groupIndex, error) {
	if gi, ok := scope.groupCache[keyList]; ok {
		return gi, nil
	}
	gi, err := discoverGroups(keyList.Elems(), base.Len())
	if err != nil {
		return nil, err
	}
	scope.groupCache[keyList] = gi
	return gi, nil
}

// discoverGroups builds group assignment alone (no aggregation), for the
// key-echo path where there's no value column to fuse with.
func discoverGroups(keyCols []*value.Value, n int64) (*groupIndex, error) {
	if len(keyCols) == 1 {
		switch keyCols[0].Tag {
		case value.TI64:
			if gi, ok := discoverPerfectHashI64(keyCols[0], n); ok {
				return gi, nil
			}
		case value.TSymbol:
			return discoverPerfectHashSymbol(keyCols[0], n), nil
		}
	}
	return discoverGroupsComposite(keyCols, n)
}

func parallelWorkers(n int) int {
	w := runtime.NumCPU()
	if w > 16 {
		w = 16
	}
	if w < 1 {
		w = 1
	}
	if w > n {
		w = n
	}
	return w
}

func splitChunks(n, workers int) [][2]int {
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

// runParallel dispatches n independent tasks through pool (spec §4.2),
// blocking until all complete.
func runParallel(pool vm.Pool, n int, fn func(i int)) {
	pool.Prepare()
	for i := 0; i < n; i++ {
		i := i
		pool.AddTask(func(c *vm.Context) (*value.Value, error) {
			fn(i)
			return nil, nil
		})
	}
	_, _ = pool.Run()
}

// reduceColumn applies an already-discovered grouping to col, accumulating
// per-group sum/count/min/max/first/last in a single pass (spec §4.5.1's
// "reduction-only" case: a sibling op already discovered groups over a
// different column). Dispatches through pool when base is large enough to
// be worth the fan-out (spec §4.5.1's "Parallelism" paragraph).
func reduceColumn(pool vm.Pool, base *value.Value, gi *groupIndex) *aggStats {
	n := int(base.Len())
	if pool == nil || n < parallelAggThreshold {
		return reduceColumnRange(base, gi, 0, n)
	}
	workers := parallelWorkers(n)
	chunks := splitChunks(n, workers)
	partials := make([]*aggStats, len(chunks))
	runParallel(pool, len(chunks), func(i int) {
		ch := chunks[i]
		partials[i] = reduceColumnRange(base, gi, ch[0], ch[1])
	})
	merged := newAggStats(gi.groupCount)
	for _, p := range partials {
		merged.mergeFrom(p)
	}
	return merged
}

func reduceColumnRange(base *value.Value, gi *groupIndex, lo, hi int) *aggStats {
	s := newAggStats(gi.groupCount)
	for i := lo; i < hi; i++ {
		g := gi.ids[i]
		if g == hashtable.EmptyGroup || isNullElem(base, i) {
			continue
		}
		s.add(g, elemAsF64(base, i))
	}
	return s
}

// discoverAndAggregate is the fused path proper: group discovery and the
// first column's reduction happen in the same scan (spec §4.5.1), choosing
// perfect hash for a single small-range I64/SYMBOL key and the composite
// hash table otherwise.
func discoverAndAggregate(pool vm.Pool, keyCols []*value.Value, base *value.Value) (*groupIndex, *aggStats, error) {
	n := base.Len()
	if len(keyCols) == 1 {
		switch keyCols[0].Tag {
		case value.TI64:
			if gi, stats, ok := fusedPerfectHashI64(pool, keyCols[0], base, n); ok {
				return gi, stats, nil
			}
		case value.TSymbol:
			gi, stats := fusedPerfectHashSymbol(pool, keyCols[0], base, n)
			return gi, stats, nil
		}
	}
	return fusedComposite(pool, keyCols, base, n)
}

// --- I64 perfect hash ---

func keyRangeI64(xs []int64) (min, max int64, ok bool) {
	first := true
	for _, x := range xs {
		if x == value.NullI64 {
			continue
		}
		if first {
			min, max = x, x
			first = false
			continue
		}
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	if first {
		return 0, 0, true
	}
	return min, max, true
}

func discoverPerfectHashI64(keyCol *value.Value, n int64) (*groupIndex, bool) {
	gi, _, ok := fusedPerfectHashI64(nil, keyCol, nil, n)
	return gi, ok
}

// fusedPerfectHashI64 implements the K=1, I64-with-small-range fast path
// (spec §4.5.1): one aggregate slot per possible key value, indexed
// directly by key-min. base may be nil when only discovery (no
// aggregation) is wanted. Fuses id assignment and aggregation into one
// pass over the rows when base is non-nil and n is below
// parallelAggThreshold; above it, the per-row work is fanned out through
// pool and the (cheap, O(range)) compaction happens once afterward.
func fusedPerfectHashI64(pool vm.Pool, keyCol, base *value.Value, n int64) (*groupIndex, *aggStats, bool) {
	xs := keyCol.I64s()
	min, max, _ := keyRangeI64(xs)
	rng := max - min + 1
	if rng <= 0 || rng > perfectHashThreshold {
		return nil, nil, false
	}

	if base == nil || pool == nil || n < parallelAggThreshold {
		gi, stats := fusedPerfectHashI64Serial(xs, min, rng, base, n)
		return gi, stats, true
	}
	gi, stats := fusedPerfectHashI64Parallel(pool, xs, min, rng, base, n)
	return gi, stats, true
}

// fusedPerfectHashI64Serial assigns a dense compact group id to each
// distinct key value in first-occurrence order (sequential, so no
// coordination is needed to compact ids on the fly) and, when base is
// given, accumulates its value into that same group's stats in the same
// loop iteration — discovery and aggregation fused into one pass (spec
// §4.5.1).
func fusedPerfectHashI64Serial(xs []int64, min, rng int64, base *value.Value, n int64) (*groupIndex, *aggStats) {
	slotGroup := make([]int32, rng)
	for i := range slotGroup {
		slotGroup[i] = -1
	}
	ids := make([]uint32, n)
	repRow := make([]int64, 0, 64)
	var stats *aggStats
	if base != nil {
		stats = &aggStats{}
	}
	nextGroup := uint32(0)
	for i := 0; i < int(n); i++ {
		x := xs[i]
		if x == value.NullI64 {
			ids[i] = hashtable.EmptyGroup
			continue
		}
		slot := x - min
		g := slotGroup[slot]
		if g == -1 {
			g = int32(nextGroup)
			slotGroup[slot] = g
			repRow = append(repRow, int64(i))
			if stats != nil {
				stats.grow()
			}
			nextGroup++
		}
		ids[i] = uint32(g)
		if base != nil && !isNullElem(base, i) {
			stats.add(uint32(g), elemAsF64(base, i))
		}
	}
	return &groupIndex{ids: ids, repRow: repRow, groupCount: int(nextGroup)}, stats
}

// fusedPerfectHashI64Parallel parallelizes the dominant O(n) cost (hashing
// each row's key into its slot and accumulating base's value) while
// keeping the group-compaction step — which must see every row before it
// can assign final dense ids — to one cheap O(range) sequential pass
// afterward (spec §4.5.1's "Parallelism" paragraph: split rows into
// chunks, give each worker its own local aggregate state, then merge).
//
// Phase 1 (parallel): each worker scans its row chunk, writing the raw
// slot (not yet a compact group id — slot is already a deterministic
// function of the key value, so no worker can collide with another on
// assignment) into a shared per-row slice, accumulating its own
// slot-indexed local aggStats, and racing only on the first-seen
// representative row per slot (resolved with a CAS so any racing writer's
// row is an equally valid representative).
//
// Phase 2 (sequential, O(range)): merge every worker's slot-indexed stats
// by simple elementwise addition, then compact: slots that were never hit
// get skipped, the rest get sequential group ids in slot order.
//
// Phase 3 (parallel): remap each row's slot to its final compact group id
// — cheap index translation, no recomputation of the phase 1 work.
func fusedPerfectHashI64Parallel(pool vm.Pool, xs []int64, min, rng int64, base *value.Value, n int64) (*groupIndex, *aggStats) {
	workers := parallelWorkers(int(n))
	chunks := splitChunks(int(n), workers)

	rowSlot := make([]int32, n)
	slotRepRow := make([]int64, rng)
	for i := range slotRepRow {
		slotRepRow[i] = -1
	}
	localStats := make([]*aggStats, len(chunks))

	runParallel(pool, len(chunks), func(ci int) {
		ch := chunks[ci]
		local := newAggStats(int(rng))
		for i := ch[0]; i < ch[1]; i++ {
			x := xs[i]
			if x == value.NullI64 {
				rowSlot[i] = -1
				continue
			}
			slot := int32(x - min)
			rowSlot[i] = slot
			atomic.CompareAndSwapInt64(&slotRepRow[slot], -1, int64(i))
			if !isNullElem(base, i) {
				local.add(uint32(slot), elemAsF64(base, i))
			}
		}
		localStats[ci] = local
	})

	merged := newAggStats(int(rng))
	for _, p := range localStats {
		merged.mergeFrom(p)
	}

	compactOf := make([]int32, rng)
	repRow := make([]int64, 0, 64)
	var stats aggStats
	nextGroup := uint32(0)
	for slot := int64(0); slot < rng; slot++ {
		if slotRepRow[slot] == -1 {
			compactOf[slot] = -1
			continue
		}
		compactOf[slot] = int32(nextGroup)
		repRow = append(repRow, slotRepRow[slot])
		stats.sum = append(stats.sum, merged.sum[slot])
		stats.count = append(stats.count, merged.count[slot])
		stats.min = append(stats.min, merged.min[slot])
		stats.max = append(stats.max, merged.max[slot])
		stats.first = append(stats.first, merged.first[slot])
		stats.last = append(stats.last, merged.last[slot])
		stats.seen = append(stats.seen, merged.seen[slot])
		nextGroup++
	}

	ids := make([]uint32, n)
	runParallel(pool, len(chunks), func(ci int) {
		ch := chunks[ci]
		for i := ch[0]; i < ch[1]; i++ {
			if rowSlot[i] == -1 {
				ids[i] = hashtable.EmptyGroup
				continue
			}
			ids[i] = uint32(compactOf[rowSlot[i]])
		}
	})

	return &groupIndex{ids: ids, repRow: repRow, groupCount: int(nextGroup)}, &stats
}

// --- SYMBOL perfect hash ---

// discoverPerfectHashSymbol and fusedPerfectHashSymbol use a fresh,
// call-scoped hashtable.Interner rather than any shared/global instance
// (spec's symbol table is process-wide for persistent storage, but
// nothing requires a group-discovery pass to route through it — and
// pkg/vm's no-stray-global-mutable-state convention argues against
// reaching for one here). Intern assigns ids sequentially in
// first-occurrence order starting at 0, so the interned id for a row IS
// already a dense, compact perfect-hash group id — no range/min-offset
// bookkeeping is needed the way the I64 path requires.
func discoverPerfectHashSymbol(keyCol *value.Value, n int64) *groupIndex {
	gi, _ := fusedPerfectHashSymbol(nil, keyCol, nil, n)
	return gi
}

func fusedPerfectHashSymbol(pool vm.Pool, keyCol, base *value.Value, n int64) (*groupIndex, *aggStats) {
	strs := keyCol.Strs()
	if base == nil || pool == nil || n < parallelAggThreshold {
		return fusedPerfectHashSymbolSerial(strs, base, n)
	}
	return fusedPerfectHashSymbolParallel(pool, strs, base, n)
}

func fusedPerfectHashSymbolSerial(strs []string, base *value.Value, n int64) (*groupIndex, *aggStats) {
	in := hashtable.NewInterner()
	ids := make([]uint32, n)
	repRow := make([]int64, 0, 64)
	var stats *aggStats
	if base != nil {
		stats = &aggStats{}
	}
	for i := 0; i < int(n); i++ {
		g := in.Intern(strs[i])
		ids[i] = g
		if int(g) == len(repRow) {
			repRow = append(repRow, int64(i))
			if stats != nil {
				stats.grow()
			}
		}
		if base != nil && !isNullElem(base, i) {
			stats.add(g, elemAsF64(base, i))
		}
	}
	return &groupIndex{ids: ids, repRow: repRow, groupCount: in.Len()}, stats
}

// symAccum is a worker-local sparse accumulator keyed directly by the
// shared Interner's global id, so no per-worker-to-global remap is needed
// (unlike the I64 perfect-hash parallel path, whose slot space is purely
// local until the compaction step): every worker interns into the *same*
// Interner instance, which is safe for concurrent use.
type symAccum struct {
	sum, min, max, first, last map[uint32]float64
	count                      map[uint32]int64
	repRow                     map[uint32]int64
}

func newSymAccum() *symAccum {
	return &symAccum{
		sum: map[uint32]float64{}, min: map[uint32]float64{}, max: map[uint32]float64{},
		first: map[uint32]float64{}, last: map[uint32]float64{},
		count: map[uint32]int64{}, repRow: map[uint32]int64{},
	}
}

func (a *symAccum) touch(g uint32, row int) {
	if _, ok := a.repRow[g]; !ok {
		a.repRow[g] = int64(row)
	}
}

func (a *symAccum) add(g uint32, x float64) {
	a.sum[g] += x
	a.count[g]++
	if cur, ok := a.min[g]; !ok || x < cur {
		a.min[g] = x
	}
	if cur, ok := a.max[g]; !ok || x > cur {
		a.max[g] = x
	}
	if _, ok := a.first[g]; !ok {
		a.first[g] = x
	}
	a.last[g] = x
}

func fusedPerfectHashSymbolParallel(pool vm.Pool, strs []string, base *value.Value, n int64) (*groupIndex, *aggStats) {
	in := hashtable.NewInterner()
	workers := parallelWorkers(int(n))
	chunks := splitChunks(int(n), workers)
	ids := make([]uint32, n)
	accums := make([]*symAccum, len(chunks))

	runParallel(pool, len(chunks), func(ci int) {
		ch := chunks[ci]
		acc := newSymAccum()
		for i := ch[0]; i < ch[1]; i++ {
			g := in.Intern(strs[i])
			ids[i] = g
			acc.touch(g, i)
			if !isNullElem(base, i) {
				acc.add(g, elemAsF64(base, i))
			}
		}
		accums[ci] = acc
	})

	groupCount := in.Len()
	repRow := make([]int64, groupCount)
	for i := range repRow {
		repRow[i] = -1
	}
	stats := newAggStats(groupCount)
	for _, acc := range accums {
		for g, row := range acc.repRow {
			if repRow[g] == -1 || row < repRow[g] {
				repRow[g] = row
			}
		}
		for g, c := range acc.count {
			stats.sum[g] += acc.sum[g]
			stats.count[g] += c
			if acc.min[g] < stats.min[g] {
				stats.min[g] = acc.min[g]
			}
			if acc.max[g] > stats.max[g] {
				stats.max[g] = acc.max[g]
			}
			if !stats.seen[g] {
				stats.first[g] = acc.first[g]
			}
			stats.last[g] = acc.last[g]
			stats.seen[g] = true
		}
	}
	return &groupIndex{ids: ids, repRow: repRow, groupCount: groupCount}, stats
}

// --- composite (multi-column / non-numeric-range) ---

// compositeKeyFuncs builds the per-row hash and equality helpers shared by
// every composite discovery path, closing over keyCols.
func compositeKeyFuncs(keyCols []*value.Value) (rowKey func(col *value.Value, row int) uint64, rowsEqual func(a, b int) bool) {
	rowKey = func(col *value.Value, row int) uint64 {
		switch col.Tag {
		case value.TI64, value.TTimestamp:
			return uint64(col.I64s()[row])
		case value.TI32, value.TDate, value.TTime:
			return uint64(uint32(col.I32s()[row]))
		case value.TI16:
			return uint64(uint16(col.I16s()[row]))
		case value.TSymbol:
			return hashtable.HashString(col.Strs()[row])
		default:
			return uint64(row)
		}
	}
	rowsEqual = func(a, b int) bool {
		for _, col := range keyCols {
			if rowKey(col, a) != rowKey(col, b) {
				return false
			}
			if col.Tag == value.TSymbol && col.Strs()[a] != col.Strs()[b] {
				return false
			}
		}
		return true
	}
	return rowKey, rowsEqual
}

func hashRow(rowKey func(col *value.Value, row int) uint64, keyCols []*value.Value, row int) uint64 {
	h := uint64(0)
	for _, col := range keyCols {
		h = hashtable.Mix(h, rowKey(col, row))
	}
	return h
}

func discoverGroupsComposite(keyCols []*value.Value, n int64) (*groupIndex, error) {
	gi, _ := fusedCompositeRange(keyCols, nil, 0, n)
	return gi, nil
}

// fusedComposite runs discoverGroupsComposite's hash-table discovery and
// col's aggregation in the same per-row loop (spec §4.5.1), immediately
// calling the AggTable's own accumulator methods right after each row's
// FindOrInsert rather than a second pass over base.
func fusedComposite(pool vm.Pool, keyCols []*value.Value, base *value.Value, n int64) (*groupIndex, *aggStats, error) {
	if pool == nil || n < parallelAggThreshold {
		gi, tbl := fusedCompositeRange(keyCols, base, 0, n)
		return gi, statsFromAggTable(tbl, base), nil
	}
	return fusedCompositeParallel(pool, keyCols, base, n)
}

func fusedCompositeRange(keyCols []*value.Value, base *value.Value, lo, hi int64) (*groupIndex, *hashtable.AggTable) {
	tbl := hashtable.NewAggTable(64)
	ids := make([]uint32, hi-lo)
	rowKey, rowsEqual := compositeKeyFuncs(keyCols)
	for i := lo; i < hi; i++ {
		h := hashRow(rowKey, keyCols, int(i))
		g, _ := tbl.FindOrInsert(h, i, func(repRow int64) bool {
			return rowsEqual(int(repRow), int(i))
		})
		ids[i-lo] = g
		if base != nil && !isNullElem(base, int(i)) {
			x := elemAsF64(base, int(i))
			tbl.AddSumF64(g, x)
			tbl.IncCount(g)
			tbl.UpdateMinF64(g, x)
			tbl.UpdateMaxF64(g, x)
			tbl.SetFirst(g, i)
			tbl.SetLast(g, i)
		}
	}
	repRow := make([]int64, tbl.GroupCount())
	for g := 0; g < tbl.GroupCount(); g++ {
		repRow[g] = tbl.RepRow(uint32(g))
	}
	return &groupIndex{ids: ids, repRow: repRow, groupCount: tbl.GroupCount()}, tbl
}

func statsFromAggTable(tbl *hashtable.AggTable, base *value.Value) *aggStats {
	gc := tbl.GroupCount()
	stats := newAggStats(gc)
	for g := 0; g < gc; g++ {
		gg := uint32(g)
		stats.sum[g] = tbl.SumF64(gg)
		stats.count[g] = tbl.Count(gg)
		stats.min[g] = tbl.MinF64(gg)
		stats.max[g] = tbl.MaxF64(gg)
		if fr := tbl.First(gg); fr != -1 {
			stats.first[g] = elemAsF64(base, int(fr))
			stats.seen[g] = true
		}
		if lr := tbl.Last(gg); lr != -1 {
			stats.last[g] = elemAsF64(base, int(lr))
		}
	}
	return stats
}

// fusedCompositeParallel gives each worker its own local AggTable over a
// contiguous row chunk (fusing that chunk's discovery and aggregation, as
// fusedCompositeRange does), then merges the worker tables into one global
// table by re-probing each local group's stored hash (spec §4.5.1: "using
// the precomputed stored hash") rather than recomputing it, and folding
// state with AggTable.MergeGroup.
func fusedCompositeParallel(pool vm.Pool, keyCols []*value.Value, base *value.Value, n int64) (*groupIndex, *aggStats, error) {
	workers := parallelWorkers(int(n))
	chunks := splitChunks(int(n), workers)
	localTables := make([]*hashtable.AggTable, len(chunks))
	localIDs := make([][]uint32, len(chunks))

	runParallel(pool, len(chunks), func(ci int) {
		ch := chunks[ci]
		gi, tbl := fusedCompositeRange(keyCols, base, int64(ch[0]), int64(ch[1]))
		localTables[ci] = tbl
		localIDs[ci] = gi.ids
	})

	_, rowsEqual := compositeKeyFuncs(keyCols)
	merged := hashtable.NewAggTable(64)
	localToGlobal := make([][]uint32, len(chunks))
	for ci, lt := range localTables {
		m := make([]uint32, lt.GroupCount())
		for lg := 0; lg < lt.GroupCount(); lg++ {
			h := lt.HashOf(uint32(lg))
			repRow := lt.RepRow(uint32(lg))
			g, _ := merged.FindOrInsert(h, repRow, func(mergedRepRow int64) bool {
				return rowsEqual(int(mergedRepRow), int(repRow))
			})
			merged.MergeGroup(g, lt, uint32(lg))
			m[lg] = g
		}
		localToGlobal[ci] = m
	}

	ids := make([]uint32, n)
	runParallel(pool, len(chunks), func(ci int) {
		ch := chunks[ci]
		m := localToGlobal[ci]
		local := localIDs[ci]
		for i := ch[0]; i < ch[1]; i++ {
			ids[i] = m[local[i-ch[0]]]
		}
	})

	repRow := make([]int64, merged.GroupCount())
	for g := 0; g < merged.GroupCount(); g++ {
		repRow[g] = merged.RepRow(uint32(g))
	}
	gi := &groupIndex{ids: ids, repRow: repRow, groupCount: merged.GroupCount()}
	return gi, statsFromAggTable(merged, base), nil
}
