package query

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/scheduler"
	"github.com/RayforceDB/rayforce/pkg/value"
)

// newTestPool builds a small real worker pool so parallel-path tests
// exercise the same vm.Pool wiring cmd/rayforce attaches to a request
// context, not a fake.
func newTestPool(t *testing.T) *scheduler.Pool {
	t.Helper()
	h := newTestHeap(t)
	pool := scheduler.Create(4, h, 0)
	t.Cleanup(pool.Close)
	return pool
}

// randI64Keys returns n int64 keys drawn from [0,groups) — small enough to
// stay inside perfectHashThreshold regardless of n.
func randI64Keys(rng *rand.Rand, n, groups int) []int64 {
	xs := make([]int64, n)
	for i := range xs {
		xs[i] = int64(rng.Intn(groups))
	}
	return xs
}

func sumByGroup(xs []int64, vals []float64, groups int) []float64 {
	out := make([]float64, groups)
	for i, k := range xs {
		out[k] += vals[i]
	}
	return out
}

// TestFusedPerfectHashI64ParallelMatchesSerial is spec §8.6's "parallel
// aggregate determinism" property for the I64 perfect-hash path: the
// parallel worker-chunk/merge path (review comment #2) must produce the
// same per-group sums as the single-pass serial path, for a row count well
// above parallelAggThreshold.
func TestFusedPerfectHashI64ParallelMatchesSerial(t *testing.T) {
	const n = parallelAggThreshold + 5000
	const groups = 37
	rng := rand.New(rand.NewSource(1))
	keys := randI64Keys(rng, n, groups)
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = rng.Float64() * 100
	}

	h := newTestHeap(t)
	valCol, err := value.VectorFromF64(h, vals)
	require.NoError(t, err)

	min, max, _ := keyRangeI64(keys)
	rng64 := max - min + 1

	giSerial, statsSerial := fusedPerfectHashI64Serial(keys, min, rng64, valCol, int64(n))
	require.Equal(t, groups, giSerial.groupCount)

	pool := newTestPool(t)
	giParallel, statsParallel := fusedPerfectHashI64Parallel(pool, keys, min, rng64, valCol, int64(n))
	require.Equal(t, giSerial.groupCount, giParallel.groupCount)

	// The serial path numbers groups in first-occurrence order and the
	// parallel path in slot order, so results are compared per key value,
	// read back from each group's representative row.
	byKey := func(gi *groupIndex, stats *aggStats, op aggOp) map[int64]float64 {
		out := map[int64]float64{}
		res := stats.result(op, gi.groupCount)
		for g := 0; g < gi.groupCount; g++ {
			out[keys[gi.repRow[g]]] = res[g]
		}
		return out
	}
	wantSum := sumByGroup(keys, vals, groups)
	serialSum := byKey(giSerial, statsSerial, aggSum)
	parallelSum := byKey(giParallel, statsParallel, aggSum)
	for k := 0; k < groups; k++ {
		require.InDeltaf(t, wantSum[k], serialSum[int64(k)], 1e-6, "serial key %d", k)
		require.InDeltaf(t, wantSum[k], parallelSum[int64(k)], 1e-6, "parallel key %d", k)
	}
	require.Equal(t, byKey(giSerial, statsSerial, aggCount), byKey(giParallel, statsParallel, aggCount))
	require.Equal(t, byKey(giSerial, statsSerial, aggMin), byKey(giParallel, statsParallel, aggMin))
	require.Equal(t, byKey(giSerial, statsSerial, aggMax), byKey(giParallel, statsParallel, aggMax))
}

// TestFusedPerfectHashSymbolParallelMatchesSerial covers review comment
// #4's SYMBOL branch of the perfect-hash fast path, run through its
// parallel variant directly (the production dispatch only takes this path
// above parallelAggThreshold rows).
func TestFusedPerfectHashSymbolParallelMatchesSerial(t *testing.T) {
	names := []string{"alice", "bob", "carol", "dave", "erin"}
	const n = 20000
	rng := rand.New(rand.NewSource(2))
	strs := make([]string, n)
	vals := make([]float64, n)
	for i := range strs {
		strs[i] = names[rng.Intn(len(names))]
		vals[i] = rng.Float64() * 50
	}
	h := newTestHeap(t)
	valCol, err := value.VectorFromF64(h, vals)
	require.NoError(t, err)

	giSerial, statsSerial := fusedPerfectHashSymbolSerial(strs, valCol, int64(n))
	require.Equal(t, len(names), giSerial.groupCount)

	pool := newTestPool(t)
	giParallel, statsParallel := fusedPerfectHashSymbolParallel(pool, strs, valCol, int64(n))
	require.Equal(t, giSerial.groupCount, giParallel.groupCount)

	wantSum := map[string]float64{}
	wantCount := map[string]int64{}
	for i, s := range strs {
		wantSum[s] += vals[i]
		wantCount[s]++
	}

	byName := func(gi *groupIndex, stats *aggStats, op aggOp) map[string]float64 {
		out := map[string]float64{}
		res := stats.result(op, gi.groupCount)
		for g := 0; g < gi.groupCount; g++ {
			row := gi.repRow[g]
			out[strs[row]] = res[g]
		}
		return out
	}
	gotSerialSum := byName(giSerial, statsSerial, aggSum)
	gotParallelSum := byName(giParallel, statsParallel, aggSum)
	gotSerialCount := byName(giSerial, statsSerial, aggCount)
	gotParallelCount := byName(giParallel, statsParallel, aggCount)
	for _, name := range names {
		require.InDelta(t, wantSum[name], gotSerialSum[name], 1e-6, name)
		require.InDelta(t, wantSum[name], gotParallelSum[name], 1e-6, name)
		require.Equal(t, float64(wantCount[name]), gotSerialCount[name], name)
		require.Equal(t, float64(wantCount[name]), gotParallelCount[name], name)
	}
}

// TestFusedCompositeParallelMatchesSerial covers the multi-column /
// non-perfect-hash composite path's worker-local-AggTable merge (HashOf +
// MergeGroup, review comments #2 and #3).
func TestFusedCompositeParallelMatchesSerial(t *testing.T) {
	const n = 20000
	rng := rand.New(rand.NewSource(3))
	a := make([]int64, n)
	b := make([]int64, n)
	vals := make([]float64, n)
	for i := range a {
		a[i] = int64(rng.Intn(5))
		b[i] = int64(rng.Intn(5))
		vals[i] = rng.Float64() * 10
	}
	h := newTestHeap(t)
	colA, err := value.VectorFromI64(h, a)
	require.NoError(t, err)
	colB, err := value.VectorFromI64(h, b)
	require.NoError(t, err)
	valCol, err := value.VectorFromF64(h, vals)
	require.NoError(t, err)
	keyCols := []*value.Value{colA, colB}

	giSerial, tblSerial := fusedCompositeRange(keyCols, valCol, 0, n)
	statsSerial := statsFromAggTable(tblSerial, valCol)

	pool := newTestPool(t)
	giParallel, statsParallel, err := fusedCompositeParallel(pool, keyCols, valCol, int64(n))
	require.NoError(t, err)
	require.Equal(t, giSerial.groupCount, giParallel.groupCount)

	keyOf := func(row int64) [2]int64 { return [2]int64{a[row], b[row]} }
	sumByKey := func(gi *groupIndex, stats *aggStats) map[[2]int64]float64 {
		out := map[[2]int64]float64{}
		res := stats.result(aggSum, gi.groupCount)
		for g := 0; g < gi.groupCount; g++ {
			out[keyOf(gi.repRow[g])] = res[g]
		}
		return out
	}
	wantSum := map[[2]int64]float64{}
	for i := range a {
		wantSum[[2]int64{a[i], b[i]}] += vals[i]
	}
	gotSerial := sumByKey(giSerial, statsSerial)
	gotParallel := sumByKey(giParallel, statsParallel)
	require.Len(t, gotSerial, len(wantSum))
	require.Len(t, gotParallel, len(wantSum))
	for k, want := range wantSum {
		require.InDelta(t, want, gotSerial[k], 1e-6, k)
		require.InDelta(t, want, gotParallel[k], 1e-6, k)
	}
}

// TestSelectGroupedAggregateParallelEndToEnd drives the parallel partial
// aggregate through the public Select/Eval surface (not just the internal
// fused* helpers) with a real scheduler.Pool attached to the VM context
// and a row count past parallelAggThreshold, matching
// TestSelectGroupedAggregatePerfectHash's shape at parallel scale.
func TestSelectGroupedAggregateParallelEndToEnd(t *testing.T) {
	const n = parallelAggThreshold + 1000
	const groups = 8
	rng := rand.New(rand.NewSource(4))
	keys := randI64Keys(rng, n, groups)
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = rng.Float64() * 10
	}

	h := newTestHeap(t)
	key, err := value.VectorFromI64(h, keys)
	require.NoError(t, err)
	price, err := value.VectorFromF64(h, vals)
	require.NoError(t, err)
	tbl, err := value.NewTable(value.NewSymbolVector([]string{"key", "price"}), value.NewList([]*value.Value{key, price}))
	require.NoError(t, err)

	pool := newTestPool(t)
	vmctx := newTestVM(t)
	vmctx.Pool = pool

	q := &Query{
		From: tbl,
		By:   value.NewSymbol("key"),
		Project: []ProjectField{
			{Name: "key", Expr: value.NewSymbol("key")},
			{Name: "total", Expr: value.NewList([]*value.Value{value.NewSymbol("sum"), value.NewSymbol("price")})},
			{Name: "n", Expr: value.NewList([]*value.Value{value.NewSymbol("count"), value.NewSymbol("price")})},
		},
	}
	out, err := Select(vmctx, q)
	require.NoError(t, err)
	require.Equal(t, int64(groups), out.RowCount())

	wantSum := sumByGroup(keys, vals, groups)
	wantCount := make([]int64, groups)
	for _, k := range keys {
		wantCount[k]++
	}

	gotKeys := out.ColumnByName("key").I64s()
	gotTotal := out.ColumnByName("total").F64s()
	gotCount := out.ColumnByName("n").F64s()
	for i, k := range gotKeys {
		require.InDelta(t, wantSum[k], gotTotal[i], 1e-6, "key %d", k)
		require.Equal(t, float64(wantCount[k]), gotCount[i], "key %d", k)
	}
}
