package sortpkg

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/stretchr/testify/require"
)

var heapSeq int

func newHeap(t *testing.T) *heap.Heap {
	t.Helper()
	heapSeq++
	h := heap.New(uint32(heapSeq), heap.WithPoolOrder(16))
	t.Cleanup(func() { h.GC() })
	return h
}

func applyPermI64(xs []int64, p []int64) []int64 {
	out := make([]int64, len(p))
	for i, idx := range p {
		out[i] = xs[idx]
	}
	return out
}

func requireStableAscending(t *testing.T, xs []int64, p []int64) {
	t.Helper()
	sorted := applyPermI64(xs, p)
	for i := 1; i < len(sorted); i++ {
		require.LessOrEqual(t, sorted[i-1], sorted[i])
	}
	// stability: for equal adjacent keys, original indices increase
	for i := 1; i < len(p); i++ {
		if xs[p[i-1]] == xs[p[i]] {
			require.Less(t, p[i-1], p[i])
		}
	}
}

func TestSortIndexI64Small(t *testing.T) {
	h := newHeap(t)
	xs := []int64{5, 3, 3, 1, 9, 1, value.NullI64}
	v, err := value.VectorFromI64(h, xs)
	require.NoError(t, err)
	p := SortIndex(v, false, 1)
	require.Len(t, p, len(xs))
	requireStableAscending(t, xs, p)
	// null sentinel must sort first ascending
	require.Equal(t, value.NullI64, xs[p[0]])
}

func TestSortIndexI64Descending(t *testing.T) {
	h := newHeap(t)
	xs := []int64{5, 3, 3, 1, 9, 1, value.NullI64}
	v, err := value.VectorFromI64(h, xs)
	require.NoError(t, err)
	p := SortIndex(v, true, 1)
	sorted := applyPermI64(xs, p)
	for i := 1; i < len(sorted); i++ {
		require.GreaterOrEqual(t, sorted[i-1], sorted[i])
	}
	require.Equal(t, value.NullI64, xs[p[len(p)-1]])
}

func TestSortIndexI64LargeMatchesStdSort(t *testing.T) {
	h := newHeap(t)
	rng := rand.New(rand.NewSource(1))
	n := 5000
	xs := make([]int64, n)
	for i := range xs {
		xs[i] = rng.Int63n(1000) - 500
	}
	v, err := value.VectorFromI64(h, xs)
	require.NoError(t, err)
	p := SortIndex(v, false, 4)
	got := applyPermI64(xs, p)

	want := append([]int64(nil), xs...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	require.Equal(t, want, got)
}

func TestSortIndexI32RadixMatchesStdSort(t *testing.T) {
	h := newHeap(t)
	rng := rand.New(rand.NewSource(2))
	n := 3000
	xs := make([]int32, n)
	for i := range xs {
		xs[i] = int32(rng.Intn(2_000_000_000) - 1_000_000_000)
	}
	v, err := value.VectorFromI32(h, xs)
	require.NoError(t, err)
	p := SortIndex(v, false, 2)
	got := make([]int32, n)
	for i, idx := range p {
		got[i] = xs[idx]
	}
	want := append([]int32(nil), xs...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	require.Equal(t, want, got)
}

func TestSortIndexF64NaNSortsAsNull(t *testing.T) {
	h := newHeap(t)
	xs := []float64{2.5, math.NaN(), -1.0, 0.0, 10.0}
	v, err := value.VectorFromF64(h, xs)
	require.NoError(t, err)
	p := SortIndex(v, false, 1)
	require.True(t, math.IsNaN(xs[p[0]]))
	prev := xs[p[1]]
	for _, idx := range p[2:] {
		require.GreaterOrEqual(t, xs[idx], prev)
		prev = xs[idx]
	}
}

func TestSortIndexByteVectorNullFirst(t *testing.T) {
	h := newHeap(t)
	xs := []uint8{10, value.NullU8, 0, 255 - 1, 5}
	vec, aerr := value.NewVector(h, value.TU8, len(xs))
	require.NoError(t, aerr)
	copy(vec.U8s(), xs)
	p := SortIndex(vec, false, 1)
	require.Equal(t, value.NullU8, xs[p[0]])
}

func TestSortIndexAscAttrShortCircuits(t *testing.T) {
	h := newHeap(t)
	xs := []int64{1, 2, 3, 4}
	v, err := value.VectorFromI64(h, xs)
	require.NoError(t, err)
	v.Attrs |= value.AttrAsc
	p := SortIndex(v, false, 1)
	require.Equal(t, []int64{0, 1, 2, 3}, p)
}

func TestSortIndexSymbolLexicographic(t *testing.T) {
	v := value.NewSymbolVector([]string{"banana", "apple", "cherry", "apple"})
	p := SortIndex(v, false, 1)
	strs := v.Strs()
	got := make([]string, len(p))
	for i, idx := range p {
		got[i] = strs[idx]
	}
	require.Equal(t, []string{"apple", "apple", "banana", "cherry"}[0:2], got[0:2])
	require.Equal(t, "cherry", got[len(got)-1])
}

func TestSortIndexListMergeSort(t *testing.T) {
	elems := []*value.Value{
		value.NewI64(3), value.NewI64(1), value.NewI64(2),
	}
	lst := value.NewList(elems)
	p := SortIndex(lst, false, 1)
	require.Equal(t, []int64{1, 2, 0}, p)
}

func TestParallelCountingMatchesSerial(t *testing.T) {
	h := newHeap(t)
	rng := rand.New(rand.NewSource(3))
	n := LargeThreshold + 1000
	xs := make([]int64, n)
	for i := range xs {
		xs[i] = rng.Int63n(500)
	}
	v, err := value.VectorFromI64(h, xs)
	require.NoError(t, err)
	p := SortIndex(v, false, 8)
	requireStableAscending(t, xs, p)
}
