package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/value"
)

func newAmendTestVM(t *testing.T) *Context {
	t.Helper()
	h := heap.New(1, heap.WithPoolOrder(16))
	t.Cleanup(func() { h.GC() })
	return New(h, 0)
}

func TestAmendWritesAtIndices(t *testing.T) {
	ctx := newAmendTestVM(t)
	v, err := value.VectorFromI64(ctx.Heap, []int64{1, 2, 3, 4})
	require.NoError(t, err)
	idx, err := value.VectorFromI64(ctx.Heap, []int64{1, 3})
	require.NoError(t, err)
	newVals, err := value.VectorFromI64(ctx.Heap, []int64{20, 40})
	require.NoError(t, err)

	out, err := Amend(ctx, v, idx, newVals)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 20, 3, 40}, out.I64s())
}

func TestAmendScalarBroadcast(t *testing.T) {
	ctx := newAmendTestVM(t)
	v, err := value.VectorFromF64(ctx.Heap, []float64{1, 2, 3})
	require.NoError(t, err)
	idx, err := value.VectorFromI64(ctx.Heap, []int64{0, 2})
	require.NoError(t, err)
	newVals, err := value.VectorFromF64(ctx.Heap, []float64{99})
	require.NoError(t, err)

	out, err := Amend(ctx, v, idx, newVals)
	require.NoError(t, err)
	require.Equal(t, []float64{99, 2, 99}, out.F64s())
}

func TestAmendDoesNotMutateSharedOriginal(t *testing.T) {
	ctx := newAmendTestVM(t)
	v, err := value.VectorFromI64(ctx.Heap, []int64{1, 2, 3})
	require.NoError(t, err)
	value.Clone(v, false) // rc now 2: not uniquely referenced

	idx, err := value.VectorFromI64(ctx.Heap, []int64{0})
	require.NoError(t, err)
	newVals, err := value.VectorFromI64(ctx.Heap, []int64{99})
	require.NoError(t, err)

	out, err := Amend(ctx, v, idx, newVals)
	require.NoError(t, err)
	require.Equal(t, []int64{99}, []int64{out.I64s()[0]})
	require.Equal(t, int64(1), v.I64s()[0])
}
