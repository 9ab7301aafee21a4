package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

var testHeapSeq int

func newTestHeap(t *testing.T) *heap.Heap {
	t.Helper()
	testHeapSeq++
	h := heap.New(uint32(testHeapSeq), heap.WithPoolOrder(16))
	t.Cleanup(func() { h.GC() })
	return h
}

func newTestVM(t *testing.T) *vm.Context {
	return vm.New(newTestHeap(t), 0)
}

func priceTable(t *testing.T) *value.Value {
	h := newTestHeap(t)
	sym, err := value.VectorFromI32(h, []int32{1, 1, 2, 2, 3})
	require.NoError(t, err)
	price, err := value.VectorFromF64(h, []float64{10, 20, 100, 200, 5})
	require.NoError(t, err)
	tbl, err := value.NewTable(value.NewSymbolVector([]string{"sym", "price"}), value.NewList([]*value.Value{sym, price}))
	require.NoError(t, err)
	return tbl
}

func TestEvalColumnReference(t *testing.T) {
	vmctx := newTestVM(t)
	ctx := &evalCtx{VM: vmctx}
	scope := newEvalScope(priceTable(t))
	v, err := Eval(ctx, scope, value.NewSymbol("price"))
	require.NoError(t, err)
	require.Equal(t, value.TF64, v.Tag)
	require.Equal(t, []float64{10, 20, 100, 200, 5}, v.F64s())
}

func TestEvalComparisonProducesB8Vector(t *testing.T) {
	vmctx := newTestVM(t)
	ctx := &evalCtx{VM: vmctx}
	scope := newEvalScope(priceTable(t))
	expr := value.NewList([]*value.Value{value.NewSymbol(">"), value.NewSymbol("price"), value.NewF64(15)})
	v, err := Eval(ctx, scope, expr)
	require.NoError(t, err)
	require.Equal(t, value.TB8, v.Tag)
	require.Equal(t, []uint8{0, 1, 1, 1, 0}, v.U8s())
}

func TestUngroupedAggregateSum(t *testing.T) {
	vmctx := newTestVM(t)
	ctx := &evalCtx{VM: vmctx}
	scope := newEvalScope(priceTable(t))
	expr := value.NewList([]*value.Value{value.NewSymbol("sum"), value.NewSymbol("price")})
	v, err := Eval(ctx, scope, expr)
	require.NoError(t, err)
	require.Equal(t, -value.TF64, v.Tag)
	require.Equal(t, 335.0, v.F64())
}

func TestSelectFilterProject(t *testing.T) {
	vmctx := newTestVM(t)
	q := &Query{
		From:  priceTable(t),
		Where: value.NewList([]*value.Value{value.NewSymbol(">"), value.NewSymbol("price"), value.NewF64(15)}),
		Project: []ProjectField{
			{Name: "price", Expr: value.NewSymbol("price")},
		},
	}
	out, err := Select(vmctx, q)
	require.NoError(t, err)
	require.Equal(t, int64(3), out.RowCount())
	require.Equal(t, []float64{20, 100, 200}, out.ColumnByName("price").F64s())
}

func TestSelectGroupedAggregatePerfectHash(t *testing.T) {
	vmctx := newTestVM(t)
	h := newTestHeap(t)
	key, err := value.VectorFromI64(h, []int64{1, 1, 2, 2, 3})
	require.NoError(t, err)
	vals, err := value.VectorFromF64(h, []float64{10, 20, 100, 200, 5})
	require.NoError(t, err)
	tbl, err := value.NewTable(value.NewSymbolVector([]string{"key", "price"}), value.NewList([]*value.Value{key, vals}))
	require.NoError(t, err)

	q := &Query{
		From: tbl,
		By:   value.NewSymbol("key"),
		Project: []ProjectField{
			{Name: "key", Expr: value.NewSymbol("key")},
			{Name: "total", Expr: value.NewList([]*value.Value{value.NewSymbol("sum"), value.NewSymbol("price")})},
		},
	}
	out, err := Select(vmctx, q)
	require.NoError(t, err)
	require.Equal(t, int64(3), out.RowCount())
	total := out.ColumnByName("total")
	require.ElementsMatch(t, []float64{30, 300, 5}, total.F64s())
}

func TestLeftJoinFillsNullForUnmatched(t *testing.T) {
	h := newTestHeap(t)
	lid, err := value.VectorFromI64(h, []int64{1, 2, 3})
	require.NoError(t, err)
	left, err := value.NewTable(value.NewSymbolVector([]string{"id"}), value.NewList([]*value.Value{lid}))
	require.NoError(t, err)

	rid, err := value.VectorFromI64(h, []int64{1, 2})
	require.NoError(t, err)
	rval, err := value.VectorFromF64(h, []float64{100, 200})
	require.NoError(t, err)
	right, err := value.NewTable(value.NewSymbolVector([]string{"id", "val"}), value.NewList([]*value.Value{rid, rval}))
	require.NoError(t, err)

	out, err := LeftJoin(h, left, right, "id", "id")
	require.NoError(t, err)
	val := out.ColumnByName("val")
	got := val.F64s()
	require.Equal(t, 100.0, got[0])
	require.Equal(t, 200.0, got[1])
	require.True(t, value.NullF64 == got[2] || got[2] != got[2])
}

func TestSetOpsIntersectAndExcept(t *testing.T) {
	h := newTestHeap(t)
	a, err := value.VectorFromI64(h, []int64{1, 2, 3, 4})
	require.NoError(t, err)
	b, err := value.VectorFromI64(h, []int64{2, 4, 6})
	require.NoError(t, err)

	inter, err := ApplySetOp(h, a, b, SetIntersect)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{2, 4}, inter.I64s())

	except, err := ApplySetOp(h, a, b, SetExcept)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 3}, except.I64s())
}
