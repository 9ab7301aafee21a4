package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/logging"
	"github.com/RayforceDB/rayforce/pkg/scheduler"
	"github.com/RayforceDB/rayforce/pkg/serialize"
	"github.com/RayforceDB/rayforce/pkg/value"
)

func newTestHandler(t *testing.T) (*evalHandler, *heap.Heap) {
	t.Helper()
	h := heap.New(1, heap.WithPoolOrder(16))
	t.Cleanup(func() { h.GC() })
	pool := scheduler.Create(1, h, 0)
	t.Cleanup(pool.Close)
	return &evalHandler{heap: h, pool: pool, logger: logging.New(logging.Config{Level: logging.Error})}, h
}

func TestEvalHandlerEvaluatesBareExpression(t *testing.T) {
	handler, h := newTestHandler(t)
	expr := value.NewList([]*value.Value{value.NewSymbol("+"), value.NewF64(2), value.NewF64(3)})
	buf, err := serialize.EncodeValue(nil, expr)
	require.NoError(t, err)

	out, err := handler.Eval(3, buf)
	require.NoError(t, err)

	result, _, err := serialize.DecodeValue(h, out)
	require.NoError(t, err)
	require.Equal(t, 5.0, result.F64())
}

func TestEvalHandlerReturnsErrValueOnUnknownSymbol(t *testing.T) {
	handler, h := newTestHandler(t)
	expr := value.NewList([]*value.Value{value.NewSymbol("bogus-fn"), value.NewF64(1)})
	buf, err := serialize.EncodeValue(nil, expr)
	require.NoError(t, err)

	out, err := handler.Eval(3, buf)
	require.NoError(t, err)

	result, _, err := serialize.DecodeValue(h, out)
	require.NoError(t, err)
	require.Equal(t, value.TErr, result.Tag)
}

func TestEvalHandlerEvaluatesQueryDict(t *testing.T) {
	handler, h := newTestHandler(t)
	sym, err := value.VectorFromI32(h, []int32{1, 2, 3})
	require.NoError(t, err)
	price, err := value.VectorFromF64(h, []float64{10, 20, 30})
	require.NoError(t, err)
	tbl, err := value.NewTable(value.NewSymbolVector([]string{"sym", "price"}), value.NewList([]*value.Value{sym, price}))
	require.NoError(t, err)

	keys := value.NewSymbolVector([]string{"from", "price"})
	d, err := value.NewDict(keys, value.NewList([]*value.Value{tbl, value.NewSymbol("price")}))
	require.NoError(t, err)

	buf, err := serialize.EncodeValue(nil, d)
	require.NoError(t, err)

	out, err := handler.Eval(3, buf)
	require.NoError(t, err)

	result, _, err := serialize.DecodeValue(h, out)
	require.NoError(t, err)
	require.Equal(t, value.TTable, result.Tag)
	require.Equal(t, []float64{10, 20, 30}, result.ColumnByName("price").F64s())
}
