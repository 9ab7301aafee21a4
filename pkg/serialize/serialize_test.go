package serialize

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/value"
)

func newSerializeTestHeap(t *testing.T) *heap.Heap {
	t.Helper()
	h := heap.New(1, heap.WithPoolOrder(16))
	t.Cleanup(func() { h.GC() })
	return h
}

func roundTrip(t *testing.T, h *heap.Heap, v *value.Value) *value.Value {
	t.Helper()
	buf, err := EncodeValue(nil, v)
	require.NoError(t, err)
	out, n, err := DecodeValue(h, buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	return out
}

func TestRoundTripI64Atom(t *testing.T) {
	h := newSerializeTestHeap(t)
	out := roundTrip(t, h, value.NewI64(-42))
	require.Equal(t, int64(-42), out.I64())
}

func TestRoundTripF64NaNBitPattern(t *testing.T) {
	h := newSerializeTestHeap(t)
	out := roundTrip(t, h, value.NewF64(value.NullF64))
	require.Equal(t, math.Float64bits(value.NullF64), math.Float64bits(out.F64()))
}

func TestRoundTripSymbolAtom(t *testing.T) {
	h := newSerializeTestHeap(t)
	out := roundTrip(t, h, value.NewSymbol("hello"))
	require.Equal(t, "hello", out.Symbol())
}

func TestRoundTripI64Vector(t *testing.T) {
	h := newSerializeTestHeap(t)
	v, err := value.VectorFromI64(h, []int64{1, 2, 3, value.NullI64})
	require.NoError(t, err)
	out := roundTrip(t, h, v)
	require.Equal(t, []int64{1, 2, 3, value.NullI64}, out.I64s())
}

func TestRoundTripSymbolVector(t *testing.T) {
	h := newSerializeTestHeap(t)
	v := value.NewSymbolVector([]string{"aa", "b", ""})
	out := roundTrip(t, h, v)
	require.Equal(t, []string{"aa", "b", ""}, out.Strs())
}

func TestRoundTripTable(t *testing.T) {
	h := newSerializeTestHeap(t)
	sym, err := value.VectorFromI32(h, []int32{1, 2})
	require.NoError(t, err)
	price, err := value.VectorFromF64(h, []float64{10, 20})
	require.NoError(t, err)
	tbl, err := value.NewTable(value.NewSymbolVector([]string{"sym", "price"}), value.NewList([]*value.Value{sym, price}))
	require.NoError(t, err)

	out := roundTrip(t, h, tbl)
	require.Equal(t, int64(2), out.RowCount())
	require.Equal(t, []float64{10, 20}, out.ColumnByName("price").F64s())
	require.Equal(t, []int32{1, 2}, out.ColumnByName("sym").I32s())
}

func TestEncodeMapGroupIsNYI(t *testing.T) {
	h := newSerializeTestHeap(t)
	base, err := value.VectorFromF64(h, []float64{1, 2})
	require.NoError(t, err)
	keyList := value.NewList([]*value.Value{base})
	mg := value.NewMapGroup(base, keyList)

	_, err = EncodeValue(nil, mg)
	require.Error(t, err)
}

func TestFrameWriteReadRoundTrip(t *testing.T) {
	h := newSerializeTestHeap(t)
	v := value.NewI64(7)
	payload, err := EncodeValue(nil, v)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgSync, payload))

	hdr, gotPayload, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, MsgSync, hdr.MsgType)
	require.Equal(t, FormatVersion, hdr.Version)
	require.Equal(t, payload, gotPayload)

	out, n, err := DecodeValue(h, gotPayload)
	require.NoError(t, err)
	require.Equal(t, len(gotPayload), n)
	require.Equal(t, int64(7), out.I64())
}
