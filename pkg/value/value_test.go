package value

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/heap"
)

func TestCloneDropIsIdentity(t *testing.T) {
	h := heap.New(1, heap.WithPoolOrder(16))
	v, err := VectorFromI64(h, []int64{1, 2, 3})
	require.NoError(t, err)
	require.EqualValues(t, 1, v.RC())

	Clone(v, false)
	require.EqualValues(t, 2, v.RC())

	Drop(v, h, false)
	require.EqualValues(t, 1, v.RC())

	usedBefore := h.Used()
	Drop(v, h, false)
	require.Less(t, h.Used(), usedBefore)
}

func TestCowCopiesOnSharedReference(t *testing.T) {
	h := heap.New(2, heap.WithPoolOrder(16))
	v, err := VectorFromI64(h, []int64{1, 2, 3})
	require.NoError(t, err)

	Clone(v, false) // rc=2, shared
	cp := Cow(v, h)
	require.NotSame(t, v, cp)
	cp.I64s()[0] = 99
	require.EqualValues(t, 1, v.I64s()[0], "original must be unaffected by mutation of the cow copy")

	Drop(v, h, false)
	Drop(v, h, false)
	Drop(cp, h, false)
}

func TestCowIsNoopWhenUnique(t *testing.T) {
	h := heap.New(3, heap.WithPoolOrder(16))
	v, err := VectorFromI64(h, []int64{1, 2, 3})
	require.NoError(t, err)

	cp := Cow(v, h)
	require.Same(t, v, cp)
	Drop(v, h, false)
}

func TestTableInvariants(t *testing.T) {
	h := heap.New(4, heap.WithPoolOrder(16))
	k, err := VectorFromI64(h, []int64{1, 2})
	require.NoError(t, err)
	vv, err := VectorFromI64(h, []int64{10, 20})
	require.NoError(t, err)

	names := NewSymbolVector([]string{"k", "v"})
	cols := NewList([]*Value{k, vv})
	tbl, err := NewTable(names, cols)
	require.NoError(t, err)
	require.EqualValues(t, 2, tbl.RowCount())
	require.Same(t, vv, tbl.ColumnByName("v"))

	mismatched, err := VectorFromI64(h, []int64{1})
	require.NoError(t, err)
	badCols := NewList([]*Value{k, mismatched})
	_, err = NewTable(names, badCols)
	require.Error(t, err)
}

func TestNullAtomSentinels(t *testing.T) {
	require.True(t, IsNullAtom(NewI32(NullI32)))
	require.False(t, IsNullAtom(NewI32(5)))
	require.True(t, IsNullAtom(NewF64(NullF64)))
}
