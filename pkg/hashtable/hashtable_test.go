package hashtable

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMixBatchMatchesScalar(t *testing.T) {
	keys := make([]uint64, 37)
	for i := range keys {
		keys[i] = uint64(i)*0x9E3779B97F4A7C15 + 11
	}
	batched := make([]uint64, len(keys))
	MixBatch(42, keys, batched)
	for i, k := range keys {
		require.Equal(t, Mix(42, k), batched[i], "index %d", i)
	}
}

func TestMixColumnsComposesSequentially(t *testing.T) {
	col0 := []uint64{1, 2, 3}
	col1 := []uint64{10, 20, 30}
	out := make([]uint64, 3)
	MixColumns(7, [][]uint64{col0, col1}, out)
	for i := range out {
		want := Mix(Mix(7, col0[i]), col1[i])
		require.Equal(t, want, out[i])
	}
}

func TestOATablePutGetDelete(t *testing.T) {
	tbl := NewOATable(4)
	tbl.Put(1, 100)
	tbl.Put(2, 200)
	tbl.Put(3, 300)

	v, ok := tbl.Get(2)
	require.True(t, ok)
	require.Equal(t, int64(200), v)

	tbl.Delete(2)
	_, ok = tbl.Get(2)
	require.False(t, ok)

	v, ok = tbl.Get(1)
	require.True(t, ok)
	require.Equal(t, int64(100), v)
	v, ok = tbl.Get(3)
	require.True(t, ok)
	require.Equal(t, int64(300), v)
}

func TestOATableRehashPreservesEntries(t *testing.T) {
	tbl := NewOATable(4)
	const n = 500
	for i := 0; i < n; i++ {
		tbl.Put(int64(i), int64(i)*2)
	}
	require.Equal(t, n, tbl.Len())
	for i := 0; i < n; i++ {
		v, ok := tbl.Get(int64(i))
		require.True(t, ok)
		require.Equal(t, int64(i)*2, v)
	}
}

func TestOATableUpdateExistingKey(t *testing.T) {
	tbl := NewOATable(8)
	tbl.Put(5, 1)
	tbl.Put(5, 2)
	require.Equal(t, 1, tbl.Len())
	v, ok := tbl.Get(5)
	require.True(t, ok)
	require.Equal(t, int64(2), v)
}

func TestBKTableInsertLookup(t *testing.T) {
	tbl := NewBKTable(16)
	id := tbl.Insert(hashString("foo"), "foo", 1)
	require.Equal(t, uint32(1), id)

	got, ok := tbl.Lookup(hashString("foo"), "foo")
	require.True(t, ok)
	require.Equal(t, uint32(1), got)

	_, ok = tbl.Lookup(hashString("bar"), "bar")
	require.False(t, ok)
}

func TestBKTableInsertDuplicateReturnsWinner(t *testing.T) {
	tbl := NewBKTable(16)
	a := tbl.Insert(hashString("x"), "x", 0)
	b := tbl.Insert(hashString("x"), "x", 99)
	require.Equal(t, a, b)
	require.Equal(t, 1, tbl.Len())
}

func TestBKTableConcurrentInsertSameKey(t *testing.T) {
	tbl := NewBKTable(16)
	var wg sync.WaitGroup
	ids := make([]uint32, 32)
	h := hashString("concurrent")
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ids[idx] = tbl.Insert(h, "concurrent", uint32(idx))
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(ids); i++ {
		require.Equal(t, ids[0], ids[i])
	}
	require.Equal(t, 1, tbl.Len())
}

func TestInternerStableIDs(t *testing.T) {
	in := NewInterner()
	a := in.Intern("alpha")
	b := in.Intern("beta")
	a2 := in.Intern("alpha")
	require.Equal(t, a, a2)
	require.NotEqual(t, a, b)

	name, ok := in.Lookup(a)
	require.True(t, ok)
	require.Equal(t, "alpha", name)
}

func TestInternerConcurrentSameSymbol(t *testing.T) {
	in := NewInterner()
	var wg sync.WaitGroup
	ids := make([]uint32, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ids[idx] = in.Intern("shared")
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(ids); i++ {
		require.Equal(t, ids[0], ids[i])
	}
}

func TestInternerGrowsAndStaysConsistent(t *testing.T) {
	in := NewInterner()
	symbols := make([]string, 5000)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("sym-%d", i)
	}
	ids := make(map[string]uint32, len(symbols))
	for _, s := range symbols {
		ids[s] = in.Intern(s)
	}
	for s, id := range ids {
		got := in.Intern(s)
		require.Equal(t, id, got)
		name, ok := in.Lookup(id)
		require.True(t, ok)
		require.Equal(t, s, name)
	}
}

func TestAggTableFindOrInsertGroups(t *testing.T) {
	tbl := NewAggTable(4)
	keys := []int64{10, 20, 10, 30, 20, 10}
	eq := func(want int64) func(int64) bool {
		return func(repRow int64) bool { return keys[repRow] == want }
	}
	groups := make([]uint32, len(keys))
	for i, k := range keys {
		h := Mix(0, uint64(k))
		g, _ := tbl.FindOrInsert(h, int64(i), eq(k))
		groups[i] = g
	}
	require.Equal(t, groups[0], groups[2])
	require.Equal(t, groups[0], groups[5])
	require.Equal(t, groups[1], groups[4])
	require.NotEqual(t, groups[0], groups[1])
	require.NotEqual(t, groups[0], groups[3])
	require.Equal(t, 3, tbl.GroupCount())
}

func TestAggCellPackUnpack(t *testing.T) {
	c := MakeAggCell(0xBEEF, 1234)
	require.Equal(t, uint16(0xBEEF), c.Salt())
	require.Equal(t, uint32(1234), c.GroupID())
	require.False(t, c.Empty())
	require.True(t, EmptyAggCell().Empty())
}
