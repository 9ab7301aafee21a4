package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	h := New(1, WithPoolOrder(16))
	defer h.GC()

	b, err := h.Alloc(100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(b.Data), 100)

	for i := range b.Data[:100] {
		b.Data[i] = byte(i)
	}
	h.Free(b)
}

func TestAllocReservedReturnsToBaselineAfterGC(t *testing.T) {
	h := New(2, WithPoolOrder(16))
	base := h.Reserved()

	var blocks []*Block
	for i := 0; i < 200; i++ {
		b, err := h.Alloc(64)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	for _, b := range blocks {
		h.Free(b)
	}
	h.GC()
	require.Equal(t, base, h.Reserved())
}

func TestCoalescingRestoresTopOrderBlock(t *testing.T) {
	h := New(3, WithPoolOrder(12)) // 4 KiB pool
	a, err := h.Alloc(1 << 10)
	require.NoError(t, err)
	b, err := h.Alloc(1 << 10)
	require.NoError(t, err)
	h.Free(a)
	h.Free(b)

	require.Equal(t, 1, len(h.pools))
	p := h.pools[0]
	require.Equal(t, 1, p.freeCountAtTop())
}

func TestReallocPreservesContents(t *testing.T) {
	h := New(4, WithPoolOrder(16))
	b, err := h.Alloc(16)
	require.NoError(t, err)
	copy(b.Data, []byte("hello world"))

	nb, err := h.Realloc(b, 4096)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(nb.Data[:11]))
}

func TestForeignBlockRoutedToOwner(t *testing.T) {
	owner := New(10, WithPoolOrder(14))
	other := New(11, WithPoolOrder(14))
	owner.Register()
	defer owner.Unregister()

	b, err := owner.Alloc(64)
	require.NoError(t, err)

	// Simulate a different thread's heap freeing a block it doesn't own:
	// the block should be queued on the owner's foreign list rather than
	// freed directly against `other`'s pools.
	usedBefore := owner.Used()
	other.Free(b)
	require.Equal(t, usedBefore, owner.Used(), "foreign free must not touch owner's used count until drained")

	owner.drainForeignLocked0()
	require.Less(t, owner.Used(), usedBefore)
}

func TestBorrowAndMerge(t *testing.T) {
	main := New(20, WithPoolOrder(14))
	worker := New(21, WithPoolOrder(14))

	// seed main with some free small blocks
	var seed []*Block
	for i := 0; i < 8; i++ {
		b, err := main.Alloc(64)
		require.NoError(t, err)
		seed = append(seed, b)
	}
	for _, b := range seed {
		main.Free(b)
	}

	moved := worker.Borrow(main, 4)
	require.Greater(t, moved, 0)

	wb, err := worker.Alloc(64)
	require.NoError(t, err)
	worker.Free(wb)

	main.Merge(worker)
	require.Empty(t, worker.pools)
}
