package heap

import "encoding/binary"

// flag bits stored in a block's mini-header.
const (
	flagBacked = 1 << 0 // block lives in a file-backed pool
	flagUsed   = 1 << 1 // block is currently allocated (vs free)
)

// Block is the handle returned by Alloc. Data is the usable payload slice;
// its backing array is the 16-byte mini-header followed by the block's
// bytes within the owning pool.
type Block struct {
	Data []byte

	pool   *pool
	order  int // current order (size class) of the block
	offset int // byte offset of the mini-header within pool.base
	heapID uint32
	flags  uint8
}

// writeMiniHeader serializes the 16-byte mini-header into the pool at
// offset, per spec §4.1: pool id, pool order, current order, flags,
// owning heap id.
func (b *Block) writeMiniHeader() {
	h := b.pool.base[b.offset : b.offset+HeaderSize]
	binary.LittleEndian.PutUint32(h[0:4], b.pool.id)
	h[4] = byte(b.pool.order)
	h[5] = byte(b.order)
	h[6] = b.flags
	h[7] = 0 // reserved
	binary.LittleEndian.PutUint32(h[8:12], b.heapID)
	binary.LittleEndian.PutUint32(h[12:16], 0) // reserved
}

// readMiniHeader reconstructs header fields from raw bytes, used by Free's
// corruption check.
func readMiniHeader(raw []byte) (poolID uint32, poolOrder, order int, flags uint8, heapID uint32, ok bool) {
	if len(raw) < HeaderSize {
		return 0, 0, 0, 0, 0, false
	}
	poolID = binary.LittleEndian.Uint32(raw[0:4])
	poolOrder = int(raw[4])
	order = int(raw[5])
	flags = raw[6]
	heapID = binary.LittleEndian.Uint32(raw[8:12])
	ok = poolOrder >= MinOrder && poolOrder <= 63 && order >= MinOrder && order <= poolOrder
	return
}

// Backed reports whether this block's pool is a file-backed swap pool.
func (b *Block) Backed() bool { return b.flags&flagBacked != 0 }

// HeapID returns the id of the heap that owns this block.
func (b *Block) HeapID() uint32 { return b.heapID }

// Cap returns the full usable capacity of the block's current size class
// (>= len(Data)).
func (b *Block) Cap() int { return blockSize(b.order) - HeaderSize }
