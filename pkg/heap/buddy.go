package heap

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrOOM is returned when no pool can be grown to satisfy a request.
var ErrOOM = errors.New("heap: out of memory")

// ErrCorrupt indicates a block's mini-header failed validation; per spec
// §4.1 this is a fatal condition. Free panics with this value rather than
// returning it.
var ErrCorrupt = errors.New("heap: corrupt block header")

// Heap is a buddy-system allocator with a per-thread-shaped slab cache
// (here "per-Heap", since in RayforceDB's model heaps are one-per-thread
// already — see pkg/vm), mmap pool growth, file-backed overflow, and a
// lock-free foreign-block return path for cross-heap frees.
type Heap struct {
	id      uint32
	poolOrder int
	swapDir string

	mu       sync.Mutex
	pools    []*pool
	nextPool uint32

	slab    slabCache
	foreign foreignList

	reserved int64 // total bytes mapped across all pools (atomic)
	used     int64 // bytes currently handed out (atomic)
}

// Option configures a new Heap.
type Option func(*Heap)

// WithPoolOrder sets the order of freshly-grown top-order pools. Defaults
// to DefaultPoolOrder.
func WithPoolOrder(order int) Option {
	return func(h *Heap) { h.poolOrder = order }
}

// WithSwapDir sets the directory used for file-backed overflow pools when
// anonymous mmap fails. Defaults to the current directory, mirroring the
// single environment variable in spec §6.
func WithSwapDir(dir string) Option {
	return func(h *Heap) { h.swapDir = dir }
}

// New creates an empty Heap identified by id (unique per owning thread/
// executor; see pkg/scheduler).
func New(id uint32, opts ...Option) *Heap {
	h := &Heap{id: id, poolOrder: DefaultPoolOrder, swapDir: "."}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ID returns this heap's owner id, used to detect foreign frees.
func (h *Heap) ID() uint32 { return h.id }

// Reserved returns total bytes currently mapped (all pools, used + free).
func (h *Heap) Reserved() int64 { return atomic.LoadInt64(&h.reserved) }

// Used returns bytes currently handed out to live blocks.
func (h *Heap) Used() int64 { return atomic.LoadInt64(&h.used) }

// Alloc returns a block able to hold size bytes of payload, aligned to the
// smallest size class >= size+header. Returns ErrOOM if no pool could be
// grown to satisfy the request.
func (h *Heap) Alloc(size int) (*Block, error) {
	h.drainForeignLocked0() // opportunistically reclaim before growing

	order := orderFor(size)

	if b := h.slab.pop(order); b != nil {
		b.flags |= flagUsed
		b.writeMiniHeader()
		atomic.AddInt64(&h.used, int64(blockSize(order)))
		return b, nil
	}

	if order >= MaxBlockOrder || order > h.poolOrder {
		return h.allocDedicated(order)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.allocFromPoolsLocked(order)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.used, int64(blockSize(order)))
	return b, nil
}

func (h *Heap) allocDedicated(order int) (*Block, error) {
	p, err := h.growPool(order, true)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.pools = append(h.pools, p)
	h.mu.Unlock()
	off, _ := p.popFree(order)
	b := h.newBlock(p, off, order)
	atomic.AddInt64(&h.used, int64(blockSize(order)))
	return b, nil
}

func (h *Heap) allocFromPoolsLocked(order int) (*Block, error) {
	for _, p := range h.pools {
		if p.dedicated {
			continue
		}
		if fit, ok := p.smallestFit(order); ok {
			off, _ := p.popFree(fit)
			h.splitDownLocked(p, off, fit, order)
			return h.newBlock(p, off, order), nil
		}
	}

	p, err := h.growPool(h.poolOrder, false)
	if err != nil {
		return nil, err
	}
	h.pools = append(h.pools, p)
	off, _ := p.popFree(p.order)
	h.splitDownLocked(p, off, p.order, order)
	return h.newBlock(p, off, order), nil
}

// splitDownLocked repeatedly halves a free block of order `from` down to
// `to`, pushing the unused buddy halves onto their own free lists.
func (h *Heap) splitDownLocked(p *pool, offset, from, to int) {
	for from > to {
		from--
		buddyOff := offset + blockSize(from)
		p.markFree(buddyOff, from)
	}
}

func (h *Heap) growPool(order int, dedicated bool) (*pool, error) {
	id := atomic.AddUint32(&h.nextPool, 1)
	p, err := newAnonPool(id, order, dedicated)
	if err == nil {
		atomic.AddInt64(&h.reserved, int64(1<<uint(order)))
		return p, nil
	}
	p, ferr := newFilePool(id, order, dedicated, h.swapDir)
	if ferr != nil {
		return nil, ErrOOM
	}
	atomic.AddInt64(&h.reserved, int64(1<<uint(order)))
	return p, nil
}

func (h *Heap) newBlock(p *pool, offset, order int) *Block {
	b := &Block{pool: p, offset: offset, order: order, heapID: h.id}
	if p.backed {
		b.flags |= flagBacked
	}
	b.flags |= flagUsed
	start := offset + HeaderSize
	b.Data = p.base[start : start+blockSize(order)-HeaderSize]
	b.writeMiniHeader()
	return b
}

// Free returns a block to the heap. A block owned by a different heap is
// queued onto that heap's foreign list instead of being freed here
// directly (spec §4.1 cross-thread frees); it is no-op on nil.
func (h *Heap) Free(b *Block) {
	if b == nil {
		return
	}
	poolID, poolOrder, order, flags, heapID, ok := readMiniHeader(b.pool.base[b.offset : b.offset+HeaderSize])
	_ = poolID
	if !ok || flags&flagUsed == 0 || order != b.order || poolOrder != b.pool.order {
		panic(ErrCorrupt)
	}
	if heapID != h.id {
		if owner := h.lookupPeer(heapID); owner != nil {
			owner.foreign.push(b)
			return
		}
		// Owner heap unreachable (shut down); reclaim into this heap
		// rather than leak, reassigning ownership.
		b.heapID = h.id
	}
	atomic.AddInt64(&h.used, -int64(blockSize(b.order)))
	h.freeLocalOrSlab(b)
}

func (h *Heap) freeLocalOrSlab(b *Block) {
	b.flags &^= flagUsed
	if h.slab.push(b) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.coalesceLocked(b.pool, b.offset, b.order)
}

func (h *Heap) coalesceLocked(p *pool, offset, order int) {
	for order < p.order {
		buddy := offset ^ (1 << uint(order))
		if !p.removeFree(buddy, order) {
			break
		}
		if buddy < offset {
			offset = buddy
		}
		order++
	}
	p.markFree(offset, order)
}

// peerRegistry lets Free() locate the owning heap for a foreign block.
// Populated by Borrow/Merge callers through Register; see pkg/scheduler.
var peerRegistry sync.Map // map[uint32]*Heap

// Register makes this heap discoverable by id for foreign-block routing.
func (h *Heap) Register() { peerRegistry.Store(h.id, h) }

// Unregister removes this heap from the foreign-block routing table.
func (h *Heap) Unregister() { peerRegistry.Delete(h.id) }

func (h *Heap) lookupPeer(id uint32) *Heap {
	if v, ok := peerRegistry.Load(id); ok {
		return v.(*Heap)
	}
	return nil
}

// drainForeignLocked0 drains this heap's own foreign list back into its
// free structures; named with the 0 suffix because the caller must not
// hold h.mu (this function acquires it around coalesceLocked).
func (h *Heap) drainForeignLocked0() {
	blocks := h.foreign.drain()
	if len(blocks) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range blocks {
		atomic.AddInt64(&h.used, -int64(blockSize(b.order)))
		b.flags &^= flagUsed
		h.coalesceLocked(b.pool, b.offset, b.order)
	}
}

// Realloc returns a block sized for n bytes with contents preserved up to
// min(old, new). If n maps to b's current size class, b itself is
// returned; otherwise it never resizes in place but allocates a new block
// of the matching size class, copies, and frees b.
func (h *Heap) Realloc(b *Block, n int) (*Block, error) {
	if b == nil {
		return h.Alloc(n)
	}
	newOrder := orderFor(n)
	if newOrder == b.order {
		return b, nil
	}
	nb, err := h.Alloc(n)
	if err != nil {
		return nil, err
	}
	copy(nb.Data, b.Data)
	h.Free(b)
	return nb, nil
}

// GC flushes the slab cache and releases any whole top-order, fully-free,
// non-dedicated pool back to the OS, returning the number of bytes
// released.
func (h *Heap) GC() int64 {
	h.drainForeignLocked0()

	for _, b := range h.slab.drainAll() {
		h.mu.Lock()
		h.coalesceLocked(b.pool, b.offset, b.order)
		h.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var released int64
	kept := make([]*pool, 0, len(h.pools))
	for _, p := range h.pools {
		if !p.dedicated && p.freeCountAtTop() == 1 {
			p.close()
			released += int64(1 << uint(p.order))
			continue
		}
		kept = append(kept, p)
	}
	h.pools = kept
	atomic.AddInt64(&h.reserved, -released)
	return released
}

// Borrow transfers up to n free small/medium blocks from src into h so
// that h's Alloc can satisfy requests without growing its own pools. Used
// during pool.prepare (spec §4.2) to seed a worker heap before a fan-out
// round. The transferred pool becomes jointly referenced by both heaps;
// the pool's own mutex (not either heap's) guards its free-list, so this
// is safe even though src may concurrently alloc/free other blocks in the
// same pool.
func (h *Heap) Borrow(src *Heap, n int) int {
	src.mu.Lock()
	pools := append([]*pool(nil), src.pools...)
	src.mu.Unlock()

	moved := 0
	const maxSmallMediumOrder = SlabMaxOrder + 4
	for order := MinOrder; order <= maxSmallMediumOrder && moved < n; order++ {
		for moved < n {
			took := false
			for _, p := range pools {
				if p.dedicated {
					continue
				}
				off, ok := p.popFree(order)
				if !ok {
					continue
				}
				p.markFree(off, order) // leave it free; just ensure h can see the pool
				h.adoptPool(p)
				moved++
				took = true
				break
			}
			if !took {
				break
			}
		}
	}
	return moved
}

func (h *Heap) adoptPool(p *pool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ownsPool(p) {
		h.pools = append(h.pools, p)
	}
}

func (h *Heap) ownsPool(p *pool) bool {
	for _, q := range h.pools {
		if q == p {
			return true
		}
	}
	return false
}

// Merge drains src's slab cache, free lists, and foreign list back into h,
// folding src's adopted pools into h's pool set. Used at the end of
// pool.run (spec §4.2) to reclaim everything a worker touched.
func (h *Heap) Merge(src *Heap) {
	src.drainForeignLocked0()

	for _, b := range src.slab.drainAll() {
		src.mu.Lock()
		src.coalesceLocked(b.pool, b.offset, b.order)
		src.mu.Unlock()
	}

	src.mu.Lock()
	h.mu.Lock()
	for _, p := range src.pools {
		if !h.ownsPool(p) {
			h.pools = append(h.pools, p)
		}
	}
	src.pools = nil
	h.mu.Unlock()
	src.mu.Unlock()
}
