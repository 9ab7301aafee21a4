package heap

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// pool is a contiguous power-of-two backing region carved into buddy
// blocks. It is either anonymous-mmap'd, a dedicated mmap for a single
// oversized request, or a file-backed mmap opened in the configured swap
// directory when anonymous mapping failed.
//
// A pool's buddy bookkeeping (freeList/avail) is guarded by its own mutex
// rather than by whichever Heap happens to hold a reference to it, because
// Borrow/Merge (spec §4.2) let two heaps reference the same pool at once
// while blocks are on loan.
type pool struct {
	id    uint32
	base  []byte
	order int // pool_order: log2(len(base))

	backed bool // true if base is backed by a named file
	file   *os.File
	path   string

	dedicated bool // true if this pool exists only to serve one >= MaxBlockOrder request

	mu sync.Mutex
	// freeList[k] holds byte offsets (relative to base) of free blocks of
	// order k. avail has bit k set iff freeList[k] is non-empty.
	freeList [64][]int
	avail    uint64
}

func newAnonPool(id uint32, order int, dedicated bool) (*pool, error) {
	size := 1 << uint(order)
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	p := &pool{id: id, base: data, order: order, dedicated: dedicated}
	p.markFree(0, order)
	return p, nil
}

func newFilePool(id uint32, order int, dedicated bool, swapDir string) (*pool, error) {
	size := 1 << uint(order)
	name, err := randomName()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(swapDir, name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	p := &pool{id: id, base: data, order: order, backed: true, file: f, path: path, dedicated: dedicated}
	p.markFree(0, order)
	return p, nil
}

func (p *pool) close() error {
	err := unix.Munmap(p.base)
	if p.backed {
		p.file.Close()
		os.Remove(p.path)
	}
	return err
}

func (p *pool) markFree(offset, order int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markFreeLocked(offset, order)
}

func (p *pool) markFreeLocked(offset, order int) {
	if p.freeList[order] == nil {
		p.freeList[order] = make([]int, 0, 4)
	}
	p.freeList[order] = append(p.freeList[order], offset)
	p.avail |= 1 << uint(order)
}

// popFree removes and returns the top free offset at order, or ok=false.
func (p *pool) popFree(order int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lst := p.freeList[order]
	if len(lst) == 0 {
		return 0, false
	}
	off := lst[len(lst)-1]
	p.freeList[order] = lst[:len(lst)-1]
	if len(p.freeList[order]) == 0 {
		p.avail &^= 1 << uint(order)
	}
	return off, true
}

// removeFree removes a specific offset from order's free list, used when
// coalescing needs to unlink a buddy that is not necessarily at the top of
// the stack.
func (p *pool) removeFree(offset, order int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	lst := p.freeList[order]
	for i, o := range lst {
		if o == offset {
			lst[i] = lst[len(lst)-1]
			p.freeList[order] = lst[:len(lst)-1]
			if len(p.freeList[order]) == 0 {
				p.avail &^= 1 << uint(order)
			}
			return true
		}
	}
	return false
}

// smallestFit returns the smallest order >= order with a free block, using
// a ctz scan over the availability bitmap, or ok=false if none fits under
// the pool's top order.
func (p *pool) smallestFit(order int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mask := p.avail &^ ((uint64(1) << uint(order)) - 1)
	if mask == 0 {
		return 0, false
	}
	return trailingZeros64(mask), true
}

// freeCountAtTop reports whether the pool's single top-order block is
// free, meaning the whole pool is unused and eligible for release in GC.
func (p *pool) freeCountAtTop() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freeList[p.order])
}

func trailingZeros64(x uint64) int {
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

func randomName() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("rayforce-heap-%s.swap", hex.EncodeToString(b[:])), nil
}
