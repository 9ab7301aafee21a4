package heap

import "sync/atomic"

// foreignNode is one entry of the intrusive, lock-free single-linked list
// a heap uses to receive blocks freed by a thread that does not own them
// (spec §4.1 "cross-thread frees"). Insertion is a CAS loop on the head;
// draining swaps the head to nil and walks the list, so there is no
// contention between drainers (there is at most one: the owning thread
// during merge) and pushers.
type foreignNode struct {
	block *Block
	next  *foreignNode
}

type foreignList struct {
	head atomic.Pointer[foreignNode]
}

func (l *foreignList) push(b *Block) {
	n := &foreignNode{block: b}
	for {
		old := l.head.Load()
		n.next = old
		if l.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// drain atomically detaches the whole list and returns its blocks in
// push order is not guaranteed (LIFO pop order); callers only care about
// the set, not the order.
func (l *foreignList) drain() []*Block {
	head := l.head.Swap(nil)
	var out []*Block
	for n := head; n != nil; n = n.next {
		out = append(out, n.block)
	}
	return out
}
