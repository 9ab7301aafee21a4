package hashtable

import "sync/atomic"

// bkNode is one entry in a bucket's singly-linked chain. Nodes are never
// mutated after being published, only appended via CAS on the bucket
// head, so readers need no lock at all (spec §4.3: "lock-free
// bucket-chained table for the symbol interner").
type bkNode struct {
	hash uint64
	key  string
	id   uint32
	next *bkNode
}

// BKTable is the lock-free chained hash table backing the symbol interner.
// Buckets are fixed at construction time; growth happens by building a new
// table and swapping it in wholesale (pkg/hashtable/interner.go owns that
// policy), which keeps this type itself free of any resize logic or locks.
type BKTable struct {
	buckets []atomic.Pointer[bkNode]
	mask    uint64
	size    atomic.Int64
}

// NewBKTable allocates a bucket table with bucketCount buckets, rounded up
// to a power of two.
func NewBKTable(bucketCount int) *BKTable {
	n := nextPow2(uint64(bucketCount))
	return &BKTable{buckets: make([]atomic.Pointer[bkNode], n), mask: n - 1}
}

// Lookup returns (id, true) if key is present.
func (t *BKTable) Lookup(hash uint64, key string) (uint32, bool) {
	n := t.buckets[hash&t.mask].Load()
	for n != nil {
		if n.hash == hash && n.key == key {
			return n.id, true
		}
		n = n.next
	}
	return 0, false
}

// Insert publishes key -> id if not already present, via CAS retry on the
// bucket head. Returns the winning id: either the caller's id if it won
// the race, or whatever another goroutine inserted first.
func (t *BKTable) Insert(hash uint64, key string, id uint32) uint32 {
	bucket := &t.buckets[hash&t.mask]
	for {
		head := bucket.Load()
		for n := head; n != nil; n = n.next {
			if n.hash == hash && n.key == key {
				return n.id
			}
		}
		node := &bkNode{hash: hash, key: key, id: id, next: head}
		if bucket.CompareAndSwap(head, node) {
			t.size.Add(1)
			return id
		}
		// CAS lost: another insert (possibly of the same key) raced us;
		// loop re-checks for a duplicate before retrying the publish.
	}
}

// Len returns the approximate number of entries (precise under no
// concurrent writers).
func (t *BKTable) Len() int { return int(t.size.Load()) }

// BucketCount returns the fixed number of buckets.
func (t *BKTable) BucketCount() int { return len(t.buckets) }

// LoadFactor returns size/bucketCount, the signal the interner uses to
// decide when to grow (spec §4.3 mirrors the open-addressing table's 0.7
// threshold for bucket occupancy too, to bound chain length).
func (t *BKTable) LoadFactor() float64 {
	return float64(t.Len()) / float64(t.BucketCount())
}

// Each walks every chain, calling fn for each entry. Not safe to call
// concurrently with Insert into the same table (used only during a grow
// snapshot, which happens under the interner's own exclusive section).
func (t *BKTable) Each(fn func(hash uint64, key string, id uint32)) {
	for i := range t.buckets {
		for n := t.buckets[i].Load(); n != nil; n = n.next {
			fn(n.hash, n.key, n.id)
		}
	}
}
