package hashtable

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
)

// Interner is RayforceDB's symbol table (spec §4.3: "a process-wide symbol
// interner mapping strings to stable 32-bit ids, backed by the
// bucket-chained table"). String hashing uses xxhash rather than the
// Mix() formula above: symbols are arbitrary-length byte strings, not
// packed 64-bit keys, so they need a real string hash, and xxhash is the
// library the rest of the pack reaches for that job. A bloom filter sits
// in front of the table as a fast-reject pre-filter for the common case of
// interning a symbol that is already known to be new (e.g. during bulk
// table load), grounded on the teacher's pkg/storage/cache/bloom_cache.go
// existence pre-filter.
type Interner struct {
	mu     sync.Mutex // guards grow + filter rebuild; Lookup/Intern read-path stays lock-free below this
	table  atomic.Pointer[BKTable]
	filter atomic.Pointer[bloom.BloomFilter]
	nextID atomic.Uint32
	names  atomic.Pointer[[]string] // id -> string, append-only, swapped wholesale on grow
}

const internerInitialBuckets = 1024

// NewInterner returns an empty interner.
func NewInterner() *Interner {
	in := &Interner{}
	in.table.Store(NewBKTable(internerInitialBuckets))
	in.filter.Store(bloom.NewWithEstimates(uint(internerInitialBuckets*4), 0.01))
	empty := make([]string, 0, 1024)
	in.names.Store(&empty)
	return in
}

func hashString(s string) uint64 { return xxhash.Sum64String(s) }

// HashString exposes the interner's string hash for callers (e.g. the
// query engine's composite hash-aggregate) that need to hash a SYMBOL
// column's pre-interning text the same way the interner itself does.
func HashString(s string) uint64 { return hashString(s) }

// Intern returns the stable id for s, assigning a new one if s hasn't been
// seen before.
func (in *Interner) Intern(s string) uint32 {
	h := hashString(s)
	f := in.filter.Load()
	if !f.Test([]byte(s)) {
		return in.insertNew(h, s)
	}
	t := in.table.Load()
	if id, ok := t.Lookup(h, s); ok {
		return id
	}
	// Bloom filter had a false positive; genuinely new symbol.
	return in.insertNew(h, s)
}

func (in *Interner) insertNew(h uint64, s string) uint32 {
	in.mu.Lock()
	defer in.mu.Unlock()

	t := in.table.Load()
	if id, ok := t.Lookup(h, s); ok {
		return id
	}
	id := in.nextID.Add(1) - 1
	won := t.Insert(h, s, id)
	if won != id {
		// Another goroutine inserted the same string first.
		return won
	}
	in.appendName(id, s)
	in.filter.Load().Add([]byte(s))
	if t.LoadFactor() > 0.7 {
		in.grow()
	}
	return id
}

func (in *Interner) appendName(id uint32, s string) {
	names := *in.names.Load()
	if int(id) >= len(names) {
		grown := make([]string, len(names), len(names)*2+16)
		copy(grown, names)
		for len(grown) <= int(id) {
			grown = append(grown, "")
		}
		names = grown
	}
	names[id] = s
	in.names.Store(&names)
}

// grow doubles the bucket table, rehashing every existing entry. Called
// with in.mu held.
func (in *Interner) grow() {
	old := in.table.Load()
	grown := NewBKTable(old.BucketCount() * 2)
	old.Each(func(hash uint64, key string, id uint32) {
		grown.Insert(hash, key, id)
	})
	in.table.Store(grown)

	newFilter := bloom.NewWithEstimates(uint(grown.BucketCount()*4), 0.01)
	old.Each(func(_ uint64, key string, _ uint32) {
		newFilter.Add([]byte(key))
	})
	in.filter.Store(newFilter)
}

// Lookup returns the string for a previously interned id.
func (in *Interner) Lookup(id uint32) (string, bool) {
	names := *in.names.Load()
	if int(id) >= len(names) {
		return "", false
	}
	return names[id], true
}

// Len returns the number of interned symbols.
func (in *Interner) Len() int { return int(in.nextID.Load()) }
