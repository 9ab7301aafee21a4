package hashtable

// emptyKey is the in-band sentinel marking an unoccupied slot in an
// OATable, per spec §4.3 ("in-band empty sentinel, typically -1/NULL_I64").
const emptyKey int64 = -1 << 63

// OATable is the open-addressing table from spec §4.3: conceptually a
// value-level LIST of two parallel vectors (keys, values), here held as
// Go slices directly since pkg/hashtable is below pkg/value in the
// dependency graph. pkg/value's HT_OA wraps an OATable when it needs to
// surface one as a first-class value.
type OATable struct {
	keys   []int64
	values []int64
	filled int
}

// NewOATable allocates a table with the given initial capacity, rounded
// up to a power of two (minimum 8).
func NewOATable(capacity int) *OATable {
	cap := nextPow2(uint64(capacity))
	if cap < 8 {
		cap = 8
	}
	t := &OATable{
		keys:   make([]int64, cap),
		values: make([]int64, cap),
	}
	for i := range t.keys {
		t.keys[i] = emptyKey
	}
	return t
}

func (t *OATable) mask() uint64 { return uint64(len(t.keys)) - 1 }

// Put inserts or updates key -> value, rehashing (doubling capacity) first
// if load would exceed 0.7 (spec §4.3).
func (t *OATable) Put(key, value int64) {
	if float64(t.filled+1) > float64(len(t.keys))*0.7 {
		t.rehash(len(t.keys) * 2)
	}
	idx := t.probe(key)
	if t.keys[idx] == emptyKey {
		t.filled++
	}
	t.keys[idx] = key
	t.values[idx] = value
}

// Get returns (value, true) if key is present, else (0, false).
func (t *OATable) Get(key int64) (int64, bool) {
	idx := t.probe(key)
	if t.keys[idx] == emptyKey {
		return 0, false
	}
	return t.values[idx], true
}

// Delete removes key if present. Deletion uses backward-shift (no
// tombstones), which keeps probe sequences correct for linear probing
// without ever needing to skip dead slots on lookup.
func (t *OATable) Delete(key int64) {
	idx := t.probe(key)
	if t.keys[idx] == emptyKey {
		return
	}
	t.keys[idx] = emptyKey
	t.filled--
	m := t.mask()
	j := idx
	for {
		j = (j + 1) & m
		if t.keys[j] == emptyKey {
			return
		}
		k := t.keys[j]
		home := hashKey(k) & m
		// shift back unless home slot lies in the gap (idx, j] circularly
		if !inCircularRange(idx, home, j, m) {
			t.keys[idx] = k
			t.values[idx] = t.values[j]
			t.keys[j] = emptyKey
			idx = j
		}
	}
}

func inCircularRange(start, home, end, mask uint64) bool {
	if start <= end {
		return home > start && home <= end
	}
	return home > start || home <= end
}

func (t *OATable) probe(key int64) uint64 {
	m := t.mask()
	idx := hashKey(key) & m
	for t.keys[idx] != emptyKey && t.keys[idx] != key {
		idx = (idx + 1) & m
	}
	return idx
}

func hashKey(key int64) uint64 {
	return Mix(0, uint64(key))
}

func (t *OATable) rehash(newCap int) {
	old := t.keys
	oldVals := t.values
	t.keys = make([]int64, newCap)
	t.values = make([]int64, newCap)
	for i := range t.keys {
		t.keys[i] = emptyKey
	}
	t.filled = 0
	for i, k := range old {
		if k != emptyKey {
			t.Put(k, oldVals[i])
		}
	}
}

// Len returns the number of occupied slots.
func (t *OATable) Len() int { return t.filled }

// Cap returns the current backing capacity.
func (t *OATable) Cap() int { return len(t.keys) }

// Each calls fn for every occupied (key, value) pair, in table order.
func (t *OATable) Each(fn func(key, value int64)) {
	for i, k := range t.keys {
		if k != emptyKey {
			fn(k, t.values[i])
		}
	}
}
