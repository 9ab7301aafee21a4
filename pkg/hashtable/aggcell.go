package hashtable

import (
	"math"
	"sync/atomic"
)

// EmptyGroup is the sentinel group id marking an empty aggregate-table
// cell (spec §4.3).
const EmptyGroup uint32 = 0xFFFFFFFF

// AggCell packs (salt, reserved, group_id) into a 64-bit cell as spec
// §4.3 describes: upper 16 bits salt, next 16 bits reserved, low 32 bits
// group id.
type AggCell uint64

// MakeAggCell packs a salt (only its low 16 bits are used) and a group id
// into a cell.
func MakeAggCell(salt uint16, groupID uint32) AggCell {
	return AggCell(uint64(salt)<<48 | uint64(groupID))
}

// EmptyAggCell returns the packed empty-cell sentinel.
func EmptyAggCell() AggCell { return MakeAggCell(0, EmptyGroup) }

// Salt returns the cell's 16-bit salt (the upper 16 bits of the full hash,
// per spec §4.3).
func (c AggCell) Salt() uint16 { return uint16(c >> 48) }

// GroupID returns the cell's packed group id.
func (c AggCell) GroupID() uint32 { return uint32(c) }

// Empty reports whether the cell is the empty sentinel.
func (c AggCell) Empty() bool { return c.GroupID() == EmptyGroup }

// SaltOf extracts the salt (upper 16 bits) of a full 64-bit hash.
func SaltOf(hash uint64) uint16 { return uint16(hash >> 48) }

// AggTable is the local aggregate table used by the fused hash-aggregate
// (spec §4.5.1): a linear-probed array of AggCells alongside parallel
// per-group state arrays, plus the full hash stored per group for
// rehash-without-recompute during a parallel merge.
type AggTable struct {
	cells      []AggCell
	hashes     []uint64 // parallel to groups, indexed by group id
	mask       uint64   // len(cells)-1, cells is always a power of two
	groupCount uint32

	// Representative-row tracking: the row index that first inserted each
	// group, used to compare full keys on a salt hit (spec §4.5.1).
	repRow []int64

	// Per-group aggregate state, one slot per supported op.
	sumI64  []int64
	sumF64  []float64
	count   []int64
	minI64  []int64
	maxI64  []int64
	minF64  []float64
	maxF64  []float64
	first   []int64 // row index of first contributing row
	last    []int64 // row index of last contributing row
}

// NewAggTable allocates an aggregate table sized for an expected number of
// distinct groups, rounded up to a power of two with a 2x headroom factor
// so load stays comfortably below the table's own probe-length budget.
func NewAggTable(expectedGroups int) *AggTable {
	cap := nextPow2(uint64(expectedGroups)*2 + 8)
	cells := make([]AggCell, cap)
	for i := range cells {
		cells[i] = EmptyAggCell()
	}
	return &AggTable{cells: cells, mask: cap - 1}
}

func nextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << (64 - leadingZeros64(x-1))
}

func leadingZeros64(x uint64) int {
	n := 0
	for i := 63; i >= 0; i-- {
		if x&(1<<uint(i)) != 0 {
			break
		}
		n++
	}
	return n
}

// FindOrInsert probes for a cell matching (hash, key-compare); keyEq is
// called only when the salt matches, to compare the full key against the
// representative row (spec §4.5.1 "only on salt match performs the full
// key-column comparison"). It returns the group id (existing or newly
// assigned) and whether it was newly created.
func (t *AggTable) FindOrInsert(hash uint64, row int64, keyEq func(repRow int64) bool) (groupID uint32, isNew bool) {
	salt := SaltOf(hash)
	idx := hash & t.mask
	for {
		c := t.cells[idx]
		if c.Empty() {
			groupID = t.groupCount
			t.groupCount++
			t.cells[idx] = MakeAggCell(salt, groupID)
			t.hashes = append(t.hashes, hash)
			t.repRow = append(t.repRow, row)
			t.growStateSlots()
			if t.groupCount > uint32(len(t.cells))*7/10 {
				t.rehash()
			}
			return groupID, true
		}
		if c.Salt() == salt && keyEq(t.repRow[c.GroupID()]) {
			return c.GroupID(), false
		}
		idx = (idx + 1) & t.mask
	}
}

func (t *AggTable) growStateSlots() {
	t.sumI64 = append(t.sumI64, 0)
	t.sumF64 = append(t.sumF64, 0)
	t.count = append(t.count, 0)
	t.minI64 = append(t.minI64, 1<<62)
	t.maxI64 = append(t.maxI64, -(1 << 62))
	t.minF64 = append(t.minF64, math.Inf(1))
	t.maxF64 = append(t.maxF64, math.Inf(-1))
	t.first = append(t.first, -1)
	t.last = append(t.last, -1)
}

func (t *AggTable) rehash() {
	newCap := (t.mask + 1) * 2
	newCells := make([]AggCell, newCap)
	for i := range newCells {
		newCells[i] = EmptyAggCell()
	}
	newMask := newCap - 1
	for _, c := range t.cells {
		if c.Empty() {
			continue
		}
		h := t.hashes[c.GroupID()]
		idx := h & newMask
		for !newCells[idx].Empty() {
			idx = (idx + 1) & newMask
		}
		newCells[idx] = c
	}
	t.cells = newCells
	t.mask = newMask
}

// GroupCount returns the number of distinct groups discovered so far.
func (t *AggTable) GroupCount() int { return int(t.groupCount) }

// RepRow returns the representative row index for a group id.
func (t *AggTable) RepRow(groupID uint32) int64 { return t.repRow[groupID] }

// Accessors used by pkg/query's aggregate application; kept here since
// the state arrays are this table's private representation.
func (t *AggTable) AddSumI64(g uint32, x int64)  { atomicAddI64(&t.sumI64[g], x) }
func (t *AggTable) AddSumF64(g uint32, x float64) { t.sumF64[g] += x }
func (t *AggTable) IncCount(g uint32)             { atomicAddI64(&t.count[g], 1) }
func (t *AggTable) UpdateMinI64(g uint32, x int64) {
	if x < t.minI64[g] {
		t.minI64[g] = x
	}
}
func (t *AggTable) UpdateMaxI64(g uint32, x int64) {
	if x > t.maxI64[g] {
		t.maxI64[g] = x
	}
}
func (t *AggTable) UpdateMinF64(g uint32, x float64) {
	if x < t.minF64[g] {
		t.minF64[g] = x
	}
}
func (t *AggTable) UpdateMaxF64(g uint32, x float64) {
	if x > t.maxF64[g] {
		t.maxF64[g] = x
	}
}
func (t *AggTable) SetFirst(g uint32, row int64) {
	if t.first[g] == -1 {
		t.first[g] = row
	}
}
func (t *AggTable) SetLast(g uint32, row int64) { t.last[g] = row }

func (t *AggTable) SumI64(g uint32) int64    { return t.sumI64[g] }
func (t *AggTable) SumF64(g uint32) float64  { return t.sumF64[g] }
func (t *AggTable) Count(g uint32) int64     { return t.count[g] }
func (t *AggTable) MinI64(g uint32) int64    { return t.minI64[g] }
func (t *AggTable) MaxI64(g uint32) int64    { return t.maxI64[g] }
func (t *AggTable) MinF64(g uint32) float64  { return t.minF64[g] }
func (t *AggTable) MaxF64(g uint32) float64  { return t.maxF64[g] }
func (t *AggTable) First(g uint32) int64     { return t.first[g] }
func (t *AggTable) Last(g uint32) int64      { return t.last[g] }

// HashOf returns the full 64-bit hash stored when group g was first
// inserted, so a parallel merge can re-probe into another table without
// recomputing row hashes (spec §4.5.1: "using the precomputed stored
// hash").
func (t *AggTable) HashOf(g uint32) uint64 { return t.hashes[g] }

// MergeGroup folds group srcG's accumulated state from src into this
// table's group g — the reduce step of the parallel fused aggregate's
// worker-local-table merge (spec §4.5.1's "Parallelism" paragraph).
// Order-independent: callers may merge workers in any order.
func (t *AggTable) MergeGroup(g uint32, src *AggTable, srcG uint32) {
	t.sumI64[g] += src.sumI64[srcG]
	t.sumF64[g] += src.sumF64[srcG]
	t.count[g] += src.count[srcG]
	if src.minI64[srcG] < t.minI64[g] {
		t.minI64[g] = src.minI64[srcG]
	}
	if src.maxI64[srcG] > t.maxI64[g] {
		t.maxI64[g] = src.maxI64[srcG]
	}
	if src.minF64[srcG] < t.minF64[g] {
		t.minF64[g] = src.minF64[srcG]
	}
	if src.maxF64[srcG] > t.maxF64[g] {
		t.maxF64[g] = src.maxF64[srcG]
	}
	if sf := src.first[srcG]; sf != -1 && (t.first[g] == -1 || sf < t.first[g]) {
		t.first[g] = sf
	}
	if sl := src.last[srcG]; sl != -1 && sl > t.last[g] {
		t.last[g] = sl
	}
}

func atomicAddI64(p *int64, delta int64) { atomic.AddInt64(p, delta) }
