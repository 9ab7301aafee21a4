package query

import (
	"github.com/RayforceDB/rayforce/pkg/hashtable"
	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
)

// SetOp names a row-set operation over two single-column vectors, keyed
// on presence in an OATable the way LeftJoin keys its probe side.
type SetOp int

const (
	SetUnion SetOp = iota
	SetExcept
	SetIntersect
)

// ApplySetOp combines a and b (single vectors of the same type) per op:
// Union is a followed by b's values not already seen (duplicates within
// a are kept), Except is a with b's values removed,
// Intersect is a restricted to values also present in b.
func ApplySetOp(h *heap.Heap, a, b *value.Value, op SetOp) (*value.Value, error) {
	if a.Tag != b.Tag {
		return nil, rferr.NewType(a.Tag.String(), b.Tag.String(), "b", "setop")
	}
	switch op {
	case SetUnion:
		return setUnion(h, a, b)
	case SetExcept:
		return setFilterByPresence(h, a, b, false)
	case SetIntersect:
		return setFilterByPresence(h, a, b, true)
	default:
		return nil, rferr.NewNYI("set operation")
	}
}

// buildPresenceSet indexes every element of v in a hash table keyed the
// same way joinKeyAt widens join keys, reusing hashtable.OATable.
func buildPresenceSet(v *value.Value) *hashtable.OATable {
	n := int(v.Len())
	oa := hashtable.NewOATable(n)
	for i := 0; i < n; i++ {
		oa.Put(joinKeyAt(v, i), int64(i))
	}
	return oa
}

func setFilterByPresence(h *heap.Heap, a, b *value.Value, keep bool) (*value.Value, error) {
	present := buildPresenceSet(b)
	n := int(a.Len())
	idx := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		_, ok := present.Get(joinKeyAt(a, i))
		if ok == keep {
			idx = append(idx, int64(i))
		}
	}
	return gatherIndices(h, a, idx)
}

// setUnion appends to a every element of b whose key isn't already
// present in a (or earlier in b), giving a ∪ b with duplicates across
// the two inputs collapsed; duplicates already present within a itself
// are left untouched.
func setUnion(h *heap.Heap, a, b *value.Value) (*value.Value, error) {
	seen := buildPresenceSet(a)
	n := int(b.Len())
	extra := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		k := joinKeyAt(b, i)
		if _, ok := seen.Get(k); !ok {
			extra = append(extra, int64(i))
			seen.Put(k, int64(i))
		}
	}
	bExtra, err := gatherIndices(h, b, extra)
	if err != nil {
		return nil, err
	}
	return concatVectors(h, a, bExtra)
}

func gatherIndices(h *heap.Heap, v *value.Value, idx []int64) (*value.Value, error) {
	switch v.Tag {
	case value.TI64, value.TTimestamp:
		src := v.I64s()
		out := make([]int64, len(idx))
		for i, p := range idx {
			out[i] = src[p]
		}
		return value.VectorFromI64(h, out)
	case value.TI32, value.TDate, value.TTime:
		src := v.I32s()
		out := make([]int32, len(idx))
		for i, p := range idx {
			out[i] = src[p]
		}
		return value.VectorFromI32(h, out)
	case value.TF64:
		src := v.F64s()
		out := make([]float64, len(idx))
		for i, p := range idx {
			out[i] = src[p]
		}
		return value.VectorFromF64(h, out)
	case value.TSymbol:
		src := v.Strs()
		out := make([]string, len(idx))
		for i, p := range idx {
			out[i] = src[p]
		}
		return value.NewSymbolVector(out), nil
	default:
		return nil, rferr.NewNYI("set-op gather for " + v.Tag.String())
	}
}

func concatVectors(h *heap.Heap, a, b *value.Value) (*value.Value, error) {
	switch a.Tag {
	case value.TI64, value.TTimestamp:
		out := append(append([]int64(nil), a.I64s()...), b.I64s()...)
		return value.VectorFromI64(h, out)
	case value.TI32, value.TDate, value.TTime:
		out := append(append([]int32(nil), a.I32s()...), b.I32s()...)
		return value.VectorFromI32(h, out)
	case value.TF64:
		out := append(append([]float64(nil), a.F64s()...), b.F64s()...)
		return value.VectorFromF64(h, out)
	case value.TSymbol:
		out := append(append([]string(nil), a.Strs()...), b.Strs()...)
		return value.NewSymbolVector(out), nil
	default:
		return nil, rferr.NewNYI("set-op concat for " + a.Tag.String())
	}
}
