package query

import (
	"github.com/RayforceDB/rayforce/pkg/hashtable"
	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
)

// LeftJoin matches every row of left against right on the named key
// column, keeping every left row (unmatched rows get the null sentinel in
// every right-hand column). Grounded on the same build-a-hash-table-once,
// probe-many-times shape as the fused aggregate's discoverGroupsComposite,
// reusing hashtable.OATable keyed on joinKeyAt's 64-bit form of the key,
// whatever its type. Result columns
// are allocated from h.
func LeftJoin(h *heap.Heap, left, right *value.Value, leftKey, rightKey string) (*value.Value, error) {
	lcol := left.ColumnByName(leftKey)
	rcol := right.ColumnByName(rightKey)
	if lcol == nil {
		return nil, rferr.NewValue(leftKey)
	}
	if rcol == nil {
		return nil, rferr.NewValue(rightKey)
	}

	index, err := buildJoinIndex(rcol)
	if err != nil {
		return nil, err
	}

	n := int(left.RowCount())
	matchRow := make([]int64, n) // -1 = no match
	for i := 0; i < n; i++ {
		k := joinKeyAt(lcol, i)
		if row, ok := index.lookup(k); ok {
			matchRow[i] = row
		} else {
			matchRow[i] = -1
		}
	}

	leftNames := left.Names().Strs()
	leftCols := left.Columns().Elems()
	rightNames := right.Names().Strs()
	rightCols := right.Columns().Elems()

	outNames := make([]string, 0, len(leftCols)+len(rightCols))
	outCols := make([]*value.Value, 0, len(leftCols)+len(rightCols))
	outNames = append(outNames, leftNames...)
	outCols = append(outCols, leftCols...)

	for ci, col := range rightCols {
		if rightNames[ci] == rightKey {
			continue
		}
		gathered, err := gatherWithNulls(h, col, matchRow)
		if err != nil {
			return nil, err
		}
		outNames = append(outNames, rightNames[ci])
		outCols = append(outCols, gathered)
	}

	return value.NewTable(value.NewSymbolVector(outNames), value.NewList(outCols))
}

// joinIndex maps a join key's 64-bit representation to the first matching
// row in the probed (right-hand) side.
type joinIndex struct {
	keyCol *value.Value
	oa     *hashtable.OATable
}

func buildJoinIndex(keyCol *value.Value) (*joinIndex, error) {
	n := int(keyCol.Len())
	oa := hashtable.NewOATable(n)
	for i := 0; i < n; i++ {
		k := joinKeyAt(keyCol, i)
		// First writer wins per spec-standard left-join semantics: a
		// right side with duplicate keys matches its first occurrence.
		if _, ok := oa.Get(k); !ok {
			oa.Put(k, int64(i))
		}
	}
	return &joinIndex{keyCol: keyCol, oa: oa}, nil
}

func (ji *joinIndex) lookup(k int64) (int64, bool) {
	return ji.oa.Get(k)
}

// joinKeyAt returns row i of col widened to an int64 join key. SYMBOL
// columns hash their text via hashtable.HashString so they can share the
// same int64-keyed OATable as numeric columns.
func joinKeyAt(col *value.Value, i int) int64 {
	switch col.Tag {
	case value.TI64, value.TTimestamp:
		return col.I64s()[i]
	case value.TI32, value.TDate, value.TTime:
		return int64(col.I32s()[i])
	case value.TI16:
		return int64(col.I16s()[i])
	case value.TSymbol:
		return int64(hashtable.HashString(col.Strs()[i]))
	default:
		return int64(i)
	}
}

// gatherWithNulls builds col[matchRow[i]] for each output row i, filling
// in the type's null sentinel wherever matchRow[i] == -1 (unmatched left
// row, spec's left-join semantics).
func gatherWithNulls(h *heap.Heap, col *value.Value, matchRow []int64) (*value.Value, error) {
	n := len(matchRow)
	switch col.Tag {
	case value.TI64, value.TTimestamp:
		src := col.I64s()
		out := make([]int64, n)
		for i, r := range matchRow {
			if r < 0 {
				out[i] = value.NullI64
			} else {
				out[i] = src[r]
			}
		}
		return value.VectorFromI64(h, out)
	case value.TI32, value.TDate, value.TTime:
		src := col.I32s()
		out := make([]int32, n)
		for i, r := range matchRow {
			if r < 0 {
				out[i] = value.NullI32
			} else {
				out[i] = src[r]
			}
		}
		return value.VectorFromI32(h, out)
	case value.TF64:
		src := col.F64s()
		out := make([]float64, n)
		for i, r := range matchRow {
			if r < 0 {
				out[i] = value.NullF64
			} else {
				out[i] = src[r]
			}
		}
		return value.VectorFromF64(h, out)
	case value.TSymbol:
		src := col.Strs()
		out := make([]string, n)
		for i, r := range matchRow {
			if r >= 0 {
				out[i] = src[r]
			}
		}
		return value.NewSymbolVector(out), nil
	default:
		return nil, rferr.NewNYI("join gather for " + col.Tag.String())
	}
}
