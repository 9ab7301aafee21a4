package value

import (
	"unsafe"

	"github.com/RayforceDB/rayforce/pkg/heap"
)

// NewVector allocates an uninitialised vector of tag's element type and n
// elements from h. tag must be a vector tag (positive); SYMBOL vectors use
// NewSymbolVector instead since they are backed by a Go string slice, not
// a heap block, until the evaluator interns them.
func NewVector(h *heap.Heap, tag Type, n int) (*Value, error) {
	if tag == TSymbol {
		return NewSymbolVector(make([]string, n)), nil
	}
	elemSize := tag.ElemSize()
	b, err := h.Alloc(n * elemSize)
	if err != nil {
		return nil, err
	}
	return &Value{Tag: tag, rc: 1, length: int64(n), block: b}, nil
}

// NewSymbolVector wraps a slice of interned-symbol text as a SYMBOL vector.
func NewSymbolVector(s []string) *Value {
	return &Value{Tag: TSymbol, rc: 1, length: int64(len(s)), strs: s}
}

// fileBackedVector wraps a memory-mapped column's raw bytes directly,
// without going through the heap allocator, and sets AttrFileBacked so
// Drop does not try to return it to a heap (spec §6).
func fileBackedVector(tag Type, data []byte, n int) *Value {
	return &Value{Tag: tag, rc: 1, length: int64(n), Attrs: AttrFileBacked,
		block: &heap.Block{Data: data}}
}

// NewFileBackedVector is the constructor pkg/query's splayed-table loader
// uses to wrap an mmap'd column.
func NewFileBackedVector(tag Type, data []byte, n int) *Value {
	return fileBackedVector(tag, data, n)
}

func typedView[T any](v *Value) []T {
	if v.block == nil {
		return nil
	}
	n := int(v.length)
	if n == 0 {
		return []T{}
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&v.block.Data[0])), n)
}

// I64s views an I64/TIMESTAMP vector's backing bytes as []int64.
func (v *Value) I64s() []int64 { return typedView[int64](v) }

// I32s views an I32/DATE/TIME vector's backing bytes as []int32.
func (v *Value) I32s() []int32 { return typedView[int32](v) }

// I16s views an I16 vector's backing bytes as []int16.
func (v *Value) I16s() []int16 { return typedView[int16](v) }

// F64s views an F64 vector's backing bytes as []float64.
func (v *Value) F64s() []float64 { return typedView[float64](v) }

// U8s views a U8/B8/C8 vector's backing bytes as []uint8.
func (v *Value) U8s() []uint8 { return typedView[uint8](v) }

// Guids views a GUID vector's backing bytes as [][16]byte.
func (v *Value) Guids() [][16]byte { return typedView[[16]byte](v) }

// Strs returns a SYMBOL vector's backing string slice.
func (v *Value) Strs() []string { return v.strs }

// VectorFromI64 allocates and fills an I64 vector from xs.
func VectorFromI64(h *heap.Heap, xs []int64) (*Value, error) {
	v, err := NewVector(h, TI64, len(xs))
	if err != nil {
		return nil, err
	}
	copy(v.I64s(), xs)
	return v, nil
}

// VectorFromI32 allocates and fills an I32 vector from xs.
func VectorFromI32(h *heap.Heap, xs []int32) (*Value, error) {
	v, err := NewVector(h, TI32, len(xs))
	if err != nil {
		return nil, err
	}
	copy(v.I32s(), xs)
	return v, nil
}

// VectorFromF64 allocates and fills an F64 vector from xs.
func VectorFromF64(h *heap.Heap, xs []float64) (*Value, error) {
	v, err := NewVector(h, TF64, len(xs))
	if err != nil {
		return nil, err
	}
	copy(v.F64s(), xs)
	return v, nil
}

// VectorFromBool allocates and fills a B8 vector from xs.
func VectorFromBool(h *heap.Heap, xs []bool) (*Value, error) {
	v, err := NewVector(h, TB8, len(xs))
	if err != nil {
		return nil, err
	}
	dst := v.U8s()
	for i, b := range xs {
		if b {
			dst[i] = 1
		}
	}
	return v, nil
}
