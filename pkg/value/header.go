package value

import (
	"sync/atomic"

	"github.com/RayforceDB/rayforce/pkg/heap"
)

// Attr holds the advisory attribute bits from spec §3: sortedness and
// distinctness. Reading code may exploit them but must check the bit
// before assuming anything they assert.
type Attr uint8

const (
	AttrNone     Attr = 0
	AttrAsc      Attr = 1 << 0
	AttrDesc     Attr = 1 << 1
	AttrDistinct Attr = 1 << 2
	// AttrFileBacked marks a vector whose storage is a memory-mapped
	// column file rather than a heap block (spec §6 splayed/parted
	// tables).
	AttrFileBacked Attr = 1 << 3
)

// Value is RayforceDB's tagged object: a single Go struct standing in for
// the C union + 16-byte header described in spec §3. Which fields are
// meaningful is determined entirely by Tag; this mirrors the "discriminant
// -safe view layer" re-architecture note in spec §9 — callers go through
// the typed accessors in atom.go/vector.go/composite.go rather than
// touching fields directly outside this package.
//
// Unlike the original C layout, the 16-byte header is not literally
// serialized for every Value (Go's GC already tracks object lifetime for
// the Value struct itself); only vector payloads are carved from
// pkg/heap, whose Block does carry the literal mini-header from spec
// §4.1. This keeps RC bookkeeping idiomatic Go while still routing bulk
// column storage through the buddy heap the spec requires.
type Value struct {
	Tag   Type
	Attrs Attr
	rc    int32
	length int64 // element/child count; authoritative per spec §3

	// Atom payload (valid when Tag.IsAtom()).
	i64  int64
	f64  float64
	guid [16]byte
	sym  string // interned symbol text, pre-resolution convenience

	// Vector payload (valid when Tag.IsVector()).
	block  *heap.Block
	strs   []string // SYMBOL vector backing (interned ids resolved lazily)

	// Composite payload.
	elems []*Value // LIST children; DICT=[keys,values]; TABLE=[names,columns]

	// Function payload.
	fn *FuncBody

	// Intermediate payload (MAPFILTER/MAPGROUP/MAPCOMMON/PARTEDI64).
	base *Value
	aux  *Value
}

// Len returns the authoritative length: element count for vectors, child
// count for composites, 0 for atoms.
func (v *Value) Len() int64 { return v.length }

// RC returns the current reference count, mainly for tests/diagnostics.
func (v *Value) RC() int32 {
	return atomic.LoadInt32(&v.rc)
}
