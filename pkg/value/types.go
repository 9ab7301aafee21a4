// Package value implements RayforceDB's tagged object model: a closed
// union of atom/vector/composite/function/intermediate/sentinel kinds,
// each backed by a 16-byte header and reference-counted payload.
package value

import "math"

// Type is the signed type tag carried in every value's header. A vector
// type's atom counterpart is always its negation: atom kinds are negative,
// vector kinds are positive, per spec's "atom = -(vector)" convention.
type Type int8

const (
	// TNull is the single interned null sentinel; it has no vector form.
	TNull Type = 0

	// Atom/vector pairs. Vector tags are positive; the matching atom tag
	// is the negation.
	TB8  Type = 1 // bool
	TU8  Type = 2 // byte
	TC8  Type = 3 // char
	TI16 Type = 4
	TI32 Type = 5
	TI64 Type = 6
	TF64 Type = 7
	TSymbol    Type = 8 // interned string id
	TDate      Type = 9  // i32 days since epoch
	TTime      Type = 10 // i32 ms since midnight
	TTimestamp Type = 11 // i64 ns since epoch
	TGuid      Type = 12 // 16 bytes

	// Composite kinds. These have no atom counterpart; their tag is
	// always positive and never negated.
	TList  Type = 20
	TDict  Type = 21
	TTable Type = 22

	// Function kinds.
	TLambda Type = 30
	TUnary  Type = 31
	TBinary Type = 32
	TVary   Type = 33

	// Intermediate (deferred-materialisation) kinds used by the query
	// engine. Never appear on the wire (see pkg/serialize).
	TMapFilter Type = 40
	TMapGroup  Type = 41
	TMapCommon Type = 42
	TPartedI64 Type = 43

	// Sentinel kinds.
	TErr Type = 50
)

// IsAtom reports whether t is an atom tag (negative, or the null sentinel).
func (t Type) IsAtom() bool { return t <= 0 }

// IsVector reports whether t is a vector tag of a primitive element type.
func (t Type) IsVector() bool {
	return t > 0 && t <= TGuid
}

// AtomOf returns the atom tag for a vector tag (negation); vecOf is its
// inverse. Calling AtomOf on a non-vector tag is a programmer error and
// returns t unchanged.
func (t Type) AtomOf() Type {
	if t.IsVector() {
		return -t
	}
	return t
}

// VecOf returns the vector tag for an atom tag.
func (t Type) VecOf() Type {
	if t.IsAtom() && t != TNull {
		return -t
	}
	return t
}

// ElemSize returns the fixed payload size in bytes of a single element of
// vector/atom type t, or 0 if t has no fixed element size (LIST, DICT,
// TABLE and the other non-primitive kinds). SYMBOL atoms and vectors
// report 8, the size of an interned id.
func (t Type) ElemSize() int {
	switch t.VecOf() {
	case TB8, TU8, TC8:
		return 1
	case TI16:
		return 2
	case TI32, TDate, TTime:
		return 4
	case TI64, TF64, TTimestamp, TSymbol:
		return 8 // symbol payload is an interned 64-bit id once resolved
	case TGuid:
		return 16
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case TNull:
		return "null"
	case TB8, -TB8:
		return "b8"
	case TU8, -TU8:
		return "u8"
	case TC8, -TC8:
		return "c8"
	case TI16, -TI16:
		return "i16"
	case TI32, -TI32:
		return "i32"
	case TI64, -TI64:
		return "i64"
	case TF64, -TF64:
		return "f64"
	case TSymbol, -TSymbol:
		return "symbol"
	case TDate, -TDate:
		return "date"
	case TTime, -TTime:
		return "time"
	case TTimestamp, -TTimestamp:
		return "timestamp"
	case TGuid, -TGuid:
		return "guid"
	case TList:
		return "list"
	case TDict:
		return "dict"
	case TTable:
		return "table"
	case TLambda:
		return "lambda"
	case TUnary:
		return "unary"
	case TBinary:
		return "binary"
	case TVary:
		return "vary"
	case TMapFilter:
		return "mapfilter"
	case TMapGroup:
		return "mapgroup"
	case TMapCommon:
		return "mapcommon"
	case TPartedI64:
		return "partedi64"
	case TErr:
		return "err"
	default:
		return "unknown"
	}
}

// Null sentinel payload values, in-band per numeric type (spec §3).
const (
	NullI16 int16 = -(1 << 15)
	NullI32 int32 = -(1 << 31)
	NullI64 int64 = -(1 << 63)
	NullU8  uint8 = 0xFF
)

// NullF64 is the canonical NaN payload used as the f64 null sentinel.
var NullF64 = nanBits()

func nanBits() float64 {
	// A specific, stable NaN bit pattern so round-tripping through the
	// wire format is deterministic (spec §8.7 cares about NaN bit
	// patterns, not just math.IsNaN).
	const bits uint64 = 0x7FF8000000000001
	return math.Float64frombits(bits)
}
