package value

import "math"

// NewI64 returns a scalar i64 atom (rc=1).
func NewI64(x int64) *Value { return &Value{Tag: -TI64, rc: 1, i64: x} }

// NewI32 returns a scalar i32 atom (rc=1), stored widened in i64.
func NewI32(x int32) *Value { return &Value{Tag: -TI32, rc: 1, i64: int64(x)} }

// NewI16 returns a scalar i16 atom (rc=1).
func NewI16(x int16) *Value { return &Value{Tag: -TI16, rc: 1, i64: int64(x)} }

// NewB8 returns a scalar bool atom (rc=1).
func NewB8(x bool) *Value {
	var i int64
	if x {
		i = 1
	}
	return &Value{Tag: -TB8, rc: 1, i64: i}
}

// NewU8 returns a scalar byte atom (rc=1).
func NewU8(x uint8) *Value { return &Value{Tag: -TU8, rc: 1, i64: int64(x)} }

// NewC8 returns a scalar char atom (rc=1).
func NewC8(x byte) *Value { return &Value{Tag: -TC8, rc: 1, i64: int64(x)} }

// NewF64 returns a scalar f64 atom (rc=1).
func NewF64(x float64) *Value { return &Value{Tag: -TF64, rc: 1, f64: x} }

// NewDate returns a scalar DATE atom (i32 days since epoch, rc=1).
func NewDate(days int32) *Value { return &Value{Tag: -TDate, rc: 1, i64: int64(days)} }

// NewTime returns a scalar TIME atom (i32 ms since midnight, rc=1).
func NewTime(ms int32) *Value { return &Value{Tag: -TTime, rc: 1, i64: int64(ms)} }

// NewTimestamp returns a scalar TIMESTAMP atom (i64 ns since epoch, rc=1).
func NewTimestamp(ns int64) *Value { return &Value{Tag: -TTimestamp, rc: 1, i64: ns} }

// NewGuid returns a scalar GUID atom (rc=1).
func NewGuid(b [16]byte) *Value { return &Value{Tag: -TGuid, rc: 1, guid: b} }

// NewSymbol returns a scalar SYMBOL atom carrying its source text; actual
// interning into a 64-bit id happens in pkg/hashtable's interner.
func NewSymbol(s string) *Value { return &Value{Tag: -TSymbol, rc: 1, sym: s} }

// I64 returns the atom's payload widened to int64; panics if v is not a
// numeric/temporal atom (programmer error, not a runtime error per §7).
func (v *Value) I64() int64 {
	if !v.Tag.IsAtom() {
		panic("value: I64 called on non-atom")
	}
	return v.i64
}

// F64 returns the atom's f64 payload.
func (v *Value) F64() float64 {
	if v.Tag != -TF64 {
		panic("value: F64 called on non-f64 atom")
	}
	return v.f64
}

// Bool returns the atom's b8 payload as a Go bool.
func (v *Value) Bool() bool { return v.i64 != 0 }

// Symbol returns the atom's interned text.
func (v *Value) Symbol() string { return v.sym }

// Guid returns the atom's 16-byte payload.
func (v *Value) Guid() [16]byte { return v.guid }

// IsNullAtom reports whether an atom v carries its type's in-band null
// sentinel (spec §3 "per-type null sentinels").
func IsNullAtom(v *Value) bool {
	switch v.Tag {
	case -TI16:
		return int16(v.i64) == NullI16
	case -TI32, -TDate, -TTime:
		return int32(v.i64) == NullI32
	case -TI64, -TTimestamp:
		return v.i64 == NullI64
	case -TU8:
		return uint8(v.i64) == NullU8
	case -TF64:
		return math.IsNaN(v.f64)
	default:
		return false
	}
}
