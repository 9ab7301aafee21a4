package value

// nullObj is the single interned NULL_OBJ value (spec §3). It is never
// reference-counted: Clone/Drop treat it as immortal.
var nullObj = &Value{Tag: TNull, rc: 1}

// errObj is the single shared ERR sentinel value returned by every
// error-raising entry point (spec §7). Its actual error context lives in
// the per-thread VM error record (see pkg/rferr), not on this object.
var errObj = &Value{Tag: TErr, rc: 1}

// Null returns the interned null sentinel.
func Null() *Value { return nullObj }

// ErrSentinel returns the single shared ERR value.
func ErrSentinel() *Value { return errObj }

// IsNull reports whether v is the null sentinel.
func IsNull(v *Value) bool { return v == nullObj }

// IsErr reports whether v is the ERR sentinel.
func IsErr(v *Value) bool { return v != nil && v.Tag == TErr }
