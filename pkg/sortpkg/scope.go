// Package sortpkg implements RayforceDB's sort module (spec §4.4): it
// produces an index vector p such that vec[p[0..n]] is ordered, stable by
// input position for equal keys, with a dispatch table keyed on element
// type, vector length, and the vector's (min, max, null_count) scope.
package sortpkg

import (
	"math"

	"github.com/RayforceDB/rayforce/pkg/value"
)

// Size thresholds from spec §4.4's dispatch table. These are the same
// kind of tunable the query engine's PERFECT_HASH_THRESHOLD/
// PARALLEL_AGG_THRESHOLD are (spec §4.5.1 gives them as "e.g." values);
// picked once here so the dispatch table in dispatch.go is deterministic.
const (
	SmallThreshold  = 4096    // below this: single-pass counting/radix, no parallel fan-out
	LargeThreshold  = 1 << 20 // at/above this: parallel dispatch engages
	Radix8BucketCap = 1 << 16 // range below which 16-bit counting beats 8-bit radix passes
)

// Scope is the one-pass (min, max, null_count) summary spec §4.4 computes
// before dispatch.
type Scope struct {
	Min, Max  int64
	NullCount int64
	Len       int64
}

// ComputeScopeI64 scans xs once, treating value.NullI64 as the null
// sentinel.
func ComputeScopeI64(xs []int64) Scope {
	s := Scope{Len: int64(len(xs))}
	first := true
	for _, x := range xs {
		if x == value.NullI64 {
			s.NullCount++
			continue
		}
		if first {
			s.Min, s.Max = x, x
			first = false
			continue
		}
		if x < s.Min {
			s.Min = x
		}
		if x > s.Max {
			s.Max = x
		}
	}
	if first {
		s.Min, s.Max = 0, 0
	}
	return s
}

// ComputeScopeI32 is ComputeScopeI64 specialised to 32-bit elements.
func ComputeScopeI32(xs []int32) Scope {
	s := Scope{Len: int64(len(xs))}
	first := true
	for _, x := range xs {
		if x == value.NullI32 {
			s.NullCount++
			continue
		}
		v := int64(x)
		if first {
			s.Min, s.Max = v, v
			first = false
			continue
		}
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

// ComputeScopeI16 is ComputeScopeI64 specialised to 16-bit elements.
func ComputeScopeI16(xs []int16) Scope {
	s := Scope{Len: int64(len(xs))}
	first := true
	for _, x := range xs {
		if x == value.NullI16 {
			s.NullCount++
			continue
		}
		v := int64(x)
		if first {
			s.Min, s.Max = v, v
			first = false
			continue
		}
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

// ComputeScopeF64 treats math.IsNaN as the null predicate (spec §3: the
// f64 null sentinel is a specific NaN bit pattern, but any NaN sorts as
// null per spec §4.4's bias rule). F64 always dispatches to the 4-pass
// 16-bit biased radix regardless of range, so only the null count matters
// here.
func ComputeScopeF64(xs []float64) Scope {
	s := Scope{Len: int64(len(xs))}
	for _, x := range xs {
		if math.IsNaN(x) {
			s.NullCount++
		}
	}
	return s
}
