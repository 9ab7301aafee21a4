package sortpkg

import "math"

// BiasI16/BiasI32/BiasI64 convert a signed integer to an unsigned key whose
// natural (unsigned) ordering matches the signed ordering, by flipping the
// sign bit (spec §4.4: "XOR the top bit so comparisons on the unsigned
// view preserve signed order").

func BiasI16(x int16) uint16 { return uint16(x) ^ 0x8000 }
func BiasI32(x int32) uint32 { return uint32(x) ^ 0x80000000 }
func BiasI64(x int64) uint64 { return uint64(x) ^ 0x8000000000000000 }

// BiasF64 converts a float64 to a bias-ordered uint64 key per spec §4.4:
// "if NaN, map to 0; else flip the sign bit for non-negatives and invert
// all bits for negatives." NaN sorting to key 0 makes it the smallest key,
// which combined with nulls sorting first in ascending order and last in
// descending gives NaN the same placement as an explicit null.
func BiasF64(x float64) uint64 {
	if math.IsNaN(x) {
		return 0
	}
	bits := math.Float64bits(x)
	if bits&0x8000000000000000 == 0 {
		return bits | 0x8000000000000000
	}
	return ^bits
}
