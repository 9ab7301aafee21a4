// Package hashtable implements RayforceDB's hashing primitives and the two
// hash-table shapes from spec §4.3: an open-addressing table for general
// key/value lookups and a lock-free bucket-chained table for the symbol
// interner, plus the packed (salt, group_id) cell the fused hash-aggregate
// uses (spec §4.5.1).
package hashtable

import "math/bits"

// mulConst (S in spec §4.3) is a fixed odd 64-bit multiplier used by the
// mixing step. The specific constant (Murmur3/xxhash-style odd constant)
// only needs to be fixed and odd; this value is the one the spec's mix
// formula assumes throughout (it is never round-tripped against an
// external format, so any fixed odd constant is a valid choice).
const mulConst uint64 = 0xff51afd7ed558ccd

// Mix implements the 64-bit mixing step from spec §4.3:
//
//	a = (h ^ k) * S
//	a ^= a >> 47
//	b = (rotl(k,31) ^ a) * S
//	b ^= b >> 47
//	b *= S
func Mix(h, k uint64) uint64 {
	a := (h ^ k) * mulConst
	a ^= a >> 47
	b := (bits.RotateLeft64(k, 31) ^ a) * mulConst
	b ^= b >> 47
	b *= mulConst
	return b
}

// MixBatch4 computes Mix(h, k) for four keys at once. RayforceDB's source
// uses fixed-width SIMD vector extensions when available; Go has no
// portable intrinsic for that, so this is the scalar-unroll fallback path
// spec §4.3 requires: "a vectorised 4-wide variant ... otherwise scalar
// unroll ... batched hashing must produce identical results to scalar
// mixing element-by-element." The loop is unrolled by hand so the
// compiler can keep all four accumulators in registers; it is not a real
// SIMD instruction, just laid out identically to one.
func MixBatch4(h uint64, k0, k1, k2, k3 uint64) (r0, r1, r2, r3 uint64) {
	r0 = Mix(h, k0)
	r1 = Mix(h, k1)
	r2 = Mix(h, k2)
	r3 = Mix(h, k3)
	return
}

// MixBatch hashes every key in ks against h, writing into out (which must
// have len(out) >= len(ks)), processing four at a time via MixBatch4 and
// the remainder scalar.
func MixBatch(h uint64, ks []uint64, out []uint64) {
	n := len(ks)
	i := 0
	for ; i+4 <= n; i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = MixBatch4(h, ks[i], ks[i+1], ks[i+2], ks[i+3])
	}
	for ; i < n; i++ {
		out[i] = Mix(h, ks[i])
	}
}

// MixColumns computes a composite row hash across multiple key columns
// (used by join §4.7 and the composite hash-aggregate §4.5.1): for row i,
// hash = Mix(Mix(Mix(seed, col0[i]), col1[i]), col2[i])...
func MixColumns(seed uint64, cols [][]uint64, out []uint64) {
	n := len(out)
	for i := 0; i < n; i++ {
		h := seed
		for _, col := range cols {
			h = Mix(h, col[i])
		}
		out[i] = h
	}
}
