package sortpkg

import (
	"math"
	"sort"

	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

// SortIndex produces the index vector p from spec §4.4 such that
// v.Gather(p) (conceptually) is sorted ascending (desc=false) or
// descending (desc=true), stable by original position for equal keys.
// workers <= 0 lets the dispatcher pick a default parallelism. It has no
// worker pool to dispatch through; use SortIndexWithPool from a VM
// context to let the large-N paths fan out through the shared pool
// instead of ad hoc goroutines.
func SortIndex(v *value.Value, desc bool, workers int) []int64 {
	return SortIndexWithPool(nil, v, desc, workers)
}

// SortIndexWithPool is SortIndex dispatching its parallel phases (spec
// §4.4's large-N counting/radix paths) through pool when one is given,
// per spec §4.2's "histograms, scans, partial aggregates" job
// description for the worker pool. A nil pool behaves exactly like
// SortIndex.
func SortIndexWithPool(pool vm.Pool, v *value.Value, desc bool, workers int) []int64 {
	n := int(v.Len())
	if n <= 1 {
		return iotaInt64(n)
	}

	// Attribute short-circuit (spec §4.4): a vector already known sorted
	// in the requested direction needs no work at all.
	if !desc && v.Attrs&value.AttrAsc != 0 {
		return iotaInt64(n)
	}
	if desc && v.Attrs&value.AttrDesc != 0 {
		return iotaInt64(n)
	}
	if !desc && v.Attrs&value.AttrDesc != 0 {
		return reverseIotaInt64(n)
	}
	if desc && v.Attrs&value.AttrAsc != 0 {
		return reverseIotaInt64(n)
	}

	switch v.Tag {
	case value.TU8, value.TB8, value.TC8:
		return sortBytes(pool, v.U8s(), desc, n, workers)
	case value.TI16:
		return sortI16(pool, v.I16s(), desc, n, workers)
	case value.TI32, value.TDate, value.TTime:
		return sortI32(pool, v.I32s(), desc, n, workers)
	case value.TI64, value.TTimestamp:
		return sortI64(pool, v.I64s(), desc, n, workers)
	case value.TF64:
		return sortF64(pool, v.F64s(), desc, n, workers)
	case value.TSymbol:
		return sortSymbols(v.Strs(), desc)
	case value.TList:
		return sortList(v.Elems(), desc)
	default:
		return iotaInt64(n)
	}
}

func keyTransform(k uint64, desc bool) uint64 {
	if desc {
		return ^k
	}
	return k
}

func sortBytes(pool vm.Pool, xs []uint8, desc bool, n, workers int) []int64 {
	// U8's null sentinel (0xFF) is the type's max byte; rotate by +1 so the
	// null sentinel maps to bucket 0 (sorts first ascending) without
	// disturbing the relative order of non-null values. B8/C8 have no
	// reserved null byte, so the rotation is a no-op for them in practice
	// (their domains never produce 0xFF as a real sentinel check), and
	// applying it uniformly keeps this one fast path for all three types.
	bucketOf := func(i int) int {
		b := int(xs[i]) + 1
		if b > 255 {
			b = 0
		}
		if desc {
			b = 255 - b
		}
		return b
	}
	if n >= LargeThreshold {
		return parallelCountingSort(pool, bucketOf, n, 256, defaultParallelism(workers))
	}
	return countingSortByBucket(n, bucketOf, 256)
}

func sortI16(pool vm.Pool, xs []int16, desc bool, n, workers int) []int64 {
	scope := ComputeScopeI16(xs)
	rangeSize := scope.Max - scope.Min + 1
	if rangeSize <= 0 {
		rangeSize = 1
	}
	if rangeSize <= Radix8BucketCap && n < LargeThreshold {
		bucketOf := func(i int) int {
			x := xs[i]
			if x == value.NullI16 {
				if desc {
					return int(rangeSize)
				}
				return 0
			}
			b := int64(x) - scope.Min
			if desc {
				b = rangeSize - 1 - b
			} else {
				b++
			}
			return int(b)
		}
		return countingSortByBucket(n, bucketOf, int(rangeSize)+1)
	}
	keys := make([]uint64, n)
	for i, x := range xs {
		keys[i] = keyTransform(uint64(BiasI16(x)), desc)
	}
	if n >= LargeThreshold {
		return parallelRadixSort(pool, keys, n, 8, 16, defaultParallelism(workers))
	}
	return radixSortFull(keys, n, 8, 16)
}

func sortI32(pool vm.Pool, xs []int32, desc bool, n, workers int) []int64 {
	keys := make([]uint64, n)
	for i, x := range xs {
		keys[i] = keyTransform(uint64(BiasI32(x)), desc)
	}
	scope := ComputeScopeI32(xs)
	smallRange := scope.Max-scope.Min < Radix8BucketCap
	switch {
	case n >= LargeThreshold:
		if smallRange {
			// Nulls take bucket 0; the rest are offsets from scope.Min.
			rangeSize := int(scope.Max-scope.Min) + 1
			bucketOf := func(i int) int {
				b := int(int64(xs[i])-scope.Min) + 1
				if xs[i] == value.NullI32 {
					b = 0
				}
				if desc {
					b = rangeSize - b
				}
				return b
			}
			return parallelCountingSort(pool, bucketOf, n, rangeSize+1, defaultParallelism(workers))
		}
		return parallelRadixSort(pool, keys, n, 16, 32, defaultParallelism(workers))
	case smallRange:
		return radixSortFull(keys, n, 16, 32)
	default:
		return radixSortFull(keys, n, 8, 32)
	}
}

func sortI64(pool vm.Pool, xs []int64, desc bool, n, workers int) []int64 {
	keys := make([]uint64, n)
	for i, x := range xs {
		keys[i] = keyTransform(BiasI64(x), desc)
	}
	scope := ComputeScopeI64(xs)
	smallRange := scope.Max-scope.Min < Radix8BucketCap
	switch {
	case n >= LargeThreshold:
		if smallRange {
			// Nulls take bucket 0; the rest are offsets from scope.Min.
			rangeSize := int(scope.Max-scope.Min) + 1
			bucketOf := func(i int) int {
				b := int(xs[i]-scope.Min) + 1
				if xs[i] == value.NullI64 {
					b = 0
				}
				if desc {
					b = rangeSize - b
				}
				return b
			}
			return parallelCountingSort(pool, bucketOf, n, rangeSize+1, defaultParallelism(workers))
		}
		return parallelRadixSort(pool, keys, n, 16, 64, defaultParallelism(workers))
	case smallRange:
		return radixSortFull(keys, n, 16, 64)
	default:
		return radixSortFull(keys, n, 8, 64)
	}
}

func sortF64(pool vm.Pool, xs []float64, desc bool, n, workers int) []int64 {
	keys := make([]uint64, n)
	for i, x := range xs {
		keys[i] = keyTransform(BiasF64(x), desc)
	}
	if n >= LargeThreshold {
		return parallelRadixSort(pool, keys, n, 16, 64, defaultParallelism(workers))
	}
	return radixSortFull(keys, n, 16, 64)
}

// sortSymbols sorts a SYMBOL vector by its pre-interning string text
// (spec §4.4: "counting on id range or merge sort by interned string").
// Pre-interning, only the string-comparator path is available since no id
// range yet exists; pkg/query's evaluator resolves symbols to ids before
// any sort that can use the faster id-range counting path.
func sortSymbols(strs []string, desc bool) []int64 {
	p := iotaInt64(len(strs))
	sort.SliceStable(p, func(i, j int) bool {
		a, b := strs[p[i]], strs[p[j]]
		if desc {
			return a > b
		}
		return a < b
	})
	return p
}

// sortList sorts a LIST via merge sort (stable) using an element-wise
// comparator, per spec §4.4.
func sortList(elems []*value.Value, desc bool) []int64 {
	p := iotaInt64(len(elems))
	sort.SliceStable(p, func(i, j int) bool {
		c := compareValues(elems[p[i]], elems[p[j]])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return p
}

// compareValues is a total order over atoms sufficient for LIST sort: null
// first, then by type-appropriate numeric/lexicographic comparison, with
// differing types ordered by tag as a last resort.
func compareValues(a, b *value.Value) int {
	an, bn := value.IsNullAtom(a), value.IsNullAtom(b)
	if an && bn {
		return 0
	}
	if an {
		return -1
	}
	if bn {
		return 1
	}
	if a.Tag == b.Tag {
		switch a.Tag {
		case -value.TF64:
			return cmpFloat(a.F64(), b.F64())
		case -value.TSymbol:
			return cmpString(a.Symbol(), b.Symbol())
		default:
			return cmpInt(a.I64(), b.I64())
		}
	}
	return cmpInt(int64(a.Tag), int64(b.Tag))
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return -1
	case math.IsNaN(b):
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
