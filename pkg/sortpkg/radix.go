package sortpkg

// radixSort runs an LSD radix sort over keys (only the indices named in
// perm0 participate, in perm0's initial order), digitBits wide per pass,
// totalBits of key width overall. Each pass is a stable countingSortByDigit
// call; passes compose into a full stable sort (spec §4.4's 8/16-bit radix
// rows).
func radixSort(keys []uint64, perm0 []int64, digitBits, totalBits int) []int64 {
	perm := perm0
	for shift := 0; shift < totalBits; shift += digitBits {
		perm = countingSortByDigit(keys, perm, uint(shift), digitBits)
	}
	return perm
}

// radixSortFull is radixSort starting from the identity permutation over n
// elements.
func radixSortFull(keys []uint64, n, digitBits, totalBits int) []int64 {
	return radixSort(keys, iotaInt64(n), digitBits, totalBits)
}
