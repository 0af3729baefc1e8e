package correlation

import (
	"math"

	"gocorr/domain/core"
)

// NumPairs returns n*(n-1)/2, the number of unordered pairs of n series
func NumPairs(n int) uint64 {
	if n < 2 {
		return 0
	}
	return uint64(n) * uint64(n-1) / 2
}

// PackIndex maps the unordered pair (i, j) to its lower-triangular position,
// using the larger index as the row: max*(max-1)/2 + min.
func PackIndex(i, j int) (uint64, error) {
	if i == j || i < 0 || j < 0 {
		return 0, core.ErrSamePairIndex
	}
	if i < j {
		i, j = j, i
	}
	return pack(i, j), nil
}

// pack assumes hi > lo >= 0
func pack(hi, lo int) uint64 {
	return uint64(hi)*uint64(hi-1)/2 + uint64(lo)
}

// UnpackIndex inverts PackIndex, returning (hi, lo) with hi > lo
func UnpackIndex(idx uint64) (int, int) {
	hi := int((1 + math.Sqrt(1+8*float64(idx))) / 2)
	// Correct for floating point error on large indices
	for hi > 1 && pack(hi, 0) > idx {
		hi--
	}
	for pack(hi+1, 0) <= idx {
		hi++
	}
	return hi, int(idx - pack(hi, 0))
}
