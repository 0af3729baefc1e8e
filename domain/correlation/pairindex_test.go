package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocorr/domain/core"
)

func TestPackIndex_SymmetricBijection(t *testing.T) {
	for _, n := range []int{2, 3, 7, 50} {
		seen := make(map[uint64]bool)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				a, err := PackIndex(i, j)
				require.NoError(t, err)
				b, err := PackIndex(j, i)
				require.NoError(t, err)
				assert.Equal(t, a, b, "index(%d,%d) != index(%d,%d)", i, j, j, i)
				assert.Less(t, a, NumPairs(n))
				if i > j {
					assert.False(t, seen[a], "duplicate index %d", a)
					seen[a] = true
				}
			}
		}
		assert.Len(t, seen, int(NumPairs(n)))
	}
}

func TestPackIndex_KnownValues(t *testing.T) {
	tests := []struct {
		i, j int
		want uint64
	}{
		{1, 0, 0},
		{2, 0, 1},
		{2, 1, 2},
		{3, 0, 3},
		{0, 3, 3},
		{5999, 5998, 5999*5998/2 + 5998},
	}
	for _, tt := range tests {
		got, err := PackIndex(tt.i, tt.j)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestPackIndex_RejectsSamePair(t *testing.T) {
	_, err := PackIndex(4, 4)
	assert.ErrorIs(t, err, core.ErrSamePairIndex)
	_, err = PackIndex(-1, 2)
	assert.ErrorIs(t, err, core.ErrSamePairIndex)
}

func TestUnpackIndex_RoundTrip(t *testing.T) {
	n := 6000
	for _, hi := range []int{1, 2, 3, 17, 1000, n - 1} {
		for _, lo := range []int{0, hi / 2, hi - 1} {
			idx, err := PackIndex(hi, lo)
			require.NoError(t, err)
			gotHi, gotLo := UnpackIndex(idx)
			assert.Equal(t, hi, gotHi)
			assert.Equal(t, lo, gotLo)
		}
	}
}

func TestNumPairs(t *testing.T) {
	assert.Equal(t, uint64(0), NumPairs(0))
	assert.Equal(t, uint64(0), NumPairs(1))
	assert.Equal(t, uint64(3), NumPairs(3))
	assert.Equal(t, uint64(17997000), NumPairs(6000))
}
