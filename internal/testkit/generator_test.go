package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(42).Uniform(5, 20)
	b := NewGenerator(42).Uniform(5, 20)
	assert.Equal(t, a, b)

	c := NewGenerator(43).Uniform(5, 20)
	assert.NotEqual(t, a, c)
}

func TestGenerator_UniformRange(t *testing.T) {
	rows := NewGenerator(1).Uniform(3, 200)
	require.Len(t, rows, 3)
	for _, row := range rows {
		require.Len(t, row, 200)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 1.0)
		}
	}
}

func TestGenerator_CorrelatedWalksGrouping(t *testing.T) {
	rows := NewGenerator(7).CorrelatedWalks(4, 400, 2, 0.05)

	inside := stat.Correlation(rows[0], rows[1], nil)
	assert.Greater(t, inside, 0.9, "series sharing a driver should track each other")
}

func TestGenerate_UsesConfigSeed(t *testing.T) {
	cfg := DefaultSeriesConfig()
	cfg.NumSeries, cfg.SizeSeries = 3, 10
	assert.Equal(t, Generate(cfg), Generate(cfg))

	cfg.Pattern = PatternWalks
	walks := Generate(cfg)
	require.Len(t, walks, 3)
}

func TestRNGAdapter_StreamsAreNamed(t *testing.T) {
	ctx := context.Background()
	kit := NewTestKit(9)

	a, err := kit.Matrix(ctx, "left", 2, 8)
	require.NoError(t, err)
	b, err := kit.Matrix(ctx, "left", 2, 8)
	require.NoError(t, err)
	c, err := kit.Matrix(ctx, "right", 2, 8)
	require.NoError(t, err)

	assert.Equal(t, a.Row(0), b.Row(0))
	assert.NotEqual(t, a.Row(0), c.Row(0))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, []float64{3, 3}, Constant(2, 3))
	assert.Equal(t, []float64{1, 3, 5}, Affine([]float64{0, 1, 2}, 2, 1))
	assert.InDelta(t, 0.0, Sine(4, 4, 0)[2], 1e-12)
}
