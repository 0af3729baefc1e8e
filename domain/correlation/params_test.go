package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gocorr/domain/core"
)

func TestParams_Validate(t *testing.T) {
	base := DefaultParams().Resolve(100)

	tests := []struct {
		name      string
		mutate    func(p *Params)
		numSeries int
		want      error
	}{
		{"defaults", func(p *Params) {}, 200, nil},
		{"too many series", func(p *Params) {}, DefaultMaxSeries + 1, core.ErrTooManySeries},
		{"window below two", func(p *Params) { p.Window = 1 }, 10, core.ErrWindowTooSmall},
		{"timesteps beyond series", func(p *Params) { p.Timesteps = 101 }, 10, core.ErrTimestepsExceedSeries},
		{"negative top-k", func(p *Params) { p.TopK = -1 }, 10, core.ErrNegativeTopK},
		{"unknown mode", func(p *Params) { p.Mode = "gpu" }, 10, core.ErrInvalidConfiguration},
		{"window longer than series", func(p *Params) { p.Window = 500 }, 10, nil},
		{"zero top-k", func(p *Params) { p.TopK = 0 }, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			err := p.Validate(tt.numSeries, 100)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, core.IsConfigurationError(err))
		})
	}
}

func TestParams_ResolveTimesteps(t *testing.T) {
	p := Params{Window: 3}.Resolve(40)
	assert.Equal(t, 40, p.Timesteps)
	assert.Equal(t, DefaultMaxSeries, p.MaxSeries)
	assert.Equal(t, ModeSequential, p.Mode)
	assert.Equal(t, 1, p.Workers)

	p = Params{Window: 3, Timesteps: 5}.Resolve(40)
	assert.Equal(t, 5, p.Timesteps)
}

func TestIsDegenerate(t *testing.T) {
	assert.True(t, IsDegenerate(0, 0, 9), "all-zero window")
	assert.True(t, IsDegenerate(0.3, 0.03, 3), "constant 0.1 window")
	assert.False(t, IsDegenerate(3, 5, 2), "window {1, 2}")
	assert.False(t, IsDegenerate(3e6+3, 3*1e12+6e6+5, 3), "window {1e6, 1e6+1, 1e6+2}")
	assert.True(t, IsDegenerate(3e6, 3e12, 3), "constant 1e6 window")
}

func TestMatrix_Validation(t *testing.T) {
	_, err := NewMatrix(nil)
	assert.ErrorIs(t, err, core.ErrEmptyMatrix)

	_, err = NewMatrix([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, core.ErrRaggedMatrix)

	m, err := NewMatrix([][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.NoError(t, err)
	assert.Equal(t, 2, m.NumSeries())
	assert.Equal(t, 3, m.SizeSeries())
	assert.Equal(t, []float64{0, 1, 2}, m.Window(nil, 0, 1, 3))
	assert.Equal(t, []float64{4, 5, 6}, m.Window(nil, 1, 2, 3))
}
