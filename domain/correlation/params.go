package correlation

import (
	"runtime"

	"gocorr/domain/core"
)

const (
	// DefaultMaxSeries is the largest series count a run accepts
	DefaultMaxSeries = 6000
	// DefaultTopK is the number of ranked pairs kept per timestep
	DefaultTopK = 10
	// DefaultWindow is the rolling window length used when none is configured
	DefaultWindow = 9
	// DegeneracyTolerance is the relative rounding slack, in units of
	// W*(W*sumSq), below which a normalization radicand counts as zero.
	DegeneracyTolerance = 4 * 2.220446049250313e-16
)

// Mode selects how the kernel obtains the per-pair cross sum
type Mode string

const (
	// ModeSequential keeps one persisted sumXY accumulator per pair
	ModeSequential Mode = "sequential"
	// ModeStateless rebuilds sumXY on every call with no state between timesteps
	ModeStateless Mode = "stateless"
)

// Valid reports whether m names a known kernel mode
func (m Mode) Valid() bool {
	return m == ModeSequential || m == ModeStateless
}

// Params holds the run-wide constants of a correlation pipeline
type Params struct {
	Window    int  `json:"window"`
	Timesteps int  `json:"timesteps"` // 0 means every sample of the series
	TopK      int  `json:"top_k"`
	MaxSeries int  `json:"max_series"`
	Mode      Mode `json:"mode"`
	Workers   int  `json:"workers"`
	Pipelined bool `json:"pipelined"`
}

// DefaultParams returns the reference configuration: W=9, K=10, 6000 series max
func DefaultParams() Params {
	return Params{
		Window:    DefaultWindow,
		TopK:      DefaultTopK,
		MaxSeries: DefaultMaxSeries,
		Mode:      ModeSequential,
		Workers:   runtime.GOMAXPROCS(0),
		Pipelined: true,
	}
}

// Resolve fills zero-valued optional fields for a matrix of the given length.
// Window, TopK and Timesteps beyond the series are left alone so Validate can
// reject them.
func (p Params) Resolve(sizeSeries int) Params {
	if p.Timesteps == 0 {
		p.Timesteps = sizeSeries
	}
	if p.MaxSeries <= 0 {
		p.MaxSeries = DefaultMaxSeries
	}
	if p.Mode == "" {
		p.Mode = ModeSequential
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	return p
}

// Validate enforces the fatal configuration rules for a numSeries x sizeSeries input
func (p Params) Validate(numSeries, sizeSeries int) error {
	if numSeries > p.MaxSeries {
		return core.NewTooManySeriesError(numSeries, p.MaxSeries)
	}
	if p.Window < 2 {
		return core.NewWindowError(p.Window)
	}
	if p.Timesteps > sizeSeries || p.Timesteps < 0 {
		return core.NewTimestepsError(p.Timesteps, sizeSeries)
	}
	if p.TopK < 0 {
		return core.ErrNegativeTopK
	}
	if !p.Mode.Valid() {
		return core.ErrInvalidConfiguration
	}
	return nil
}
