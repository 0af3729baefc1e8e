// Package layout rearranges window statistics and raw samples into the
// interleaved per-timestep records consumed by a correlation kernel.
package layout

import (
	"gocorr/adapters/stats/window"
	"gocorr/domain/correlation"
)

// NewStep allocates an empty step for numSeries series
func NewStep(numSeries, windowSize int) *correlation.PreparedStep {
	return &correlation.PreparedStep{
		NumSeries:  numSeries,
		Window:     windowSize,
		Precalc:    make([]float64, 2*numSeries),
		Pairs:      make([]float64, 2*numSeries),
		Degenerate: make([]bool, numSeries),
	}
}

// Fill writes the records of timestep t into dst: {sum, norm} into Precalc and
// {current, leaving} into Pairs, both at offset 2*i for series i.
func Fill(dst *correlation.PreparedStep, matrix *correlation.Matrix, t, windowSize int, stats []correlation.SeriesStats) {
	dst.Timestep = t
	dst.Window = windowSize
	dst.NumSeries = len(stats)
	for i, s := range stats {
		dst.Precalc[2*i] = s.Sum
		dst.Precalc[2*i+1] = s.Norm
		dst.Pairs[2*i] = matrix.At(i, t)
		dst.Pairs[2*i+1] = matrix.At(i, t-windowSize)
		dst.Degenerate[i] = s.Degenerate
	}
}

// Stage couples a statistics engine to the layout so every call emits the
// next timestep's prepared records.
type Stage struct {
	engine *window.Engine
	stats  []correlation.SeriesStats
}

func NewStage(engine *window.Engine) *Stage {
	return &Stage{
		engine: engine,
		stats:  make([]correlation.SeriesStats, engine.Matrix().NumSeries()),
	}
}

// Next advances the engine one timestep and lays it out into dst
func (s *Stage) Next(dst *correlation.PreparedStep) *correlation.PreparedStep {
	if dst == nil {
		dst = NewStep(len(s.stats), s.engine.Window())
	}
	t, stats := s.engine.Advance(s.stats)
	Fill(dst, s.engine.Matrix(), t, s.engine.Window(), stats)
	return dst
}

// NumSeries returns the number of series laid out per step
func (s *Stage) NumSeries() int {
	return len(s.stats)
}

// Window returns the window length of the underlying engine
func (s *Stage) Window() int {
	return s.engine.Window()
}

// Timestep returns the timestep the next call to Next will produce
func (s *Stage) Timestep() int {
	return s.engine.Timestep()
}

// Prepared holds the prepare-stage output of a whole run. Record (t, i) sits
// at offset 2*t*NumSeries + 2*i in both Precalc and Pairs.
type Prepared struct {
	NumSeries    int
	NumTimesteps int
	Window       int
	Precalc      []float64
	Pairs        []float64
	Degenerate   []bool
}

// PrepareAll runs the prepare stage over timesteps [0, numTimesteps)
func PrepareAll(matrix *correlation.Matrix, windowSize, numTimesteps int) *Prepared {
	n := matrix.NumSeries()
	p := &Prepared{
		NumSeries:    n,
		NumTimesteps: numTimesteps,
		Window:       windowSize,
		Precalc:      make([]float64, 2*n*numTimesteps),
		Pairs:        make([]float64, 2*n*numTimesteps),
		Degenerate:   make([]bool, n*numTimesteps),
	}
	stage := NewStage(window.NewEngine(matrix, windowSize))
	for t := 0; t < numTimesteps; t++ {
		step := p.Step(t)
		stage.Next(step)
	}
	return p
}

// Step returns a view of timestep t that aliases the run-wide arrays
func (p *Prepared) Step(t int) *correlation.PreparedStep {
	lo, hi := 2*t*p.NumSeries, 2*(t+1)*p.NumSeries
	return &correlation.PreparedStep{
		Timestep:   t,
		NumSeries:  p.NumSeries,
		Window:     p.Window,
		Precalc:    p.Precalc[lo:hi:hi],
		Pairs:      p.Pairs[lo:hi:hi],
		Degenerate: p.Degenerate[t*p.NumSeries : (t+1)*p.NumSeries : (t+1)*p.NumSeries],
	}
}
