// Package window maintains the rolling per-series window statistics that feed
// the pairwise correlation stage.
package window

import (
	"math"

	"gocorr/domain/correlation"
)

// Engine carries the running sum and sum of squares of every series across
// timesteps. Each Advance folds in the sample entering the window and removes
// the sample leaving it; sums are never rebuilt from the raw window.
//
// Alongside the sums it tracks how many trailing samples (zero padding
// included) are equal, so a constant window is flagged exactly even when the
// running sums have drifted.
type Engine struct {
	matrix *correlation.Matrix
	window int
	next   int
	sums   []float64
	sumsSq []float64
	last   []float64
	run    []int
}

// NewEngine creates an engine positioned before timestep 0
func NewEngine(matrix *correlation.Matrix, window int) *Engine {
	n := matrix.NumSeries()
	run := make([]int, n)
	for i := range run {
		// the padding before timestep 0 is a run of zeros
		run[i] = window
	}
	return &Engine{
		matrix: matrix,
		window: window,
		sums:   make([]float64, n),
		sumsSq: make([]float64, n),
		last:   make([]float64, n),
		run:    run,
	}
}

// Timestep returns the timestep the next Advance will produce
func (e *Engine) Timestep() int {
	return e.next
}

// Window returns the window length W
func (e *Engine) Window() int {
	return e.window
}

// Matrix returns the input matrix
func (e *Engine) Matrix() *correlation.Matrix {
	return e.matrix
}

// Advance produces the statistics of every series at the current timestep,
// writing into dst when it has room, and moves the engine to the next one.
func (e *Engine) Advance(dst []correlation.SeriesStats) (int, []correlation.SeriesStats) {
	n := e.matrix.NumSeries()
	if cap(dst) < n {
		dst = make([]correlation.SeriesStats, n)
	}
	dst = dst[:n]

	t := e.next
	w := float64(e.window)
	for i := 0; i < n; i++ {
		cur := e.matrix.At(i, t)
		old := e.matrix.At(i, t-e.window)

		if t == 0 {
			e.sums[i] = cur
			e.sumsSq[i] = cur * cur
		} else {
			e.sums[i] = e.sums[i] + cur - old
			e.sumsSq[i] = e.sumsSq[i] + cur*cur - old*old
		}

		if cur == e.last[i] {
			if e.run[i] < e.window {
				e.run[i]++
			}
		} else {
			e.run[i] = 1
			e.last[i] = cur
		}

		sum, sumSq := e.sums[i], e.sumsSq[i]
		dst[i] = correlation.SeriesStats{
			Sum:        sum,
			SumSq:      sumSq,
			Norm:       1 / math.Sqrt(w*sumSq-sum*sum),
			Degenerate: e.run[i] >= e.window || correlation.IsDegenerate(sum, sumSq, e.window),
		}
	}
	e.next++
	return t, dst
}

// Compute runs the engine over timesteps [0, numTimesteps) and returns the
// full statistics table indexed [t][i].
func Compute(matrix *correlation.Matrix, window, numTimesteps int) [][]correlation.SeriesStats {
	engine := NewEngine(matrix, window)
	table := make([][]correlation.SeriesStats, numTimesteps)
	for t := 0; t < numTimesteps; t++ {
		_, table[t] = engine.Advance(nil)
	}
	return table
}

// StatsAt replays the incremental recurrence from timestep 0 through t. It
// reproduces exactly what a live engine emits at t.
func StatsAt(matrix *correlation.Matrix, window, t int) []correlation.SeriesStats {
	engine := NewEngine(matrix, window)
	buf := make([]correlation.SeriesStats, matrix.NumSeries())
	for engine.Timestep() < t {
		engine.Advance(buf)
	}
	_, out := engine.Advance(buf)
	return out
}
