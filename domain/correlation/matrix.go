package correlation

import (
	"gocorr/domain/core"
)

// Matrix is the read-only numSeries x sizeSeries sample matrix of a run.
// Row i, column t is series i at timestep t. The rows are shared, not copied,
// so callers must not mutate them while a run is in flight.
type Matrix struct {
	rows [][]float64
	size int
}

// NewMatrix validates that rows is non-empty and rectangular
func NewMatrix(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, core.ErrEmptyMatrix
	}
	size := len(rows[0])
	for i, row := range rows {
		if len(row) != size {
			return nil, core.NewRaggedMatrixError(i, len(row), size)
		}
	}
	return &Matrix{rows: rows, size: size}, nil
}

func (m *Matrix) NumSeries() int  { return len(m.rows) }
func (m *Matrix) SizeSeries() int { return m.size }

// At returns series i at timestep t, or 0 when t is left of the first sample
func (m *Matrix) At(i, t int) float64 {
	if t < 0 {
		return 0
	}
	return m.rows[i][t]
}

// Row returns series i. The slice aliases the matrix storage.
func (m *Matrix) Row(i int) []float64 {
	return m.rows[i]
}

// Window copies the W samples ending at t into dst, zero-padding before index 0
func (m *Matrix) Window(dst []float64, i, t, w int) []float64 {
	if cap(dst) < w {
		dst = make([]float64, w)
	}
	dst = dst[:w]
	start := t - w + 1
	for k := 0; k < w; k++ {
		dst[k] = m.At(i, start+k)
	}
	return dst
}
