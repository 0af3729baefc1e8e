package kernel

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"gocorr/domain/correlation"
)

// ReferenceKernel computes every pair by direct summation over the
// zero-padded window with gonum's Pearson estimator. It ignores the prepared
// sums and norms entirely and exists to cross-check the incremental kernels.
type ReferenceKernel struct {
	matrix  *correlation.Matrix
	workers int
}

func NewReferenceKernel(matrix *correlation.Matrix, workers int) *ReferenceKernel {
	return &ReferenceKernel{matrix: matrix, workers: workers}
}

func (k *ReferenceKernel) Name() string { return "reference" }

func (k *ReferenceKernel) Correlate(ctx context.Context, step *correlation.PreparedStep, out *correlation.StepScores) (*correlation.StepScores, error) {
	return evaluate(ctx, step, k.workers, out, k.row)
}

func (k *ReferenceKernel) row(step *correlation.PreparedStep, i int, scores []correlation.PairScore) {
	x := k.matrix.Window(nil, i, step.Timestep, step.Window)
	y := make([]float64, step.Window)

	for j := i + 1; j < step.NumSeries; j++ {
		y = k.matrix.Window(y, j, step.Timestep, step.Window)
		idx := rowStart(j) + uint64(i)

		ps := correlation.PairScore{Index: idx, A: int32(j), B: int32(i)}
		if step.Degenerate[i] || step.Degenerate[j] {
			ps.Value, ps.Status = math.NaN(), correlation.StatusDegenerate
		} else if r := stat.Correlation(x, y, nil); math.IsNaN(r) || math.IsInf(r, 0) {
			ps.Value, ps.Status = math.NaN(), correlation.StatusDegenerate
		} else {
			ps.Value = r
		}
		scores[idx] = ps
	}
}
