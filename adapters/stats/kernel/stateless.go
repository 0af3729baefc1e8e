package kernel

import (
	"context"

	"gocorr/domain/correlation"
)

// StatelessKernel rebuilds each pair's cross sum at every call by replaying the
// entering/leaving recurrence from timestep 0. Replaying the same additions in
// the same order keeps its scores bit-identical to SequentialKernel. A call at
// timestep t costs O(t) per pair, but any timestep can be evaluated
// independently, in any order.
type StatelessKernel struct {
	matrix  *correlation.Matrix
	workers int
}

func NewStatelessKernel(matrix *correlation.Matrix, workers int) *StatelessKernel {
	return &StatelessKernel{matrix: matrix, workers: workers}
}

func (k *StatelessKernel) Name() string { return string(correlation.ModeStateless) }

func (k *StatelessKernel) Correlate(ctx context.Context, step *correlation.PreparedStep, out *correlation.StepScores) (*correlation.StepScores, error) {
	return evaluate(ctx, step, k.workers, out, k.row)
}

func (k *StatelessKernel) row(step *correlation.PreparedStep, i int, scores []correlation.PairScore) {
	w := float64(step.Window)
	t := step.Timestep
	x := k.matrix.Row(i)[:t+1]
	sumI, normI := step.Precalc[2*i], step.Precalc[2*i+1]
	degI := step.Degenerate[i]

	for j := i + 1; j < step.NumSeries; j++ {
		y := k.matrix.Row(j)[:t+1]
		sumXY := 0.0
		for s := range x {
			xOld, yOld := 0.0, 0.0
			if s >= step.Window {
				xOld, yOld = x[s-step.Window], y[s-step.Window]
			}
			sumXY += x[s]*y[s] - xOld*yOld
		}

		idx := rowStart(j) + uint64(i)
		value, status := score(w, sumXY, sumI, normI,
			step.Precalc[2*j], step.Precalc[2*j+1], degI || step.Degenerate[j])
		scores[idx] = correlation.PairScore{
			Index:  idx,
			A:      int32(j),
			B:      int32(i),
			Value:  value,
			Status: status,
		}
	}
}
