// Package kernel evaluates the pairwise Pearson correlation of every series
// pair at one timestep from prepared window statistics.
package kernel

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"gocorr/domain/core"
	"gocorr/domain/correlation"
	"gocorr/ports"
)

// rowFunc evaluates every pair (j, i) with j > i into scores, which is the
// full packed vector of the timestep.
type rowFunc func(step *correlation.PreparedStep, i int, scores []correlation.PairScore)

// New returns the in-process kernel for mode. Stateless and reference kernels
// read sample history straight from the matrix.
func New(mode correlation.Mode, matrix *correlation.Matrix, workers int) (ports.CorrelationKernel, error) {
	switch mode {
	case correlation.ModeSequential:
		return NewSequentialKernel(matrix.NumSeries(), workers), nil
	case correlation.ModeStateless:
		return NewStatelessKernel(matrix, workers), nil
	default:
		return nil, fmt.Errorf("%w: unknown kernel mode %q", core.ErrInvalidConfiguration, mode)
	}
}

// evaluate fans the rows of the pair triangle out over workers. Row i is
// assigned to worker i mod workers, which balances the shrinking row lengths.
// Workers write disjoint packed positions, so no locking is needed.
func evaluate(ctx context.Context, step *correlation.PreparedStep, workers int, out *correlation.StepScores, row rowFunc) (*correlation.StepScores, error) {
	n := step.NumSeries
	if len(step.Precalc) < 2*n || len(step.Pairs) < 2*n || len(step.Degenerate) < n {
		return nil, fmt.Errorf("%w: step %d has %d records for %d series",
			core.ErrPreparedMismatch, step.Timestep, len(step.Precalc)/2, n)
	}

	total := int(correlation.NumPairs(n))
	if out == nil {
		out = &correlation.StepScores{}
	}
	if cap(out.Scores) < total {
		out.Scores = make([]correlation.PairScore, total)
	}
	out.Scores = out.Scores[:total]
	out.Timestep = step.Timestep

	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	if workers <= 1 {
		for i := 0; i < n; i++ {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			row(step, i, out.Scores)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				row(step, i, out.Scores)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// score combines a finished cross sum with the two series' records
func score(window float64, sumXY, sumI, normI, sumJ, normJ float64, degenerate bool) (float64, correlation.PairStatus) {
	if degenerate {
		return math.NaN(), correlation.StatusDegenerate
	}
	r := (window*sumXY - sumI*sumJ) * normI * normJ
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN(), correlation.StatusDegenerate
	}
	return r, correlation.StatusValid
}

// rowStart returns the packed index of pair (j, 0); pair (j, i) for i < j
// lives at rowStart(j) + i.
func rowStart(j int) uint64 {
	return uint64(j) * uint64(j-1) / 2
}
