package kernel

import (
	"context"
	"fmt"

	"gocorr/domain/core"
	"gocorr/domain/correlation"
)

// SequentialKernel keeps one running cross sum per pair and updates it with
// the entering and leaving samples of each timestep. It must see every
// timestep exactly once, in order.
type SequentialKernel struct {
	numSeries int
	workers   int
	sumsXY    []float64
	next      int
}

func NewSequentialKernel(numSeries, workers int) *SequentialKernel {
	return &SequentialKernel{
		numSeries: numSeries,
		workers:   workers,
		sumsXY:    make([]float64, correlation.NumPairs(numSeries)),
	}
}

func (k *SequentialKernel) Name() string { return string(correlation.ModeSequential) }

// Reset clears the accumulators so the kernel can start a new run
func (k *SequentialKernel) Reset() {
	for i := range k.sumsXY {
		k.sumsXY[i] = 0
	}
	k.next = 0
}

func (k *SequentialKernel) Correlate(ctx context.Context, step *correlation.PreparedStep, out *correlation.StepScores) (*correlation.StepScores, error) {
	if step.NumSeries != k.numSeries {
		return nil, fmt.Errorf("%w: kernel sized for %d series, step has %d",
			core.ErrPreparedMismatch, k.numSeries, step.NumSeries)
	}
	if step.Timestep != k.next {
		return nil, fmt.Errorf("%w: sequential kernel expects timestep %d, got %d",
			core.ErrPreparedMismatch, k.next, step.Timestep)
	}

	res, err := evaluate(ctx, step, k.workers, out, k.row)
	if err != nil {
		// A partially applied timestep leaves the accumulators unusable
		k.next = -1
		return nil, err
	}
	k.next++
	return res, nil
}

func (k *SequentialKernel) row(step *correlation.PreparedStep, i int, scores []correlation.PairScore) {
	w := float64(step.Window)
	xNew, xOld := step.Pairs[2*i], step.Pairs[2*i+1]
	sumI, normI := step.Precalc[2*i], step.Precalc[2*i+1]
	degI := step.Degenerate[i]

	for j := i + 1; j < step.NumSeries; j++ {
		yNew, yOld := step.Pairs[2*j], step.Pairs[2*j+1]
		idx := rowStart(j) + uint64(i)

		k.sumsXY[idx] += xNew*yNew - xOld*yOld

		value, status := score(w, k.sumsXY[idx], sumI, normI,
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
