package ports

import (
	"context"

	"gocorr/domain/correlation"
)

// CorrelationKernel is the contract between the prepare stage and whatever
// evaluates pairs: an in-process kernel today, a streaming accelerator or SIMD
// backend later.
//
// Per timestep the kernel receives the interleaved {sum, norm} and
// {current, leaving} arrays (2*numSeries each) and returns one score per
// evaluated pair, each carrying its pair identity. Scores need not be in any
// order and may be a pre-filtered candidate set; the selector re-ranks them.
type CorrelationKernel interface {
	// Name identifies the kernel in logs and metrics
	Name() string

	// Correlate evaluates one timestep, reusing out's storage when possible.
	// Stateful kernels require timesteps in ascending order starting at 0.
	Correlate(ctx context.Context, step *correlation.PreparedStep, out *correlation.StepScores) (*correlation.StepScores, error)
}
