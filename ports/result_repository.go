package ports

import (
	"context"

	"gocorr/domain/core"
	"gocorr/domain/correlation"
)

// ResultRepository persists ranked pipeline output
type ResultRepository interface {
	SaveRun(ctx context.Context, result *correlation.RunResult) error
	// GetStep returns a stored timestep with its counts and ranking
	GetStep(ctx context.Context, runID core.RunID, timestep int) (*correlation.StepResult, error)
	ListTimesteps(ctx context.Context, runID core.RunID) ([]int, error)
}
