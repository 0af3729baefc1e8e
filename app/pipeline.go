package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gocorr/adapters/stats/layout"
	"gocorr/domain/core"
	"gocorr/domain/correlation"
	"gocorr/internal/metrics"
)

// runPipelined overlaps the prepare stage of timestep t+1 with the compute
// stage of timestep t. Two step buffers circulate between the producer and the
// consumer; the consumer returns a buffer only after it has ranked it, so the
// producer never overwrites a step that is still being read. Timesteps are
// consumed strictly in order.
func (s *CorrelationService) runPipelined(ctx context.Context, stage *layout.Stage, r *ranker, numTimesteps int) ([]correlation.StepResult, error) {
	const buffers = 2
	free := make(chan *correlation.PreparedStep, buffers)
	for i := 0; i < buffers; i++ {
		free <- layout.NewStep(stage.NumSeries(), stage.Window())
	}
	ready := make(chan *correlation.PreparedStep, 1)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(ready)
		for t := 0; t < numTimesteps; t++ {
			var buf *correlation.PreparedStep
			select {
			case <-gctx.Done():
				return gctx.Err()
			case buf = <-free:
			}

			timer := s.metrics.StartStageTimer(metrics.StageLayout)
			stage.Next(buf)
			timer.Stop()

			select {
			case <-gctx.Done():
				return gctx.Err()
			case ready <- buf:
			}
		}
		return nil
	})

	steps := make([]correlation.StepResult, 0, numTimesteps)
	g.Go(func() error {
		for step := range ready {
			res, err := r.rank(gctx, step)
			if err != nil {
				return err
			}
			steps = append(steps, res)
			free <- step
		}
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil, core.NewCancelledError(len(steps), ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	return steps, nil
}
