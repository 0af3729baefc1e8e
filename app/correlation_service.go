package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gocorr/adapters/stats/kernel"
	"gocorr/adapters/stats/layout"
	"gocorr/adapters/stats/topk"
	"gocorr/adapters/stats/window"
	"gocorr/domain/core"
	"gocorr/domain/correlation"
	"gocorr/internal/errors"
	"gocorr/internal/metrics"
	"gocorr/internal/profiling"
	"gocorr/ports"
)

// ServiceOptions configures optional behavior of a CorrelationService
type ServiceOptions struct {
	// Profile attaches a score summary to every step and p-values to top entries
	Profile bool
	// Repository, when set, receives every successful run
	Repository ports.ResultRepository
}

// CorrelationService drives the prepare and compute stages over a matrix and
// collects the ranked pairs of every timestep.
type CorrelationService struct {
	logger  zerolog.Logger
	metrics *metrics.Registry
	opts    ServiceOptions
}

// NewCorrelationService creates a correlation service. metrics may be nil.
func NewCorrelationService(logger zerolog.Logger, m *metrics.Registry, opts ServiceOptions) *CorrelationService {
	return &CorrelationService{
		logger:  logger.With().Str("component", "correlation").Logger(),
		metrics: m,
		opts:    opts,
	}
}

// Run ranks the top pairs of every timestep in [0, params.Timesteps). A
// configuration error returns before any computation; cancellation discards
// the partial output.
func (s *CorrelationService) Run(ctx context.Context, matrix *correlation.Matrix, params correlation.Params) (*correlation.RunResult, error) {
	params = params.Resolve(matrix.SizeSeries())
	if err := params.Validate(matrix.NumSeries(), matrix.SizeSeries()); err != nil {
		return nil, err
	}

	kern, err := kernel.New(params.Mode, matrix, params.Workers)
	if err != nil {
		return nil, err
	}

	result := &correlation.RunResult{
		RunID:      core.NewRunID(),
		Params:     params,
		NumSeries:  matrix.NumSeries(),
		SizeSeries: matrix.SizeSeries(),
		StartedAt:  core.Now(),
	}
	log := s.logger.With().Str("run_id", result.RunID.String()).Logger()
	log.Info().
		Int("num_series", result.NumSeries).
		Int("size_series", result.SizeSeries).
		Int("window", params.Window).
		Int("timesteps", params.Timesteps).
		Int("top_k", params.TopK).
		Str("mode", string(params.Mode)).
		Int("workers", params.Workers).
		Bool("pipelined", params.Pipelined).
		Msg("Correlation run started")

	finish := s.metrics.RunStarted(string(params.Mode))
	start := time.Now()

	ranker := s.newRanker(kern, params, log)
	stage := layout.NewStage(window.NewEngine(matrix, params.Window))
	if params.Pipelined {
		result.Steps, err = s.runPipelined(ctx, stage, ranker, params.Timesteps)
	} else {
		result.Steps, err = s.runSerial(ctx, stage, ranker, params.Timesteps)
	}
	if err != nil {
		finish(resultLabel(err))
		return nil, err
	}

	result.Duration = time.Since(start)
	result.Fingerprint = result.ComputeFingerprint()
	finish("ok")

	log.Info().
		Dur("duration", result.Duration).
		Str("fingerprint", result.Fingerprint.String()).
		Msg("Correlation run finished")

	if s.opts.Repository != nil {
		if err := s.opts.Repository.SaveRun(ctx, result); err != nil {
			return nil, errors.Wrap(err, "failed to persist run")
		}
	}
	return result, nil
}

// Consume runs the compute stage over a run that was prepared elsewhere
func (s *CorrelationService) Consume(ctx context.Context, prepared *layout.Prepared, kern ports.CorrelationKernel, topK int) ([]correlation.StepResult, error) {
	if topK < 0 {
		return nil, core.ErrNegativeTopK
	}
	params := correlation.Params{Window: prepared.Window, TopK: topK, Mode: correlation.Mode(kern.Name())}
	ranker := s.newRanker(kern, params, s.logger)

	steps := make([]correlation.StepResult, 0, prepared.NumTimesteps)
	for t := 0; t < prepared.NumTimesteps; t++ {
		if err := ctx.Err(); err != nil {
			return nil, core.NewCancelledError(t, err)
		}
		res, err := ranker.rank(ctx, prepared.Step(t))
		if err != nil {
			return nil, err
		}
		steps = append(steps, res)
	}
	return steps, nil
}

// FullCorrelations returns the complete packed score vector of the last
// timestep with the window spanning the whole series, so every pair is
// correlated over all of its samples.
func (s *CorrelationService) FullCorrelations(ctx context.Context, matrix *correlation.Matrix, mode correlation.Mode, workers int) (*correlation.StepScores, error) {
	params := correlation.Params{
		Window:  matrix.SizeSeries(),
		Mode:    mode,
		Workers: workers,
	}.Resolve(matrix.SizeSeries())
	if err := params.Validate(matrix.NumSeries(), matrix.SizeSeries()); err != nil {
		return nil, err
	}

	kern, err := kernel.New(params.Mode, matrix, params.Workers)
	if err != nil {
		return nil, err
	}

	stage := layout.NewStage(window.NewEngine(matrix, params.Window))
	step := layout.NewStep(matrix.NumSeries(), params.Window)
	var scores *correlation.StepScores
	for t := 0; t < params.Timesteps; t++ {
		if err := ctx.Err(); err != nil {
			return nil, core.NewCancelledError(t, err)
		}
		stage.Next(step)
		// stateless kernels only need the last step
		if params.Mode == correlation.ModeStateless && t < params.Timesteps-1 {
			continue
		}
		scores, err = kern.Correlate(ctx, step, scores)
		if err != nil {
			return nil, kernelError(kern, t, ctx, err)
		}
	}
	return scores, nil
}

func (s *CorrelationService) runSerial(ctx context.Context, stage *layout.Stage, r *ranker, numTimesteps int) ([]correlation.StepResult, error) {
	steps := make([]correlation.StepResult, 0, numTimesteps)
	step := layout.NewStep(stage.NumSeries(), r.window)
	for t := 0; t < numTimesteps; t++ {
		if err := ctx.Err(); err != nil {
			return nil, core.NewCancelledError(t, err)
		}
		timer := s.metrics.StartStageTimer(metrics.StageLayout)
		stage.Next(step)
		timer.Stop()

		res, err := r.rank(ctx, step)
		if err != nil {
			return nil, err
		}
		steps = append(steps, res)
	}
	return steps, nil
}

func kernelError(kern ports.CorrelationKernel, t int, ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return core.NewCancelledError(t, ctx.Err())
	}
	return errors.KernelFailure(kern.Name(), t, err)
}

func resultLabel(err error) string {
	switch errors.GetCode(err) {
	case errors.CodeCancelled:
		return "cancelled"
	case errors.CodeConfigInvalid, errors.CodeInvalidInput:
		return "invalid"
	}
	return "error"
}

// ranker turns one prepared step into a ranked StepResult. It owns the score
// buffer and selector, so it serves a single consumer.
type ranker struct {
	kernel   ports.CorrelationKernel
	selector *topk.Selector
	analyzer *profiling.DistributionAnalyzer
	scores   *correlation.StepScores
	window   int
	mode     string
	metrics  *metrics.Registry
	logger   zerolog.Logger
}

func (s *CorrelationService) newRanker(kern ports.CorrelationKernel, params correlation.Params, log zerolog.Logger) *ranker {
	r := &ranker{
		kernel:   kern,
		selector: topk.NewSelector(params.TopK),
		window:   params.Window,
		mode:     string(params.Mode),
		metrics:  s.metrics,
		logger:   log,
	}
	if s.opts.Profile {
		r.analyzer = profiling.NewDistributionAnalyzer()
	}
	return r
}

func (r *ranker) rank(ctx context.Context, step *correlation.PreparedStep) (correlation.StepResult, error) {
	timer := r.metrics.StartStageTimer(metrics.StageKernel)
	scores, err := r.kernel.Correlate(ctx, step, r.scores)
	timer.Stop()
	if err != nil {
		return correlation.StepResult{}, kernelError(r.kernel, step.Timestep, ctx, err)
	}
	r.scores = scores

	timer = r.metrics.StartStageTimer(metrics.StageTopK)
	sel := r.selector.Select(scores.Scores)
	timer.Stop()

	res := correlation.StepResult{
		Timestep:   step.Timestep,
		Top:        sel.Top,
		Evaluated:  sel.Evaluated,
		Degenerate: sel.Degenerate,
	}
	if r.analyzer != nil {
		summary, err := r.analyzer.Summarize(scores.Scores)
		if err != nil {
			return correlation.StepResult{}, fmt.Errorf("failed to summarize timestep %d: %w", step.Timestep, err)
		}
		res.Summary = summary
		profiling.Annotate(res.Top, r.window)
	}

	r.metrics.RecordStep(r.mode, sel.Evaluated, sel.Degenerate)
	if e := r.logger.Debug(); e.Enabled() {
		top := 0.0
		if len(res.Top) > 0 {
			top = res.Top[0].Value
		}
		e.Int("timestep", step.Timestep).
			Int("degenerate", sel.Degenerate).
			Float64("top_value", top).
			Msg("Timestep ranked")
	}
	return res, nil
}
