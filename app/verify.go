package app

import (
	"context"
	"math"

	"gocorr/adapters/stats/kernel"
	"gocorr/adapters/stats/layout"
	"gocorr/adapters/stats/topk"
	"gocorr/adapters/stats/window"
	"gocorr/domain/core"
	"gocorr/domain/correlation"
)

// VerifyReport compares an incremental kernel against direct summation
type VerifyReport struct {
	Mode      correlation.Mode `json:"mode"`
	Timesteps int              `json:"timesteps"`
	Pairs     uint64           `json:"pairs"`

	MaxDeviation  float64 `json:"max_deviation"`
	WorstTimestep int     `json:"worst_timestep"`
	WorstIndex    uint64  `json:"worst_pair_index"`

	// StatusMismatches counts pairs flagged degenerate by exactly one kernel
	StatusMismatches int `json:"status_mismatches"`
	// TopMismatches counts timesteps whose ranked pair indices differ
	TopMismatches int `json:"top_mismatches"`
}

// Within reports whether every compared score agreed to tol
func (r *VerifyReport) Within(tol float64) bool {
	return r.StatusMismatches == 0 && r.MaxDeviation <= tol
}

// Verify re-runs the configured timesteps with the reference kernel next to
// the configured one, feeding both the same prepared steps.
func (s *CorrelationService) Verify(ctx context.Context, matrix *correlation.Matrix, params correlation.Params) (*VerifyReport, error) {
	params = params.Resolve(matrix.SizeSeries())
	if err := params.Validate(matrix.NumSeries(), matrix.SizeSeries()); err != nil {
		return nil, err
	}

	kern, err := kernel.New(params.Mode, matrix, params.Workers)
	if err != nil {
		return nil, err
	}
	ref := kernel.NewReferenceKernel(matrix, params.Workers)

	report := &VerifyReport{
		Mode:      params.Mode,
		Timesteps: params.Timesteps,
		Pairs:     correlation.NumPairs(matrix.NumSeries()),
	}

	stage := layout.NewStage(window.NewEngine(matrix, params.Window))
	step := layout.NewStep(matrix.NumSeries(), params.Window)
	gotSel, wantSel := topk.NewSelector(params.TopK), topk.NewSelector(params.TopK)
	var got, want *correlation.StepScores

	for t := 0; t < params.Timesteps; t++ {
		if err := ctx.Err(); err != nil {
			return nil, core.NewCancelledError(t, err)
		}
		stage.Next(step)

		if got, err = kern.Correlate(ctx, step, got); err != nil {
			return nil, kernelError(kern, t, ctx, err)
		}
		if want, err = ref.Correlate(ctx, step, want); err != nil {
			return nil, kernelError(ref, t, ctx, err)
		}

		for idx := range got.Scores {
			g, w := got.Scores[idx], want.Scores[idx]
			if g.Status != w.Status {
				report.StatusMismatches++
				continue
			}
			if g.Status != correlation.StatusValid {
				continue
			}
			if d := math.Abs(g.Value - w.Value); d > report.MaxDeviation {
				report.MaxDeviation = d
				report.WorstTimestep = t
				report.WorstIndex = uint64(idx)
			}
		}

		if !sameRanking(gotSel.Select(got.Scores).Top, wantSel.Select(want.Scores).Top) {
			report.TopMismatches++
		}
	}

	s.logger.Info().
		Str("mode", string(params.Mode)).
		Float64("max_deviation", report.MaxDeviation).
		Int("status_mismatches", report.StatusMismatches).
		Int("top_mismatches", report.TopMismatches).
		Msg("Verification finished")
	return report, nil
}

func sameRanking(a, b []correlation.TopEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Index != b[i].Index {
			return false
		}
	}
	return true
}
