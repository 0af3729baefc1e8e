package app

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"gocorr/adapters/stats/kernel"
	"gocorr/adapters/stats/layout"
	"gocorr/domain/core"
	"gocorr/domain/correlation"
	apperrors "gocorr/internal/errors"
	"gocorr/internal/metrics"
	"gocorr/internal/testkit"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) SaveRun(ctx context.Context, result *correlation.RunResult) error {
	return m.Called(ctx, result).Error(0)
}

func (m *mockRepository) GetStep(ctx context.Context, runID core.RunID, timestep int) (*correlation.StepResult, error) {
	args := m.Called(ctx, runID, timestep)
	step, _ := args.Get(0).(*correlation.StepResult)
	return step, args.Error(1)
}

func (m *mockRepository) ListTimesteps(ctx context.Context, runID core.RunID) ([]int, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]int), args.Error(1)
}

func newService(opts ServiceOptions) *CorrelationService {
	return NewCorrelationService(zerolog.Nop(), metrics.NewRegistry(), opts)
}

func scenarioMatrix(t *testing.T) *correlation.Matrix {
	t.Helper()
	m, err := correlation.NewMatrix([][]float64{
		{1, 2, 3, 4, 5},
		{2, 4, 6, 8, 10},
		{5, 3, 1, -1, 4},
	})
	require.NoError(t, err)
	return m
}

func uniformMatrix(t *testing.T, seed int64, n, size int) *correlation.Matrix {
	t.Helper()
	m, err := correlation.NewMatrix(testkit.NewGenerator(seed).Uniform(n, size))
	require.NoError(t, err)
	return m
}

func indices(top []correlation.TopEntry) []uint64 {
	out := make([]uint64, len(top))
	for i, e := range top {
		out[i] = e.Index
	}
	return out
}

func TestRun_HandComputedScenario(t *testing.T) {
	svc := newService(ServiceOptions{})
	params := correlation.Params{Window: 9, Timesteps: 5, TopK: 10, Workers: 1}

	res, err := svc.Run(context.Background(), scenarioMatrix(t), params)
	require.NoError(t, err)
	require.Len(t, res.Steps, 5)

	want := []float64{1.0, 0.8035304331665313, 0.49613893835683387, 0.04756514941544941, 0.30429030972509225}
	for ts, step := range res.Steps {
		assert.Equal(t, ts, step.Timestep)
		require.Len(t, step.Top, 3, "only three pairs exist")
		assert.Equal(t, 3, step.Evaluated)
		assert.Zero(t, step.Degenerate)
		if ts == 0 {
			assert.ElementsMatch(t, []uint64{0, 1, 2}, indices(step.Top))
			continue
		}
		// pair (2,1) ties pair (2,0) exactly; the lower packed index wins
		assert.Equal(t, []uint64{0, 1, 2}, indices(step.Top), "t=%d", ts)
		assert.InDelta(t, 1.0, step.Top[0].Value, 1e-12)
		assert.InDelta(t, want[ts], step.Top[1].Value, 1e-12)
		assert.Equal(t, step.Top[1].Value, step.Top[2].Value)
		assert.Equal(t, 2, step.Top[2].A)
		assert.Equal(t, 1, step.Top[2].B)
	}
	assert.False(t, res.Fingerprint.IsEmpty())
	assert.False(t, res.RunID.IsEmpty())
}

func TestRun_Idempotent(t *testing.T) {
	svc := newService(ServiceOptions{})
	m := uniformMatrix(t, 21, 25, 40)
	params := correlation.Params{Window: 8, TopK: 5, Workers: 3, Pipelined: true}

	a, err := svc.Run(context.Background(), m, params)
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), m, params)
	require.NoError(t, err)

	assert.Equal(t, a.Steps, b.Steps)
	assert.True(t, a.Fingerprint.Equals(b.Fingerprint))
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRun_PipelinedMatchesSerial(t *testing.T) {
	svc := newService(ServiceOptions{})
	m := uniformMatrix(t, 8, 30, 50)

	for _, mode := range []correlation.Mode{correlation.ModeSequential, correlation.ModeStateless} {
		t.Run(string(mode), func(t *testing.T) {
			serial, err := svc.Run(context.Background(), m, correlation.Params{Window: 12, TopK: 7, Mode: mode, Workers: 2})
			require.NoError(t, err)
			piped, err := svc.Run(context.Background(), m, correlation.Params{Window: 12, TopK: 7, Mode: mode, Workers: 2, Pipelined: true})
			require.NoError(t, err)

			require.Len(t, piped.Steps, 50)
			assert.Equal(t, serial.Steps, piped.Steps)
			assert.Equal(t, serial.Fingerprint, piped.Fingerprint)
		})
	}
}

func TestRun_ModesAgree(t *testing.T) {
	svc := newService(ServiceOptions{})
	m := uniformMatrix(t, 13, 20, 60)

	seq, err := svc.Run(context.Background(), m, correlation.Params{Window: 10, TopK: 4, Mode: correlation.ModeSequential})
	require.NoError(t, err)
	sl, err := svc.Run(context.Background(), m, correlation.Params{Window: 10, TopK: 4, Mode: correlation.ModeStateless})
	require.NoError(t, err)

	require.Len(t, sl.Steps, len(seq.Steps))
	for ts := range seq.Steps {
		assert.Equal(t, seq.Steps[ts].Top, sl.Steps[ts].Top, "t=%d", ts)
	}
}

func TestRun_ConfigurationErrorsProduceNoOutput(t *testing.T) {
	repo := &mockRepository{}
	svc := newService(ServiceOptions{Repository: repo})
	m := scenarioMatrix(t)

	tests := []struct {
		name   string
		params correlation.Params
		target error
	}{
		{"timesteps beyond series", correlation.Params{Window: 9, Timesteps: 6, TopK: 10}, core.ErrTimestepsExceedSeries},
		{"window too small", correlation.Params{Window: 1, TopK: 10}, core.ErrWindowTooSmall},
		{"too many series", correlation.Params{Window: 3, TopK: 1, MaxSeries: 2}, core.ErrTooManySeries},
		{"negative k", correlation.Params{Window: 3, TopK: -1}, core.ErrNegativeTopK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Run(context.Background(), m, tt.params)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, core.IsConfigurationError(err))
		})
	}
	repo.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything)
}

func TestRun_IdenticalSeries(t *testing.T) {
	base := testkit.NewGenerator(3).Uniform(1, 20)[0]
	m, err := correlation.NewMatrix([][]float64{base, base, base})
	require.NoError(t, err)

	res, err := newService(ServiceOptions{}).Run(context.Background(), m, correlation.Params{Window: 4, TopK: 3})
	require.NoError(t, err)

	for ts := 3; ts < 20; ts++ {
		step := res.Steps[ts]
		assert.Equal(t, []uint64{0, 1, 2}, indices(step.Top))
		for _, e := range step.Top {
			assert.InDelta(t, 1.0, e.Value, 1e-12)
		}
	}
}

func TestRun_DegenerateSeriesExcluded(t *testing.T) {
	gen := testkit.NewGenerator(6)
	rows := gen.Uniform(3, 12)
	rows = append(rows, testkit.Constant(12, 0.1))
	m, err := correlation.NewMatrix(rows)
	require.NoError(t, err)

	res, err := newService(ServiceOptions{}).Run(context.Background(), m, correlation.Params{Window: 4, TopK: 10})
	require.NoError(t, err)

	// zero padding gives the constant series variance until its window fills
	for _, step := range res.Steps[3:] {
		assert.Equal(t, 6, step.Evaluated)
		assert.Equal(t, 3, step.Degenerate, "every pair with the constant series")
		assert.Len(t, step.Top, 3)
		for _, e := range step.Top {
			assert.NotEqual(t, 3, e.A)
			assert.False(t, math.IsNaN(e.Value))
		}
	}
}

func TestRun_LargeOffsetSeriesRanked(t *testing.T) {
	m, err := correlation.NewMatrix([][]float64{
		{1e6, 1e6 + 1, 1e6 + 2, 1e6 + 1, 1e6},
		{5, 6, 7, 6, 5},
	})
	require.NoError(t, err)

	res, err := newService(ServiceOptions{}).Run(context.Background(), m, correlation.Params{Window: 3, TopK: 1})
	require.NoError(t, err)

	for _, step := range res.Steps[2:] {
		assert.Equal(t, 0, step.Degenerate, "t=%d", step.Timestep)
		require.Len(t, step.Top, 1, "t=%d", step.Timestep)
		assert.InDelta(t, 1.0, step.Top[0].Value, 1e-9, "t=%d", step.Timestep)
	}
}

func TestRun_ZeroTopK(t *testing.T) {
	res, err := newService(ServiceOptions{}).Run(context.Background(), scenarioMatrix(t), correlation.Params{Window: 3})
	require.NoError(t, err)
	for _, step := range res.Steps {
		assert.Empty(t, step.Top)
		assert.Equal(t, 3, step.Evaluated)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := uniformMatrix(t, 2, 10, 30)
	for _, pipelined := range []bool{false, true} {
		res, err := newService(ServiceOptions{}).Run(ctx, m, correlation.Params{Window: 5, TopK: 3, Pipelined: pipelined})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, core.ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, apperrors.CodeCancelled, apperrors.GetCode(err))
	}
}

func TestRun_ProfileAnnotates(t *testing.T) {
	svc := newService(ServiceOptions{Profile: true})
	res, err := svc.Run(context.Background(), uniformMatrix(t, 4, 8, 20), correlation.Params{Window: 6, TopK: 2})
	require.NoError(t, err)

	last := res.Steps[len(res.Steps)-1]
	require.NotNil(t, last.Summary)
	assert.Equal(t, 28, last.Summary.Count)
	assert.GreaterOrEqual(t, last.Summary.Max, last.Top[0].Value)
	require.NotNil(t, last.Top[0].PValue)
	assert.Greater(t, *last.Top[0].PValue, 0.0)
	assert.Less(t, *last.Top[0].PValue, 1.0)
}

func TestRun_PersistsResult(t *testing.T) {
	repo := &mockRepository{}
	repo.On("SaveRun", mock.Anything, mock.AnythingOfType("*correlation.RunResult")).Return(nil).Once()

	res, err := newService(ServiceOptions{Repository: repo}).Run(context.Background(), scenarioMatrix(t), correlation.Params{Window: 3, TopK: 1})
	require.NoError(t, err)
	require.NotNil(t, res)
	repo.AssertExpectations(t)
}

func TestRun_PersistFailure(t *testing.T) {
	repo := &mockRepository{}
	repo.On("SaveRun", mock.Anything, mock.Anything).Return(apperrors.DatabaseError("insert failed", errors.New("conn reset")))

	res, err := newService(ServiceOptions{Repository: repo}).Run(context.Background(), scenarioMatrix(t), correlation.Params{Window: 3, TopK: 1})
	assert.Nil(t, res)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetCode(err))
}

func TestConsume_MatchesRun(t *testing.T) {
	svc := newService(ServiceOptions{})
	m := uniformMatrix(t, 17, 15, 25)

	run, err := svc.Run(context.Background(), m, correlation.Params{Window: 7, TopK: 6})
	require.NoError(t, err)

	prepared := layout.PrepareAll(m, 7, 25)
	steps, err := svc.Consume(context.Background(), prepared, kernel.NewSequentialKernel(15, 1), 6)
	require.NoError(t, err)
	assert.Equal(t, run.Steps, steps)
}

type cancellingKernel struct {
	inner  *kernel.StatelessKernel
	cancel context.CancelFunc
	after  int
}

func (k *cancellingKernel) Name() string { return "cancelling" }

func (k *cancellingKernel) Correlate(ctx context.Context, step *correlation.PreparedStep, out *correlation.StepScores) (*correlation.StepScores, error) {
	if step.Timestep == k.after {
		k.cancel()
	}
	return k.inner.Correlate(ctx, step, out)
}

func TestConsume_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := uniformMatrix(t, 5, 6, 10)
	k := &cancellingKernel{inner: kernel.NewStatelessKernel(m, 1), cancel: cancel, after: 4}

	steps, err := newService(ServiceOptions{}).Consume(ctx, layout.PrepareAll(m, 3, 10), k, 2)
	assert.Nil(t, steps)
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingKernel struct{}

func (failingKernel) Name() string { return "failing" }

func (failingKernel) Correlate(context.Context, *correlation.PreparedStep, *correlation.StepScores) (*correlation.StepScores, error) {
	return nil, errors.New("device lost")
}

func TestConsume_KernelFailure(t *testing.T) {
	m := uniformMatrix(t, 5, 4, 6)
	_, err := newService(ServiceOptions{}).Consume(context.Background(), layout.PrepareAll(m, 3, 6), failingKernel{}, 2)
	assert.Equal(t, apperrors.CodeKernelFailure, apperrors.GetCode(err))
}

func TestFullCorrelations_MatchesWholeSeriesPearson(t *testing.T) {
	svc := newService(ServiceOptions{})
	m := uniformMatrix(t, 31, 9, 40)

	for _, mode := range []correlation.Mode{correlation.ModeSequential, correlation.ModeStateless} {
		scores, err := svc.FullCorrelations(context.Background(), m, mode, 2)
		require.NoError(t, err)
		require.Len(t, scores.Scores, int(correlation.NumPairs(9)))
		assert.Equal(t, 39, scores.Timestep)

		for _, ps := range scores.Scores {
			want := stat.Correlation(m.Row(int(ps.A)), m.Row(int(ps.B)), nil)
			assert.InDelta(t, want, ps.Value, 1e-9, "mode=%s pair=%d", mode, ps.Index)
		}
	}
}

func TestVerify_IncrementalKernelsMatchReference(t *testing.T) {
	svc := newService(ServiceOptions{})
	m := uniformMatrix(t, 44, 18, 70)

	for _, mode := range []correlation.Mode{correlation.ModeSequential, correlation.ModeStateless} {
		report, err := svc.Verify(context.Background(), m, correlation.Params{Window: 16, TopK: 5, Mode: mode, Workers: 3})
		require.NoError(t, err)
		assert.True(t, report.Within(1e-9), "mode=%s deviation=%g", mode, report.MaxDeviation)
		assert.Equal(t, 70, report.Timesteps)
		assert.Equal(t, uint64(153), report.Pairs)
	}
}
