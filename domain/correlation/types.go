package correlation

import (
	"math"
	"time"

	"gocorr/domain/core"
)

// SeriesStats is the rolling state of one series at one timestep
type SeriesStats struct {
	Sum        float64 `json:"sum"`
	SumSq      float64 `json:"sum_sq"`
	Norm       float64 `json:"norm"` // 1/sqrt(W*SumSq - Sum^2), never clamped
	Degenerate bool    `json:"degenerate"`
}

// Radicand returns W*SumSq - Sum^2
func (s SeriesStats) Radicand(window int) float64 {
	return float64(window)*s.SumSq - s.Sum*s.Sum
}

// IsDegenerate reports whether a window with these sums has a radicand that
// is non-positive or within rounding error of zero, which leaves its
// normalization factor undefined. The slack grows with the rounding error of
// W*sumSq, not with the data's offset, so a large mean with real variance is
// still valid.
func IsDegenerate(sum, sumSq float64, window int) bool {
	w := float64(window)
	scale := w * sumSq
	radicand := scale - sum*sum
	if math.IsNaN(radicand) || math.IsInf(radicand, 0) {
		return true
	}
	return radicand <= DegeneracyTolerance*w*scale
}

// Record is the interleaved per-(series, timestep) unit handed to a kernel
type Record struct {
	Sum        float64
	Norm       float64
	Current    float64
	Leaving    float64
	Degenerate bool
}

// PreparedStep is one timestep of layout output. Precalc holds {sum, norm} and
// Pairs holds {current, leaving} for every series, interleaved at offset 2*i.
type PreparedStep struct {
	Timestep   int
	NumSeries  int
	Window     int
	Precalc    []float64
	Pairs      []float64
	Degenerate []bool
}

// Record returns series i of the step
func (p *PreparedStep) Record(i int) Record {
	return Record{
		Sum:        p.Precalc[2*i],
		Norm:       p.Precalc[2*i+1],
		Current:    p.Pairs[2*i],
		Leaving:    p.Pairs[2*i+1],
		Degenerate: p.Degenerate[i],
	}
}

// PairStatus tags whether a pair's correlation is defined
type PairStatus uint8

const (
	StatusValid PairStatus = iota
	// StatusDegenerate marks a pair where at least one window has zero variance
	StatusDegenerate
)

func (s PairStatus) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusDegenerate:
		return "degenerate"
	default:
		return "unknown"
	}
}

// PairScore is one evaluated pair. A > B and Index == PackIndex(A, B).
type PairScore struct {
	Index  uint64
	A      int32
	B      int32
	Value  float64
	Status PairStatus
}

// StepScores is the unranked kernel output for one timestep. Scores may be the
// full packed vector or any concatenation of candidate sets.
type StepScores struct {
	Timestep int
	Scores   []PairScore
}

// TopEntry is one ranked pair of a timestep
type TopEntry struct {
	Value  float64 `json:"value"`
	A      int     `json:"series_a"`
	B      int     `json:"series_b"`
	Index  uint64  `json:"pair_index"`
	PValue *float64 `json:"p_value,omitempty"` // nil when not computed
}

// StepResult is the ranked output of one timestep
type StepResult struct {
	Timestep   int           `json:"timestep"`
	Top        []TopEntry    `json:"top"`
	Evaluated  int           `json:"evaluated"`
	Degenerate int           `json:"degenerate"`
	Summary    *ScoreSummary `json:"summary,omitempty"`
}

// ScoreSummary describes the distribution of a timestep's valid correlations
type ScoreSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
	// Outliers counts scores outside 1.5 IQR of the quartiles
	Outliers int `json:"outliers"`
}

// RunResult is the complete output of one pipeline run
type RunResult struct {
	RunID       core.RunID     `json:"run_id"`
	Params      Params         `json:"params"`
	NumSeries   int            `json:"num_series"`
	SizeSeries  int            `json:"size_series"`
	Steps       []StepResult   `json:"steps"`
	Fingerprint core.Hash      `json:"fingerprint"`
	StartedAt   core.Timestamp `json:"started_at"`
	Duration    time.Duration  `json:"duration_ns"`
}

// ComputeFingerprint digests the ranked output so identical runs compare equal
func (r *RunResult) ComputeFingerprint() core.Hash {
	fp := core.NewFingerprinter()
	fp.Int(r.NumSeries)
	fp.Int(r.SizeSeries)
	fp.Int(r.Params.Window)
	for _, step := range r.Steps {
		fp.Int(step.Timestep)
		fp.Int(step.Degenerate)
		fp.Int(len(step.Top))
		for _, e := range step.Top {
			fp.Float64(e.Value)
			fp.Uint64(e.Index)
		}
	}
	return fp.Sum()
}
