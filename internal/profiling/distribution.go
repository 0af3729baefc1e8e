// Package profiling summarizes the score distribution of a timestep and
// attaches significance to ranked pairs.
package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"gocorr/domain/correlation"
)

// DistributionAnalyzer handles score distribution analysis
type DistributionAnalyzer struct {
	values []float64
}

// NewDistributionAnalyzer creates a new distribution analyzer
func NewDistributionAnalyzer() *DistributionAnalyzer {
	return &DistributionAnalyzer{}
}

// Summarize describes the valid scores of one timestep. It returns nil when no
// pair produced a value.
func (da *DistributionAnalyzer) Summarize(scores []correlation.PairScore) (*correlation.ScoreSummary, error) {
	da.values = da.values[:0]
	for _, sc := range scores {
		if sc.Status == correlation.StatusValid {
			da.values = append(da.values, sc.Value)
		}
	}
	if len(da.values) == 0 {
		return nil, nil
	}
	return summarize(da.values)
}

func summarize(data []float64) (*correlation.ScoreSummary, error) {
	mean, err := stats.Mean(data)
	if err != nil {
		return nil, err
	}

	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return nil, err
	}

	min, err := stats.Min(data)
	if err != nil {
		return nil, err
	}

	max, err := stats.Max(data)
	if err != nil {
		return nil, err
	}

	median, err := stats.Median(data)
	if err != nil {
		return nil, err
	}

	q25, err := stats.Percentile(data, 25)
	if err != nil {
		return nil, err
	}

	q75, err := stats.Percentile(data, 75)
	if err != nil {
		return nil, err
	}

	return &correlation.ScoreSummary{
		Count:    len(data),
		Mean:     mean,
		StdDev:   stdDev,
		Min:      min,
		Max:      max,
		Median:   median,
		Q25:      q25,
		Q75:      q75,
		Outliers: detectOutliers(data, q25, q75),
	}, nil
}

// detectOutliers identifies outliers using IQR method
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}

	return outlierCount
}

// PValue is the two-sided significance of a Pearson coefficient r computed
// over window samples, using the t statistic with window-2 degrees of freedom.
// ok is false when the window is too short for the test.
func PValue(r float64, window int) (p float64, ok bool) {
	if window < 3 || math.IsNaN(r) {
		return 0, false
	}
	abs := math.Abs(r)
	if abs >= 1 {
		return 0, true
	}
	df := float64(window - 2)
	t := abs * math.Sqrt(df/(1-abs*abs))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(t)), true
}

// Annotate fills the p-value of every ranked entry in place
func Annotate(top []correlation.TopEntry, window int) {
	for i := range top {
		if p, ok := PValue(top[i].Value, window); ok {
			top[i].PValue = &p
		}
	}
}
