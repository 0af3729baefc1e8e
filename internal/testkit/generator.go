package testkit

import (
	"math"
	"math/rand"
)

// SeriesPattern selects the shape of generated series
type SeriesPattern string

const (
	PatternUniform SeriesPattern = "uniform"
	PatternWalks   SeriesPattern = "walks"
)

// SeriesGeneratorConfig configures the series generator
type SeriesGeneratorConfig struct {
	NumSeries  int           `json:"num_series"`
	SizeSeries int           `json:"size_series"`
	Pattern    SeriesPattern `json:"pattern"`
	Groups     int           `json:"groups"` // walks only: series per shared driver
	Noise      float64       `json:"noise"`  // walks only: idiosyncratic step scale
	Seed       int64         `json:"seed"`
}

// DefaultSeriesConfig mirrors the benchmark shape of the accelerated runs
func DefaultSeriesConfig() SeriesGeneratorConfig {
	return SeriesGeneratorConfig{
		NumSeries:  100,
		SizeSeries: 500,
		Pattern:    PatternUniform,
		Groups:     4,
		Noise:      0.25,
		Seed:       42,
	}
}

// Generator produces deterministic input matrices
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate builds a matrix according to cfg; cfg.Seed decides every value
func Generate(cfg SeriesGeneratorConfig) [][]float64 {
	g := NewGenerator(cfg.Seed)
	if cfg.Pattern == PatternWalks {
		return g.CorrelatedWalks(cfg.NumSeries, cfg.SizeSeries, cfg.Groups, cfg.Noise)
	}
	return g.Uniform(cfg.NumSeries, cfg.SizeSeries)
}

// Uniform fills numSeries rows of sizeSeries samples drawn from [0,1)
func (g *Generator) Uniform(numSeries, sizeSeries int) [][]float64 {
	rows := make([][]float64, numSeries)
	for i := range rows {
		rows[i] = make([]float64, sizeSeries)
		for t := range rows[i] {
			rows[i][t] = g.rng.Float64()
		}
	}
	return rows
}

// CorrelatedWalks produces random walks where each block of groupSize
// consecutive series follows a shared driver plus its own noise, so pairs
// inside a block correlate strongly and pairs across blocks weakly.
func (g *Generator) CorrelatedWalks(numSeries, sizeSeries, groupSize int, noise float64) [][]float64 {
	if groupSize < 1 {
		groupSize = 1
	}
	numGroups := (numSeries + groupSize - 1) / groupSize
	drivers := make([][]float64, numGroups)
	for k := range drivers {
		drivers[k] = make([]float64, sizeSeries)
		level := 0.0
		for t := range drivers[k] {
			level += g.rng.NormFloat64()
			drivers[k][t] = level
		}
	}

	rows := make([][]float64, numSeries)
	for i := range rows {
		driver := drivers[i/groupSize]
		rows[i] = make([]float64, sizeSeries)
		offset := 0.0
		for t := range rows[i] {
			offset += noise * g.rng.NormFloat64()
			rows[i][t] = driver[t] + offset
		}
	}
	return rows
}

// Constant returns a row of sizeSeries copies of v
func Constant(sizeSeries int, v float64) []float64 {
	row := make([]float64, sizeSeries)
	for t := range row {
		row[t] = v
	}
	return row
}

// Affine returns a*x+b elementwise
func Affine(x []float64, a, b float64) []float64 {
	out := make([]float64, len(x))
	for t, v := range x {
		out[t] = a*v + b
	}
	return out
}

// Sine returns a sampled sine wave, handy for anti-correlated fixtures
func Sine(sizeSeries int, period, phase float64) []float64 {
	row := make([]float64, sizeSeries)
	for t := range row {
		row[t] = math.Sin(2*math.Pi*float64(t)/period + phase)
	}
	return row
}
