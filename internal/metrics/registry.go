// Package metrics exposes Prometheus collectors for correlation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage labels used with StartStageTimer
const (
	StageEngine = "engine"
	StageLayout = "layout"
	StageKernel = "kernel"
	StageTopK   = "topk"
)

// Registry holds all Prometheus metrics for correlation runs. A nil *Registry
// is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	StageDuration   *prometheus.HistogramVec
	Timesteps       *prometheus.CounterVec
	PairsEvaluated  prometheus.Counter
	DegeneratePairs prometheus.Counter
	Runs            *prometheus.CounterVec
	ActiveRuns      prometheus.Gauge
}

// NewRegistry creates a registry with every collector registered on a private
// prometheus.Registry, so several instances can coexist in one process.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gocorr_stage_duration_seconds",
				Help:    "Duration of one pipeline stage for one timestep",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"stage"},
		),

		Timesteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gocorr_timesteps_total",
				Help: "Total number of timesteps ranked by kernel mode",
			},
			[]string{"mode"},
		),

		PairsEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gocorr_pairs_evaluated_total",
				Help: "Total number of pair scores produced",
			},
		),

		DegeneratePairs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gocorr_degenerate_pairs_total",
				Help: "Total number of pairs excluded for zero variance",
			},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gocorr_runs_total",
				Help: "Total number of runs by mode and result",
			},
			[]string{"mode", "result"},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gocorr_active_runs",
				Help: "Number of runs currently executing",
			},
		),
	}

	r.registry.MustRegister(
		r.StageDuration,
		r.Timesteps,
		r.PairsEvaluated,
		r.DegeneratePairs,
		r.Runs,
		r.ActiveRuns,
	)
	return r
}

// Gatherer exposes the underlying registry
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StageTimer tracks execution time for one stage
type StageTimer struct {
	metrics *Registry
	stage   string
	start   time.Time
}

// StartStageTimer begins timing a pipeline stage
func (m *Registry) StartStageTimer(stage string) *StageTimer {
	return &StageTimer{metrics: m, stage: stage, start: time.Now()}
}

// Stop records the elapsed time
func (st *StageTimer) Stop() {
	if st.metrics == nil {
		return
	}
	st.metrics.StageDuration.WithLabelValues(st.stage).Observe(time.Since(st.start).Seconds())
}

// RecordStep counts one ranked timestep
func (m *Registry) RecordStep(mode string, evaluated, degenerate int) {
	if m == nil {
		return
	}
	m.Timesteps.WithLabelValues(mode).Inc()
	m.PairsEvaluated.Add(float64(evaluated))
	m.DegeneratePairs.Add(float64(degenerate))
}

// RunStarted marks a run as active and returns the function that finishes it
func (m *Registry) RunStarted(mode string) func(result string) {
	if m == nil {
		return func(string) {}
	}
	m.ActiveRuns.Inc()
	return func(result string) {
		m.ActiveRuns.Dec()
		m.Runs.WithLabelValues(mode, result).Inc()
	}
}
