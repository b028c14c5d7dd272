// Package metrics exposes Prometheus collectors for the capture pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "workflow_capture"

// Metrics groups the pipeline collectors.
type Metrics struct {
	runs               *prometheus.CounterVec
	steps              *prometheus.CounterVec
	screenshotFailures prometheus.Counter
	judgements         *prometheus.CounterVec
	persistFailures    prometheus.Counter
	runDuration        *prometheus.HistogramVec
	activeRuns         prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished capture runs by app and terminal status.",
		}, []string{"app", "status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Recorded agent steps by app.",
		}, []string{"app"}),
		screenshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenshot_failures_total",
			Help:      "Screenshots that could not be written.",
		}),
		judgements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judgements_total",
			Help:      "Judge evaluations by outcome (pass, fail, unavailable).",
		}, []string{"outcome"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Workflow documents that could not be written.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of capture runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"app"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Capture runs currently in progress.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.runs,
			m.steps,
			m.screenshotFailures,
			m.judgements,
			m.persistFailures,
			m.runDuration,
			m.activeRuns,
		)
	}
	return m
}

// RunStarted increments the active run gauge.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunFinished records a terminal run.
func (m *Metrics) RunFinished(app, status string, seconds float64) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runs.WithLabelValues(app, status).Inc()
	m.runDuration.WithLabelValues(app).Observe(seconds)
}

// StepRecorded counts one recorded step.
func (m *Metrics) StepRecorded(app string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(app).Inc()
}

// ScreenshotFailed counts one failed screenshot write.
func (m *Metrics) ScreenshotFailed() {
	if m == nil {
		return
	}
	m.screenshotFailures.Inc()
}

// Judged counts one judge evaluation.
func (m *Metrics) Judged(outcome string) {
	if m == nil {
		return
	}
	m.judgements.WithLabelValues(outcome).Inc()
}

// PersistFailed counts one failed workflow write.
func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}
