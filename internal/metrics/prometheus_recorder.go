package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	decisions       *prom.CounterVec
	unitOutcomes    *prom.CounterVec
	failureReasons  *prom.CounterVec
	buildDuration   *prom.HistogramVec
	stageDuration   *prom.HistogramVec
	retries         *prom.CounterVec
	unitsConfigured prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.decisions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pkgforge",
			Name:      "decisions_total",
			Help:      "Change-detection decisions by kind",
		}, []string{"decision"})
		pr.unitOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pkgforge",
			Name:      "unit_outcomes_total",
			Help:      "Per-unit run outcomes",
		}, []string{"outcome"})
		pr.failureReasons = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pkgforge",
			Name:      "unit_failures_total",
			Help:      "Failed units by failure classification",
		}, []string{"reason"})
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pkgforge",
			Name:      "build_duration_seconds",
			Help:      "Wall-clock build time per unit",
			Buckets:   prom.ExponentialBuckets(1, 4, 10),
		}, []string{"unit"})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pkgforge",
			Name:      "stage_duration_seconds",
			Help:      "Run-level stage timings",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.retries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pkgforge",
			Name:      "retries_total",
			Help:      "Retry attempts by operation",
		}, []string{"op"})
		pr.unitsConfigured = prom.NewGauge(prom.GaugeOpts{
			Namespace: "pkgforge",
			Name:      "units_configured",
			Help:      "Build units declared by the active configuration",
		})
		reg.MustRegister(pr.decisions, pr.unitOutcomes, pr.failureReasons,
			pr.buildDuration, pr.stageDuration, pr.retries, pr.unitsConfigured)
	})
	return pr
}

func (p *PrometheusRecorder) IncDecision(decision string) {
	if p == nil || p.decisions == nil {
		return
	}
	p.decisions.WithLabelValues(decision).Inc()
}

func (p *PrometheusRecorder) IncUnitOutcome(outcome OutcomeLabel) {
	if p == nil || p.unitOutcomes == nil {
		return
	}
	p.unitOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncFailureReason(reason string) {
	if p == nil || p.failureReasons == nil {
		return
	}
	p.failureReasons.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(unit string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(unit).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRetry(op string) {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) SetUnitsConfigured(n int) {
	if p == nil || p.unitsConfigured == nil {
		return
	}
	p.unitsConfigured.Set(float64(n))
}
