package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncDecision("skip")
	rec.IncDecision("skip")
	rec.IncDecision("build")
	rec.IncUnitOutcome(OutcomePublished)
	rec.IncFailureReason("timeout")
	rec.IncRetry("artifact upload")
	rec.SetUnitsConfigured(7)

	assert.Equal(t, float64(2), testutil.ToFloat64(rec.decisions.WithLabelValues("skip")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.decisions.WithLabelValues("build")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.unitOutcomes.WithLabelValues("published")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.failureReasons.WithLabelValues("timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.retries.WithLabelValues("artifact upload")))
	assert.Equal(t, float64(7), testutil.ToFloat64(rec.unitsConfigured))
}

func TestPrometheusRecorderHistograms(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveBuildDuration("picom", 3*time.Second)
	rec.ObserveStageDuration("publish", 500*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["pkgforge_build_duration_seconds"])
	assert.True(t, names["pkgforge_stage_duration_seconds"])
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *PrometheusRecorder
	rec.IncDecision("skip")
	rec.IncUnitOutcome(OutcomeFailed)
	rec.ObserveBuildDuration("x", time.Second)
	rec.SetUnitsConfigured(1)
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = &PrometheusRecorder{}
}
