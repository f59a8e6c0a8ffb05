// Package metrics provides observability hooks for pipeline runs. The default
// NoopRecorder keeps metrics optional: components take a Recorder and callers
// inject the Prometheus implementation only when the daemon exposes it.
package metrics

import "time"

// OutcomeLabel enumerates how a unit's run ended.
type OutcomeLabel string

const (
	OutcomeSkipped OutcomeLabel = "skipped"
	// OutcomeBuilt is interim: a unit holds it between a successful build and
	// the publish step, which settles it to published or failed.
	OutcomeBuilt     OutcomeLabel = "built"
	OutcomePublished OutcomeLabel = "published"
	OutcomeFailed    OutcomeLabel = "failed"
)

// Recorder defines the observability hooks the pipeline emits. All methods
// must be safe on a nil or zero receiver so injection stays optional.
type Recorder interface {
	// IncDecision counts change-detection decisions by kind (skip|build).
	IncDecision(decision string)
	// IncUnitOutcome counts per-unit run outcomes.
	IncUnitOutcome(outcome OutcomeLabel)
	// IncFailureReason counts failed units by failure classification.
	IncFailureReason(reason string)
	// ObserveBuildDuration records one unit's wall-clock build time.
	ObserveBuildDuration(unit string, d time.Duration)
	// ObserveStageDuration records run-level stage timings (snapshot, publish, run).
	ObserveStageDuration(stage string, d time.Duration)
	// IncRetry counts retry attempts by operation label.
	IncRetry(op string)
	// SetUnitsConfigured reports how many units the current config declares.
	SetUnitsConfigured(n int)
}

// NoopRecorder is the default Recorder: it does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncDecision(string)                         {}
func (NoopRecorder) IncUnitOutcome(OutcomeLabel)                {}
func (NoopRecorder) IncFailureReason(string)                    {}
func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncRetry(string)                            {}
func (NoopRecorder) SetUnitsConfigured(int)                     {}
