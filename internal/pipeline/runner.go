// Package pipeline orchestrates one full run: snapshot the remote repository,
// walk the configured units through change detection and build, then publish
// everything that was built. Units are processed sequentially and in
// isolation: one unit's failure never blocks the others, and a publish
// failure marks the built units failed without failing the run itself,
// unless the run is configured to stop on failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/megvadulthangya/manjaro-awesome/internal/builder"
	"github.com/megvadulthangya/manjaro-awesome/internal/config"
	"github.com/megvadulthangya/manjaro-awesome/internal/incremental"
	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
	"github.com/megvadulthangya/manjaro-awesome/internal/metrics"
	"github.com/megvadulthangya/manjaro-awesome/internal/notify"
	"github.com/megvadulthangya/manjaro-awesome/internal/publish"
	"github.com/megvadulthangya/manjaro-awesome/internal/recipe"
	"github.com/megvadulthangya/manjaro-awesome/internal/remote"
	"github.com/megvadulthangya/manjaro-awesome/internal/retry"
	"github.com/megvadulthangya/manjaro-awesome/internal/snapshot"
	"github.com/megvadulthangya/manjaro-awesome/internal/state"
)

// UnitResult is the outcome of one unit within a run.
type UnitResult struct {
	Name    string
	Outcome metrics.OutcomeLabel
	Reason  string
	Err     error

	// bundle carries build output from the unit loop to the publish step.
	bundle *builder.Bundle
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Results   []UnitResult
}

// Names returns the unit names with the given outcome, in run order.
func (s *Summary) Names(outcome metrics.OutcomeLabel) []string {
	var names []string
	for _, r := range s.Results {
		if r.Outcome == outcome {
			names = append(names, r.Name)
		}
	}
	return names
}

// settleBuilt resolves interim built outcomes once the publish step has
// decided their fate. An empty reason keeps each unit's decision reason.
func (s *Summary) settleBuilt(outcome metrics.OutcomeLabel, reason string, err error) {
	for i := range s.Results {
		if s.Results[i].Outcome != metrics.OutcomeBuilt {
			continue
		}
		s.Results[i].Outcome = outcome
		if reason != "" {
			s.Results[i].Reason = reason
			s.Results[i].Err = err
		}
	}
}

// Runner executes pipeline runs against one configuration.
type Runner struct {
	cfg       *config.Config
	transport remote.Transport
	store     *state.Store
	exec      *builder.Executor
	pub       *publish.Publisher
	vcs       *publish.VersionControl
	rec       metrics.Recorder
	notifier  notify.Notifier
}

// New wires a runner with production collaborators. Metrics and notification
// default to no-ops.
func New(cfg *config.Config, transport remote.Transport, store *state.Store) *Runner {
	return &Runner{
		cfg:       cfg,
		transport: transport,
		store:     store,
		exec:      builder.NewExecutor(cfg),
		pub:       publish.New(cfg, transport, store),
		rec:       metrics.NoopRecorder{},
		notifier:  notify.Noop{},
	}
}

// WithExecutor overrides the build executor.
func (r *Runner) WithExecutor(e *builder.Executor) *Runner {
	r.exec = e
	return r
}

// WithRecorder injects a metrics recorder.
func (r *Runner) WithRecorder(rec metrics.Recorder) *Runner {
	r.rec = rec
	r.pub.WithRetryCounter(rec)
	return r
}

// WithNotifier injects a run notifier.
func (r *Runner) WithNotifier(n notify.Notifier) *Runner {
	r.notifier = n
	return r
}

// WithVersionControl enables pushing recipe bumps after a successful publish.
func (r *Runner) WithVersionControl(vc *publish.VersionControl) *Runner {
	r.vcs = vc
	return r
}

// Run executes one full pipeline pass.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	summary := &Summary{RunID: uuid.NewString(), StartedAt: started}
	log := slog.With(logfields.RunID(summary.RunID))

	units, localDirs := r.orderedUnits()
	r.rec.SetUnitsConfigured(len(units))
	log.Info("run started", slog.Int("units", len(units)))

	r.exec.CheckTools()

	snapStart := time.Now()
	snap := snapshot.Fetch(ctx, r.transport, r.cfg.Repo.RemoteDir)
	r.rec.ObserveStageDuration("snapshot", time.Since(snapStart))
	log.Info("remote snapshot taken", slog.Int("artifacts", snap.Len()))

	var bundles []builder.Bundle
	for _, unit := range units {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		res := r.runUnit(ctx, log, unit, snap)
		summary.Results = append(summary.Results, res)
		if res.bundle != nil {
			bundles = append(bundles, *res.bundle)
		}
		if res.Outcome == metrics.OutcomeFailed {
			r.rec.IncFailureReason(res.Reason)
			if r.cfg.Pipeline.StopOnFailure {
				log.Warn("stopping run on first failure", logfields.Unit(unit.Name))
				break
			}
		}
	}

	pubStart := time.Now()
	report, err := r.pub.Publish(ctx, bundles)
	r.rec.ObserveStageDuration("publish", time.Since(pubStart))
	if err != nil {
		summary.settleBuilt(metrics.OutcomeFailed, "publish", err)
		r.rec.IncFailureReason("publish")
		log.Error("publish failed", logfields.Error(err))
		r.finish(ctx, log, summary, started)
		// A publish failure fails the process only in stop-on-failure mode;
		// by default the affected units are reported failed and the next run
		// retries them.
		if r.cfg.Pipeline.StopOnFailure {
			return summary, fmt.Errorf("publish: %w", err)
		}
		return summary, nil
	}
	summary.settleBuilt(metrics.OutcomePublished, "", nil)
	if !report.Skipped {
		log.Info("publish report",
			slog.Int("uploaded", len(report.Uploaded)),
			slog.Int("pruned", len(report.Pruned)))
	}

	r.pushBumps(ctx, log, summary, localDirs)
	r.finish(ctx, log, summary, started)
	return summary, nil
}

func (r *Runner) runUnit(ctx context.Context, log *slog.Logger, unit recipe.Unit, snap snapshot.Snapshot) UnitResult {
	ulog := log.With(logfields.Unit(unit.Name), logfields.Origin(unit.Origin.Kind()))

	prepared, err := r.exec.Prepare(ctx, unit)
	if err != nil {
		reason := string(builder.ReasonAcquire)
		var perr *builder.PrepareError
		if errors.As(err, &perr) {
			reason = string(perr.Reason)
		}
		ulog.Error("unit preparation failed", logfields.Error(err))
		return UnitResult{Name: unit.Name, Outcome: metrics.OutcomeFailed, Reason: reason, Err: err}
	}

	stored, err := r.store.Get(ctx, unit.Name)
	if err != nil {
		ulog.Warn("state lookup failed, treating unit as unseen", logfields.Error(err))
	}

	d := incremental.Decide(unit.Name, prepared.Meta.Version, prepared.Fingerprint, snap, stored)
	if d.Build {
		r.rec.IncDecision("build")
	} else {
		r.rec.IncDecision("skip")
	}
	ulog.Info("change detection",
		logfields.Version(prepared.Meta.Version.String()),
		logfields.Decision(decisionLabel(d)),
		slog.String("reason", d.Reason))

	if !d.Build {
		return UnitResult{Name: unit.Name, Outcome: metrics.OutcomeSkipped, Reason: d.Reason}
	}

	buildStart := time.Now()
	res := r.exec.Build(ctx, prepared)
	r.rec.ObserveBuildDuration(unit.Name, time.Since(buildStart))

	if res.Failed() {
		ulog.Error("unit build failed",
			slog.String("reason", string(res.Reason)), logfields.Error(res.Err))
		return UnitResult{Name: unit.Name, Outcome: metrics.OutcomeFailed, Reason: string(res.Reason), Err: res.Err}
	}

	ulog.Info("unit built",
		logfields.Version(res.Bundle.Version.String()),
		logfields.DurationMS(float64(time.Since(buildStart).Milliseconds())),
		slog.Int("artifacts", len(res.Bundle.Files)))
	return UnitResult{Name: unit.Name, Outcome: metrics.OutcomeBuilt, Reason: d.Reason, bundle: res.Bundle}
}

func (r *Runner) pushBumps(ctx context.Context, log *slog.Logger, summary *Summary, localDirs map[string]string) {
	if r.vcs == nil || !r.cfg.Publish.PushBumps {
		return
	}
	var dirs []string
	for _, name := range summary.Names(metrics.OutcomePublished) {
		if dir, ok := localDirs[name]; ok {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		return
	}
	if err := r.vcs.PushBumps(ctx, dirs); err != nil {
		log.Warn("recipe bump push failed", logfields.Error(err))
	}
}

func (r *Runner) finish(ctx context.Context, log *slog.Logger, summary *Summary, started time.Time) {
	summary.Duration = time.Since(started)
	for _, res := range summary.Results {
		r.rec.IncUnitOutcome(res.Outcome)
	}
	r.rec.ObserveStageDuration("run", summary.Duration)

	log.Info("run finished",
		slog.Int("published", len(summary.Names(metrics.OutcomePublished))),
		slog.Int("skipped", len(summary.Names(metrics.OutcomeSkipped))),
		slog.Int("failed", len(summary.Names(metrics.OutcomeFailed))),
		logfields.DurationMS(float64(summary.Duration.Milliseconds())))

	ev := notify.RunEvent{
		RunID:      summary.RunID,
		StartedAt:  summary.StartedAt,
		DurationMS: summary.Duration.Milliseconds(),
		Published:  summary.Names(metrics.OutcomePublished),
		Skipped:    summary.Names(metrics.OutcomeSkipped),
		Failed:     summary.Names(metrics.OutcomeFailed),
	}
	if err := r.notifier.PublishRun(ctx, ev); err != nil {
		log.Warn("run notification failed", logfields.Error(err))
	}
}

// orderedUnits expands the configured units into build order and returns the
// recipe directory of each local unit for the bump push.
func (r *Runner) orderedUnits() ([]recipe.Unit, map[string]string) {
	policy := retry.NewPolicy(
		retry.BackoffMode(r.cfg.Build.Retry.Backoff),
		r.cfg.Build.Retry.InitialDelay.Std(),
		r.cfg.Build.Retry.MaxDelay.Std(),
		r.cfg.Build.Retry.MaxRetries).WithCounter(r.rec)

	var local, aur []recipe.Unit
	localDirs := make(map[string]string)
	for _, u := range r.cfg.Units.Local {
		local = append(local, recipe.Unit{Name: u.Name, Origin: recipe.LocalOrigin{Dir: u.Dir}})
		localDirs[u.Name] = u.Dir
	}
	for _, u := range r.cfg.Units.AUR {
		aur = append(aur, recipe.Unit{Name: u.Name, Origin: recipe.AUROrigin{Name: u.Name, URL: u.URL, Retry: policy}})
	}

	if r.cfg.Units.Order == config.OrderLocalFirst {
		return append(local, aur...), localDirs
	}
	return append(aur, local...), localDirs
}

func decisionLabel(d incremental.Decision) string {
	if d.Build {
		return "build"
	}
	return "skip"
}
