// Package builder runs one unit's build to completion or failure: recipe
// acquisition, dependency installation, the build tool invocation under a
// wall-clock timeout, and artifact collection. Units are isolated: a failure
// here never affects any other unit in the run.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/megvadulthangya/manjaro-awesome/internal/config"
	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
	"github.com/megvadulthangya/manjaro-awesome/internal/recipe"
)

// Prepared is a unit whose recipe has been acquired and inspected, ready for
// the skip/build decision.
type Prepared struct {
	Unit        recipe.Unit
	Dir         string
	Meta        *recipe.Metadata
	Fingerprint string
}

// Executor builds prepared units. The work directory is shared and cleaned
// between units; builds must not run concurrently.
type Executor struct {
	cfg     *config.Config
	builder Builder
	deps    DepInstaller
}

// NewExecutor wires an executor with the production collaborators.
func NewExecutor(cfg *config.Config) *Executor {
	return &Executor{cfg: cfg, builder: MakepkgBuilder{}, deps: PacmanInstaller{}}
}

// WithCollaborators overrides the build tool and dependency installer.
func (e *Executor) WithCollaborators(b Builder, d DepInstaller) *Executor {
	e.builder = b
	e.deps = d
	return e
}

// CheckTools verifies the configured build tools exist on PATH. Missing tools
// are warnings: some units may not need them.
func (e *Executor) CheckTools() {
	for _, tool := range e.cfg.Build.RequiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			slog.Warn("build tool not found on PATH", slog.String("tool", tool))
		}
	}
}

// PrepareError carries the failure classification for a recipe that could
// not be made ready.
type PrepareError struct {
	Reason Reason
	Err    error
}

func (p *PrepareError) Error() string { return p.Err.Error() }
func (p *PrepareError) Unwrap() error { return p.Err }

// Prepare cleans the shared work area, acquires the unit's recipe and
// computes its declared version and content fingerprint. Failures are typed
// *PrepareError.
func (e *Executor) Prepare(ctx context.Context, unit recipe.Unit) (*Prepared, error) {
	if err := e.cleanWorkDir(); err != nil {
		return nil, &PrepareError{ReasonAcquire, fmt.Errorf("clean work directory: %w", err)}
	}

	dir, err := unit.Origin.Acquire(ctx, e.cfg.Build.WorkDir)
	if err != nil {
		return nil, &PrepareError{ReasonAcquire, fmt.Errorf("acquire recipe: %w", err)}
	}

	meta, err := recipe.ParsePKGBUILD(dir)
	if err != nil {
		return nil, &PrepareError{ReasonParse, fmt.Errorf("parse recipe: %w", err)}
	}

	fp, err := recipe.Fingerprint(dir)
	if err != nil {
		return nil, &PrepareError{ReasonParse, fmt.Errorf("fingerprint recipe: %w", err)}
	}

	return &Prepared{Unit: unit, Dir: dir, Meta: meta, Fingerprint: fp}, nil
}

// Build runs a prepared unit's build and collects its artifacts.
func (e *Executor) Build(ctx context.Context, p *Prepared) Result {
	unit := p.Unit

	if strip := e.cfg.Build.StripDepends[unit.Name]; len(strip) > 0 {
		if err := recipe.StripDepends(p.Dir, strip); err != nil {
			return failed(unit, ReasonParse, fmt.Errorf("strip dependencies: %w", err))
		}
	}

	deps := append([]string{}, p.Meta.Depends...)
	deps = append(deps, p.Meta.MakeDepends...)
	deps = append(deps, e.cfg.Build.ExtraDepends[unit.Name]...)
	if len(deps) > 0 {
		if err := e.deps.Install(ctx, deps); err != nil {
			// Best effort: only the build tool outcome decides success.
			slog.Warn("dependency installation incomplete",
				logfields.Unit(unit.Name), logfields.Error(err))
		}
	}

	timeout := e.cfg.TimeoutFor(unit.Name)
	buildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Info("building unit",
		logfields.Unit(unit.Name),
		logfields.Origin(unit.Origin.Kind()),
		logfields.Version(p.Meta.Version.String()),
		slog.Duration("timeout", timeout))

	if err := e.builder.Build(buildCtx, p.Dir); err != nil {
		if errors.Is(err, ErrBuildTimeout) || buildCtx.Err() == context.DeadlineExceeded {
			return failed(unit, ReasonTimeout, fmt.Errorf("build exceeded %v: %w", timeout, err))
		}
		return failed(unit, ReasonBuild, err)
	}

	files, err := e.collectArtifacts(p.Dir)
	if err != nil {
		return failed(unit, ReasonBuild, err)
	}
	if len(files) == 0 {
		return failed(unit, ReasonNoArtifacts,
			fmt.Errorf("build reported success but produced no artifacts"))
	}

	for _, f := range files {
		slog.Info("artifact collected", logfields.Unit(unit.Name), logfields.Artifact(filepath.Base(f)))
	}
	return Result{
		Unit: unit,
		Bundle: &Bundle{
			Unit:        unit,
			Version:     p.Meta.Version,
			Fingerprint: p.Fingerprint,
			Files:       files,
		},
	}
}

// collectArtifacts moves produced package files into the output directory and
// returns their new paths.
func (e *Executor) collectArtifacts(recipeDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(recipeDir, "*.pkg.tar.*"))
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	if err := os.MkdirAll(e.cfg.Build.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var out []string
	for _, m := range matches {
		dst := filepath.Join(e.cfg.Build.OutputDir, filepath.Base(m))
		if err := os.Rename(m, dst); err != nil {
			return nil, fmt.Errorf("move artifact %s: %w", filepath.Base(m), err)
		}
		out = append(out, dst)
	}
	return out, nil
}

func (e *Executor) cleanWorkDir() error {
	if err := os.RemoveAll(e.cfg.Build.WorkDir); err != nil {
		return err
	}
	return os.MkdirAll(e.cfg.Build.WorkDir, 0o755)
}
