package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
)

// ErrBuildTimeout marks a build killed by its wall-clock timeout, as opposed
// to a non-zero build tool exit.
var ErrBuildTimeout = errors.New("build timed out")

// Builder is the package-build tool collaborator: given a recipe directory it
// produces zero or more artifact files in that directory.
type Builder interface {
	Build(ctx context.Context, recipeDir string) error
}

// DepInstaller is the dependency-resolution collaborator. Installation is
// best effort: failures never fail the pipeline by themselves.
type DepInstaller interface {
	Install(ctx context.Context, deps []string) error
}

// MakepkgBuilder runs makepkg the way the CI builder always has: download
// sources first, then build and install with checks disabled.
type MakepkgBuilder struct{}

func (MakepkgBuilder) Build(ctx context.Context, recipeDir string) error {
	if err := runIn(ctx, recipeDir, "makepkg", "-od", "--noconfirm"); err != nil {
		// Source download failures surface through the main build call.
		slog.Debug("source download failed", logfields.Error(err))
	}
	if err := runIn(ctx, recipeDir, "makepkg", "-si", "--noconfirm", "--clean", "--nocheck"); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ErrBuildTimeout
		}
		return fmt.Errorf("makepkg: %w", err)
	}
	return nil
}

// PacmanInstaller installs dependencies with pacman, falling back to the AUR
// helper for anything the official repositories do not carry.
type PacmanInstaller struct {
	AURHelper string // defaults to yay
}

func (p PacmanInstaller) Install(ctx context.Context, deps []string) error {
	helper := p.AURHelper
	if helper == "" {
		helper = "yay"
	}
	var failures []string
	for _, dep := range deps {
		if err := run(ctx, "pacman", "-S", "--needed", "--noconfirm", dep); err == nil {
			continue
		}
		if err := run(ctx, helper, "-S", "--asdeps", "--needed", "--noconfirm", dep); err != nil {
			failures = append(failures, dep)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("could not install %d dependencies: %v", len(failures), failures)
	}
	return nil
}

func run(ctx context.Context, name string, args ...string) error {
	return runIn(ctx, "", name, args...)
}

func runIn(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
