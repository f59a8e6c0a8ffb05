// Package recipe models build units, their recipe acquisition strategies and
// recipe content fingerprints.
package recipe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
	"github.com/megvadulthangya/manjaro-awesome/internal/retry"
)

// Origin provides a unit's recipe-acquisition strategy.
type Origin interface {
	// Kind is a short label for logs and metrics ("local" or "aur").
	Kind() string
	// Acquire materializes the recipe into workDir and returns the recipe
	// directory.
	Acquire(ctx context.Context, workDir string) (string, error)
}

// Unit is one independently versioned build unit.
type Unit struct {
	Name   string
	Origin Origin
}

// LocalOrigin reads the recipe from a directory in this repository checkout.
type LocalOrigin struct {
	Dir string
}

func (o LocalOrigin) Kind() string { return "local" }

// Acquire copies the recipe directory into the work area so builds never
// mutate the checked-in recipe.
func (o LocalOrigin) Acquire(ctx context.Context, workDir string) (string, error) {
	if _, err := os.Stat(o.Dir); err != nil {
		return "", fmt.Errorf("recipe directory %s: %w", o.Dir, err)
	}
	dst := filepath.Join(workDir, filepath.Base(o.Dir))
	if err := os.RemoveAll(dst); err != nil {
		return "", fmt.Errorf("clean recipe copy target: %w", err)
	}
	if err := copyTree(o.Dir, dst); err != nil {
		return "", fmt.Errorf("copy recipe %s: %w", o.Dir, err)
	}
	return dst, nil
}

// AUROrigin clones the recipe from its canonical AUR repository.
type AUROrigin struct {
	Name  string
	URL   string
	Retry retry.Policy
}

func (o AUROrigin) Kind() string { return "aur" }

// Acquire clones the AUR recipe repository into workDir, retrying transient
// clone failures per the configured policy.
func (o AUROrigin) Acquire(ctx context.Context, workDir string) (string, error) {
	dst := filepath.Join(workDir, o.Name)

	err := o.Retry.Do(ctx, "clone "+o.Name, func() error {
		if err := os.RemoveAll(dst); err != nil {
			return &retry.Permanent{Err: fmt.Errorf("clean clone target: %w", err)}
		}
		_, err := git.PlainCloneContext(ctx, dst, false, &git.CloneOptions{
			URL:   o.URL,
			Depth: 1,
		})
		if err != nil {
			return classifyCloneError(o.URL, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	slog.Debug("recipe cloned", logfields.Unit(o.Name), slog.String("url", o.URL))
	return dst, nil
}

// classifyCloneError marks clone failures that retrying cannot fix.
func classifyCloneError(url string, err error) error {
	wrapped := fmt.Errorf("clone %s: %w", url, err)
	switch {
	case err == transport.ErrRepositoryNotFound,
		err == transport.ErrAuthenticationRequired,
		err == transport.ErrAuthorizationFailed:
		return &retry.Permanent{Err: wrapped}
	}
	return wrapped
}

// copyTree copies a directory recursively, skipping .git metadata.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
