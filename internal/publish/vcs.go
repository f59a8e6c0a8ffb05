package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
)

// VersionControl commits recipe bumps made during a run back to the hosting
// repository. The commit message carries a CI skip marker so the push does not
// trigger another build round.
type VersionControl struct {
	RepoDir    string
	RemoteName string // defaults to origin

	AuthorName  string
	AuthorEmail string
}

// PushBumps stages the given recipe directories, commits whatever actually
// changed and pushes. A clean worktree is a no-op. Callers treat failures as
// advisory: a missed bump commit never fails the publish.
func (v *VersionControl) PushBumps(ctx context.Context, recipeDirs []string) error {
	if len(recipeDirs) == 0 {
		return nil
	}

	repo, err := git.PlainOpen(v.RepoDir)
	if err != nil {
		return fmt.Errorf("open repository %s: %w", v.RepoDir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	var staged []string
	for _, dir := range recipeDirs {
		rel := strings.TrimPrefix(dir, "./")
		if _, err := wt.Add(rel); err != nil {
			slog.Debug("nothing to stage", slog.String("dir", rel), logfields.Error(err))
			continue
		}
		staged = append(staged, rel)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() || len(staged) == 0 {
		slog.Debug("no recipe changes to push")
		return nil
	}

	msg := fmt.Sprintf("chore: record built versions for %s [skip ci]", strings.Join(staged, ", "))
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  v.author(),
			Email: v.email(),
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit recipe bumps: %w", err)
	}

	remoteName := v.RemoteName
	if remoteName == "" {
		remoteName = "origin"
	}
	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: remoteName})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push recipe bumps: %w", err)
	}
	return nil
}

func (v *VersionControl) author() string {
	if v.AuthorName != "" {
		return v.AuthorName
	}
	return "build bot"
}

func (v *VersionControl) email() string {
	if v.AuthorEmail != "" {
		return v.AuthorEmail
	}
	return "builder@localhost"
}
