package publish

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRepoWithOrigin creates a working repository with one commit and a bare
// origin it can push to.
func setupRepoWithOrigin(t *testing.T) (string, *git.Repository) {
	t.Helper()

	originPath := filepath.Join(t.TempDir(), "origin.git")
	_, err := git.PlainInit(originPath, true)
	require.NoError(t, err)

	workPath := t.TempDir()
	repo, err := git.PlainInit(workPath, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{originPath},
	})
	require.NoError(t, err)

	writeCommit(t, repo, workPath, "picom/PKGBUILD", "pkgver=10.0\n", "initial recipes")
	return workPath, repo
}

func writeCommit(t *testing.T, repo *git.Repository, repoPath, file, content, msg string) {
	t.Helper()
	full := filepath.Join(repoPath, file)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(file)
	require.NoError(t, err)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func headMessage(t *testing.T, repo *git.Repository) string {
	t.Helper()
	ref, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	return commit.Message
}

func TestPushBumpsCommitsAndPushes(t *testing.T) {
	workPath, repo := setupRepoWithOrigin(t)

	pkgbuild := filepath.Join(workPath, "picom", "PKGBUILD")
	require.NoError(t, os.WriteFile(pkgbuild, []byte("pkgver=10.1\n"), 0o644))

	vc := &VersionControl{RepoDir: workPath}
	require.NoError(t, vc.PushBumps(t.Context(), []string{"./picom"}))

	msg := headMessage(t, repo)
	assert.Contains(t, msg, "picom")
	assert.Contains(t, msg, "[skip ci]")

	head, err := repo.Head()
	require.NoError(t, err)
	remoteRef, err := repo.Reference(head.Name(), true)
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), remoteRef.Hash())
}

func TestPushBumpsCleanWorktreeIsNoop(t *testing.T) {
	workPath, repo := setupRepoWithOrigin(t)
	before := headMessage(t, repo)

	vc := &VersionControl{RepoDir: workPath}
	require.NoError(t, vc.PushBumps(t.Context(), []string{"./picom"}))

	assert.Equal(t, before, headMessage(t, repo))
}

func TestPushBumpsEmptyListIsNoop(t *testing.T) {
	vc := &VersionControl{RepoDir: filepath.Join(t.TempDir(), "does-not-exist")}
	assert.NoError(t, vc.PushBumps(t.Context(), nil))
}

func TestPushBumpsMissingRepoFails(t *testing.T) {
	vc := &VersionControl{RepoDir: filepath.Join(t.TempDir(), "does-not-exist")}
	assert.Error(t, vc.PushBumps(t.Context(), []string{"./picom"}))
}
