package publish

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megvadulthangya/manjaro-awesome/internal/builder"
	"github.com/megvadulthangya/manjaro-awesome/internal/config"
	"github.com/megvadulthangya/manjaro-awesome/internal/index"
	"github.com/megvadulthangya/manjaro-awesome/internal/recipe"
	"github.com/megvadulthangya/manjaro-awesome/internal/remote"
	"github.com/megvadulthangya/manjaro-awesome/internal/state"
	"github.com/megvadulthangya/manjaro-awesome/internal/version"
)

const remoteDir = "/srv/repo"

func publishConfig() *config.Config {
	return &config.Config{
		Repo: config.RepoConfig{Name: "manjaro-awesome", RemoteDir: remoteDir},
		Publish: config.PublishConfig{
			Retention: 2,
			Attempts:  3,
			Delay:     config.Duration(time.Millisecond),
		},
	}
}

func openStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func artifactFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("artifact "+name), 0o644))
	return p
}

func bundle(t *testing.T, dir, unit, ver string, filenames ...string) builder.Bundle {
	t.Helper()
	v, err := version.Parse(ver)
	require.NoError(t, err)
	var files []string
	for _, n := range filenames {
		files = append(files, artifactFile(t, dir, n))
	}
	return builder.Bundle{
		Unit:        recipe.Unit{Name: unit},
		Version:     v,
		Fingerprint: "fp-" + unit + "-" + ver,
		Files:       files,
	}
}

func TestPublishEmptyRunTouchesNothing(t *testing.T) {
	mock := remote.NewMockTransport()
	p := New(publishConfig(), mock, openStore(t))

	report, err := p.Publish(t.Context(), nil)
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Zero(t, mock.Calls("list"))
	assert.Zero(t, mock.Calls("upload"))
	assert.Zero(t, mock.Calls("remove"))
}

func TestPublishUploadsArtifactsAndIndex(t *testing.T) {
	mock := remote.NewMockTransport()
	store := openStore(t)
	p := New(publishConfig(), mock, store)

	dir := t.TempDir()
	b := bundle(t, dir, "awesome-git", "4.3.1-1", "awesome-git-4.3.1-1-x86_64.pkg.tar.zst")

	report, err := p.Publish(t.Context(), []builder.Bundle{b})
	require.NoError(t, err)

	assert.False(t, report.Skipped)
	assert.Contains(t, report.Uploaded, "awesome-git-4.3.1-1-x86_64.pkg.tar.zst")
	assert.Contains(t, report.Uploaded, "manjaro-awesome.db.tar.gz")
	assert.ElementsMatch(t, []string{"awesome-git"}, report.Recorded)

	assert.Contains(t, mock.Files(remoteDir), "awesome-git-4.3.1-1-x86_64.pkg.tar.zst")
	assert.Contains(t, mock.Files(remoteDir), "manjaro-awesome.db.tar.gz")

	// Successful publish records version and fingerprint.
	entry, err := store.Get(t.Context(), "awesome-git")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "4.3.1-1", entry.Version.String())
	assert.Equal(t, b.Fingerprint, entry.Fingerprint)
}

func TestPublishRetriesTransientUploadFailure(t *testing.T) {
	mock := remote.NewMockTransport()
	mock.FailUploads = 2
	p := New(publishConfig(), mock, openStore(t))

	dir := t.TempDir()
	b := bundle(t, dir, "picom", "10.2-1", "picom-10.2-1-x86_64.pkg.tar.zst")

	_, err := p.Publish(t.Context(), []builder.Bundle{b})
	require.NoError(t, err)
	assert.Equal(t, 3, mock.Calls("upload"))
}

func TestPublishUploadExhaustionFails(t *testing.T) {
	mock := remote.NewMockTransport()
	mock.FailUploads = 10
	store := openStore(t)
	p := New(publishConfig(), mock, store)

	dir := t.TempDir()
	b := bundle(t, dir, "picom", "10.2-1", "picom-10.2-1-x86_64.pkg.tar.zst")

	_, err := p.Publish(t.Context(), []builder.Bundle{b})
	require.Error(t, err)
	assert.Equal(t, 3, mock.Calls("upload"))

	// Failed publish must not record state.
	entry, err := store.Get(t.Context(), "picom")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestPublishPrunesBeyondRetention(t *testing.T) {
	mock := remote.NewMockTransport()
	mock.Seed(remoteDir, "picom-10.0-1-x86_64.pkg.tar.zst", []byte("old"))
	mock.Seed(remoteDir, "picom-10.1-1-x86_64.pkg.tar.zst", []byte("older"))
	p := New(publishConfig(), mock, openStore(t))

	dir := t.TempDir()
	b := bundle(t, dir, "picom", "10.2-1", "picom-10.2-1-x86_64.pkg.tar.zst")

	report, err := p.Publish(t.Context(), []builder.Bundle{b})
	require.NoError(t, err)

	// Retention is 2: 10.2 and 10.1 stay, 10.0 goes.
	assert.Equal(t, []string{"picom-10.0-1-x86_64.pkg.tar.zst"}, report.Pruned)
	assert.NotContains(t, mock.Files(remoteDir), "picom-10.0-1-x86_64.pkg.tar.zst")
	assert.Contains(t, mock.Files(remoteDir), "picom-10.1-1-x86_64.pkg.tar.zst")
	assert.Contains(t, mock.Files(remoteDir), "picom-10.2-1-x86_64.pkg.tar.zst")
}

func TestPublishRetentionIsPerUnit(t *testing.T) {
	mock := remote.NewMockTransport()
	mock.Seed(remoteDir, "picom-10.0-1-x86_64.pkg.tar.zst", []byte("a"))
	mock.Seed(remoteDir, "awesome-git-4.0-1-x86_64.pkg.tar.zst", []byte("b"))
	p := New(publishConfig(), mock, openStore(t))

	dir := t.TempDir()
	b := bundle(t, dir, "picom", "10.1-1", "picom-10.1-1-x86_64.pkg.tar.zst")

	report, err := p.Publish(t.Context(), []builder.Bundle{b})
	require.NoError(t, err)

	// awesome-git only has one version, nothing of it is pruned.
	assert.Empty(t, report.Pruned)
	assert.Contains(t, mock.Files(remoteDir), "awesome-git-4.0-1-x86_64.pkg.tar.zst")
}

func TestPublishIndexCoversRetainedSet(t *testing.T) {
	mock := remote.NewMockTransport()
	p := New(publishConfig(), mock, openStore(t))

	dir := t.TempDir()
	first := bundle(t, dir, "picom", "10.1-1", "picom-10.1-1-x86_64.pkg.tar.zst")
	_, err := p.Publish(t.Context(), []builder.Bundle{first})
	require.NoError(t, err)

	second := bundle(t, dir, "picom", "10.2-1", "picom-10.2-1-x86_64.pkg.tar.zst")
	_, err = p.Publish(t.Context(), []builder.Bundle{second})
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "db.tar.gz")
	require.NoError(t, mock.Download(t.Context(), remoteDir+"/manjaro-awesome.db.tar.gz", local))

	entries, err := index.Read(local)
	require.NoError(t, err)
	var filenames []string
	for _, e := range entries {
		filenames = append(filenames, e.Filename)
	}
	assert.ElementsMatch(t, []string{
		"picom-10.1-1-x86_64.pkg.tar.zst",
		"picom-10.2-1-x86_64.pkg.tar.zst",
	}, filenames)
}

func TestPublishPruneFailureDoesNotFailPublish(t *testing.T) {
	mock := remote.NewMockTransport()
	mock.Seed(remoteDir, "picom-9.0-1-x86_64.pkg.tar.zst", []byte("ancient"))
	mock.Seed(remoteDir, "picom-10.0-1-x86_64.pkg.tar.zst", []byte("old"))
	mock.RemoveErr = os.ErrPermission
	p := New(publishConfig(), mock, openStore(t))

	dir := t.TempDir()
	b := bundle(t, dir, "picom", "10.1-1", "picom-10.1-1-x86_64.pkg.tar.zst")

	report, err := p.Publish(t.Context(), []builder.Bundle{b})
	require.NoError(t, err)
	assert.Empty(t, report.Pruned)
	assert.Contains(t, report.Recorded, "picom")
}

func TestPublishForeignRemoteFilesUntouched(t *testing.T) {
	mock := remote.NewMockTransport()
	mock.Seed(remoteDir, "README.txt", []byte("hands off"))
	p := New(publishConfig(), mock, openStore(t))

	dir := t.TempDir()
	b := bundle(t, dir, "picom", "10.1-1", "picom-10.1-1-x86_64.pkg.tar.zst")

	report, err := p.Publish(t.Context(), []builder.Bundle{b})
	require.NoError(t, err)
	assert.NotContains(t, report.Pruned, "README.txt")
	assert.Contains(t, mock.Files(remoteDir), "README.txt")
}
