package snapshot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megvadulthangya/manjaro-awesome/internal/remote"
	"github.com/megvadulthangya/manjaro-awesome/internal/version"
)

func TestParseArtifactName(t *testing.T) {
	tests := []struct {
		filename string
		name     string
		ver      string
		arch     string
		ok       bool
	}{
		{"foo-1.0-1-x86_64.pkg.tar.zst", "foo", "1.0-1", "x86_64", true},
		{"i3lock-color-2.13.4-2-x86_64.pkg.tar.zst", "i3lock-color", "2.13.4-2", "x86_64", true},
		{"ttf-font-awesome-5-5.15.4-1-any.pkg.tar.xz", "ttf-font-awesome-5", "5.15.4-1", "any", true},
		{"gtk2-1:2.24.33-3-x86_64.pkg.tar.zst", "gtk2", "1:2.24.33-3", "x86_64", true},
		{"manjaro-awesome.db.tar.gz", "", "", "", false},
		{"random.txt", "", "", "", false},
		{"short-1.0.pkg.tar.zst", "", "", "", false},
	}
	for _, tt := range tests {
		art, ok := parseArtifactName(tt.filename)
		assert.Equal(t, tt.ok, ok, tt.filename)
		if !tt.ok {
			continue
		}
		assert.Equal(t, tt.name, art.Name, tt.filename)
		assert.Equal(t, version.MustParse(tt.ver), art.Version, tt.filename)
		assert.Equal(t, tt.arch, art.Arch, tt.filename)
		assert.Equal(t, tt.filename, art.Filename)
	}
}

func TestParseIgnoresUnrecognizedNames(t *testing.T) {
	snap := Parse([]string{
		"foo-1.0-1-x86_64.pkg.tar.zst",
		"manjaro-awesome.db.tar.gz",
		"notes.md",
	})
	assert.Equal(t, 1, snap.Len())
	assert.True(t, snap.HasAny("foo"))
}

func TestContainsEpochTolerance(t *testing.T) {
	snap := Parse([]string{"foo-1.0-1-x86_64.pkg.tar.zst"})

	assert.True(t, snap.Contains("foo", version.MustParse("1.0-1")))
	assert.True(t, snap.Contains("foo", version.MustParse("0:1.0-1")))
	assert.False(t, snap.Contains("foo", version.MustParse("1.0-2")))
	assert.False(t, snap.Contains("bar", version.MustParse("1.0-1")))
}

func TestFetchToleratesListingFailure(t *testing.T) {
	tr := remote.NewMockTransport()
	tr.ListErr = errors.New("connection refused")

	snap := Fetch(t.Context(), tr, "/var/www/repo")
	assert.Equal(t, 0, snap.Len())
	assert.False(t, snap.HasAny("anything"))
}

func TestFetchParsesListing(t *testing.T) {
	tr := remote.NewMockTransport()
	tr.Seed("/var/www/repo", "foo-1.0-1-x86_64.pkg.tar.zst", []byte("a"))
	tr.Seed("/var/www/repo", "foo-1.1-1-x86_64.pkg.tar.zst", []byte("b"))
	tr.Seed("/var/www/repo", "repo.db.tar.gz", []byte("db"))

	snap := Fetch(t.Context(), tr, "/var/www/repo")
	require.Equal(t, 2, snap.Len())
	assert.Len(t, snap.Versions("foo"), 2)
}
