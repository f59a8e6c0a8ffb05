// Package snapshot captures the set of published artifacts on the remote at
// run start. The snapshot is the authoritative record of what already exists;
// a failed fetch degrades to an empty snapshot rather than aborting the run.
package snapshot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
	"github.com/megvadulthangya/manjaro-awesome/internal/remote"
	"github.com/megvadulthangya/manjaro-awesome/internal/version"
)

// Artifact is one published package file parsed from its filename.
type Artifact struct {
	Name     string
	Version  version.Version
	Arch     string
	Filename string
}

// Snapshot is the parsed remote listing.
type Snapshot struct {
	artifacts map[string][]Artifact
	raw       []string
}

// Fetch performs one remote listing call and parses it. On failure it logs a
// warning and returns an empty snapshot: a fresh remote is a valid state and
// must not fail the run.
func Fetch(ctx context.Context, t remote.Transport, dir string) Snapshot {
	names, err := t.List(ctx, dir)
	if err != nil {
		slog.Warn("remote listing failed, assuming empty repository",
			logfields.RemoteDir(dir), logfields.Error(err))
		return Snapshot{artifacts: map[string][]Artifact{}}
	}
	snap := Parse(names)
	slog.Info("remote snapshot fetched",
		logfields.RemoteDir(dir),
		slog.Int("files", len(names)),
		slog.Int("artifacts", len(snap.raw)))
	return snap
}

// Parse builds a snapshot from raw filenames. Names that do not follow the
// artifact naming convention are ignored.
func Parse(names []string) Snapshot {
	snap := Snapshot{artifacts: make(map[string][]Artifact)}
	for _, name := range names {
		art, ok := parseArtifactName(name)
		if !ok {
			continue
		}
		snap.artifacts[art.Name] = append(snap.artifacts[art.Name], art)
		snap.raw = append(snap.raw, name)
	}
	return snap
}

// ParseName parses an artifact filename. Exposed for the index builder.
func ParseName(filename string) (Artifact, bool) { return parseArtifactName(filename) }

// parseArtifactName parses <name>-<[epoch:]pkgver>-<pkgrel>-<arch>.pkg.tar.<ext>.
// The package name may itself contain dashes, so the version, release and
// arch are taken from the trailing fields.
func parseArtifactName(filename string) (Artifact, bool) {
	idx := strings.Index(filename, ".pkg.tar.")
	if idx < 0 {
		return Artifact{}, false
	}
	stem := filename[:idx]

	fields := strings.Split(stem, "-")
	if len(fields) < 4 {
		return Artifact{}, false
	}
	n := len(fields)
	name := strings.Join(fields[:n-3], "-")
	verStr := fields[n-3] + "-" + fields[n-2]
	arch := fields[n-1]
	if name == "" || arch == "" {
		return Artifact{}, false
	}

	v, err := version.Parse(verStr)
	if err != nil {
		return Artifact{}, false
	}
	return Artifact{Name: name, Version: v, Arch: arch, Filename: filename}, true
}

// Contains reports whether the exact version of a unit is published. The
// comparison is epoch-aware: an absent epoch equals epoch zero.
func (s Snapshot) Contains(name string, v version.Version) bool {
	for _, art := range s.artifacts[name] {
		if art.Version.Equal(v) {
			return true
		}
	}
	return false
}

// HasAny reports whether any version of a unit is published.
func (s Snapshot) HasAny(name string) bool { return len(s.artifacts[name]) > 0 }

// Versions returns the published artifacts for a unit.
func (s Snapshot) Versions(name string) []Artifact { return s.artifacts[name] }

// Filenames returns every artifact filename in the snapshot.
func (s Snapshot) Filenames() []string { return s.raw }

// Len returns the number of recognized artifacts.
func (s Snapshot) Len() int { return len(s.raw) }
