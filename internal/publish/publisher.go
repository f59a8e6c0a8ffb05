// Package publish moves built artifacts onto the package server: upload with
// bounded retries, repository index regeneration over the retained set, and
// retention pruning of superseded versions. Only after a successful publish is
// a unit's fingerprint recorded in the local state store.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/megvadulthangya/manjaro-awesome/internal/builder"
	"github.com/megvadulthangya/manjaro-awesome/internal/config"
	"github.com/megvadulthangya/manjaro-awesome/internal/index"
	"github.com/megvadulthangya/manjaro-awesome/internal/logfields"
	"github.com/megvadulthangya/manjaro-awesome/internal/remote"
	"github.com/megvadulthangya/manjaro-awesome/internal/retry"
	"github.com/megvadulthangya/manjaro-awesome/internal/snapshot"
	"github.com/megvadulthangya/manjaro-awesome/internal/state"
	"github.com/megvadulthangya/manjaro-awesome/internal/version"
)

// Report summarizes what one publish pass did.
type Report struct {
	Skipped  bool     // no bundles, nothing touched
	Uploaded []string // filenames pushed to the remote, index included
	Pruned   []string // remote filenames removed by retention
	Recorded []string // unit names whose state entry was written
}

// Publisher pushes build output to the remote repository.
type Publisher struct {
	cfg       *config.Config
	transport remote.Transport
	store     *state.Store
	retries   retry.Counter
}

func New(cfg *config.Config, t remote.Transport, store *state.Store) *Publisher {
	return &Publisher{cfg: cfg, transport: t, store: store}
}

// WithRetryCounter reports upload retry attempts to c.
func (p *Publisher) WithRetryCounter(c retry.Counter) *Publisher {
	p.retries = c
	return p
}

// DBName returns the repository index filename.
func (p *Publisher) DBName() string { return p.cfg.Repo.Name + ".db.tar.gz" }

// Publish uploads the bundles' artifacts, regenerates the repository index
// over everything retained, prunes superseded versions and records build
// state. With no bundles it is a no-op: the remote repository is never
// touched by an empty run.
func (p *Publisher) Publish(ctx context.Context, bundles []builder.Bundle) (*Report, error) {
	if len(bundles) == 0 {
		slog.Info("nothing to publish")
		return &Report{Skipped: true}, nil
	}

	newEntries, files, err := p.entriesFor(bundles)
	if err != nil {
		return nil, err
	}

	remoteNames, err := p.transport.List(ctx, p.cfg.Repo.RemoteDir)
	if err != nil {
		return nil, fmt.Errorf("list remote repository: %w", err)
	}

	existing := p.existingEntries(ctx)

	keepSet, pruned := p.retainedSet(remoteNames, newEntries)
	merged := index.Merge(existing, newEntries, func(filename string) bool {
		return keepSet[filename]
	})

	dbPath, err := p.writeIndex(merged)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(filepath.Dir(dbPath))

	uploads := append(append([]string{}, files...), dbPath)
	policy := p.uploadPolicy()
	err = policy.Do(ctx, "artifact upload", func() error {
		return p.transport.Upload(ctx, uploads, p.cfg.Repo.RemoteDir)
	})
	if err != nil {
		return nil, fmt.Errorf("upload artifacts: %w", err)
	}

	report := &Report{Pruned: pruned}
	for _, f := range uploads {
		report.Uploaded = append(report.Uploaded, filepath.Base(f))
	}

	// Pruning runs only after the new index is live, so a failure here leaves
	// extra files behind rather than a dangling index reference.
	if len(pruned) > 0 {
		if err := p.transport.Remove(ctx, p.cfg.Repo.RemoteDir, pruned); err != nil {
			slog.Warn("retention pruning failed, stale files remain",
				logfields.RemoteDir(p.cfg.Repo.RemoteDir), logfields.Error(err))
			report.Pruned = nil
		}
	}

	for _, b := range bundles {
		if err := p.record(ctx, b); err != nil {
			slog.Warn("state record failed", logfields.Unit(b.Unit.Name), logfields.Error(err))
			continue
		}
		report.Recorded = append(report.Recorded, b.Unit.Name)
	}

	slog.Info("publish complete",
		slog.Int("uploaded", len(report.Uploaded)),
		slog.Int("pruned", len(report.Pruned)),
		logfields.RemoteDir(p.cfg.Repo.RemoteDir))
	return report, nil
}

func (p *Publisher) entriesFor(bundles []builder.Bundle) ([]index.Entry, []string, error) {
	var entries []index.Entry
	var files []string
	for _, b := range bundles {
		for _, f := range b.Files {
			e, err := index.FromFile(f)
			if err != nil {
				return nil, nil, fmt.Errorf("index %s: %w", filepath.Base(f), err)
			}
			entries = append(entries, e)
			files = append(files, f)
		}
	}
	return entries, files, nil
}

// existingEntries downloads and reads the current remote index. Best effort:
// a missing or unreadable index just means regenerating from scratch.
func (p *Publisher) existingEntries(ctx context.Context) []index.Entry {
	tmp, err := os.MkdirTemp("", "repo-index-*")
	if err != nil {
		return nil
	}
	defer os.RemoveAll(tmp)

	local := filepath.Join(tmp, p.DBName())
	remotePath := p.cfg.Repo.RemoteDir + "/" + p.DBName()
	if err := p.transport.Download(ctx, remotePath, local); err != nil {
		slog.Debug("no existing index on remote", logfields.Error(err))
		return nil
	}
	entries, err := index.Read(local)
	if err != nil {
		slog.Warn("existing index unreadable, regenerating", logfields.Error(err))
		return nil
	}
	return entries
}

// retainedSet decides which artifact filenames stay on the remote: the newest
// retention-count versions of each unit, counting both what is already there
// and what this run built. Everything else currently remote is pruned.
func (p *Publisher) retainedSet(remoteNames []string, newEntries []index.Entry) (map[string]bool, []string) {
	type candidate struct {
		filename string
		version  version.Version
	}
	byUnit := make(map[string][]candidate)
	seen := make(map[string]bool)

	add := func(filename string) {
		if seen[filename] {
			return
		}
		art, ok := snapshot.ParseName(filename)
		if !ok {
			return
		}
		seen[filename] = true
		byUnit[art.Name] = append(byUnit[art.Name], candidate{filename, art.Version})
	}
	for _, e := range newEntries {
		add(e.Filename)
	}
	for _, name := range remoteNames {
		add(name)
	}

	keep := make(map[string]bool)
	for _, cands := range byUnit {
		sort.Slice(cands, func(i, j int) bool {
			if !cands[i].version.Equal(cands[j].version) {
				return cands[j].version.Less(cands[i].version)
			}
			return cands[i].filename < cands[j].filename
		})
		for i, c := range cands {
			if i < p.cfg.Publish.Retention {
				keep[c.filename] = true
			}
		}
	}

	remoteSet := make(map[string]bool, len(remoteNames))
	var pruned []string
	for _, name := range remoteNames {
		if remoteSet[name] {
			continue
		}
		remoteSet[name] = true
		if _, ok := snapshot.ParseName(name); !ok {
			continue
		}
		if !keep[name] {
			pruned = append(pruned, name)
		}
	}
	sort.Strings(pruned)
	return keep, pruned
}

func (p *Publisher) writeIndex(entries []index.Entry) (string, error) {
	tmp, err := os.MkdirTemp("", "repo-publish-*")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	dbPath := filepath.Join(tmp, p.DBName())
	if err := index.Write(dbPath, entries); err != nil {
		os.RemoveAll(tmp)
		return "", fmt.Errorf("write index: %w", err)
	}
	return dbPath, nil
}

func (p *Publisher) uploadPolicy() retry.Policy {
	retries := p.cfg.Publish.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	delay := p.cfg.Publish.Delay.Std()
	return retry.NewPolicy(retry.BackoffFixed, delay, delay, retries).WithCounter(p.retries)
}

func (p *Publisher) record(ctx context.Context, b builder.Bundle) error {
	return p.store.Put(ctx, state.Entry{
		Name:        b.Unit.Name,
		Fingerprint: b.Fingerprint,
		Version:     b.Version,
		BuiltAt:     time.Now().UTC(),
	})
}
