// Package state persists the per-unit fingerprint and version recorded after
// each successful publish. The store is a local optimization cache: change
// detection consults it only together with the remote snapshot.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/megvadulthangya/manjaro-awesome/internal/version"
)

// Entry is one unit's recorded build state.
type Entry struct {
	Name        string
	Fingerprint string
	Version     version.Version
	BuiltAt     time.Time
}

// ErrVersionRegression is returned when a Put would move a unit's recorded
// version backwards. Published versions are monotonically non-decreasing.
var ErrVersionRegression = errors.New("recorded version would regress")

// Store is a SQLite-backed fingerprint store.
// Use ":memory:" for tests, or a file path for persistent storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and if needed creates) the store at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS units (
		name        TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		epoch       INTEGER NOT NULL,
		pkgver      TEXT NOT NULL,
		pkgrel      INTEGER NOT NULL,
		built_at    INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the stored entry for a unit, or nil when the unit was never
// recorded.
func (s *Store) Get(ctx context.Context, name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT name, fingerprint, epoch, pkgver, pkgrel, built_at FROM units WHERE name = ?", name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query unit %s: %w", name, err)
	}
	return e, nil
}

// Put upserts a unit's entry. A version lower than the recorded one is
// rejected with ErrVersionRegression.
func (s *Store) Put(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT name, fingerprint, epoch, pkgver, pkgrel, built_at FROM units WHERE name = ?", e.Name)
	prev, err := scanEntry(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("query unit %s: %w", e.Name, err)
	}
	if prev != nil && e.Version.Less(prev.Version) {
		return fmt.Errorf("%w: %s %s -> %s", ErrVersionRegression, e.Name, prev.Version, e.Version)
	}

	builtAt := e.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO units (name, fingerprint, epoch, pkgver, pkgrel, built_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			epoch = excluded.epoch,
			pkgver = excluded.pkgver,
			pkgrel = excluded.pkgrel,
			built_at = excluded.built_at`,
		e.Name, e.Fingerprint, e.Version.Epoch, e.Version.Pkgver, e.Version.Pkgrel, builtAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert unit %s: %w", e.Name, err)
	}
	return nil
}

// All returns every recorded entry ordered by unit name.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, fingerprint, epoch, pkgver, pkgrel, built_at FROM units ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var builtAt int64
	if err := row.Scan(&e.Name, &e.Fingerprint, &e.Version.Epoch, &e.Version.Pkgver, &e.Version.Pkgrel, &builtAt); err != nil {
		return nil, err
	}
	e.BuiltAt = time.Unix(builtAt, 0)
	return &e, nil
}
