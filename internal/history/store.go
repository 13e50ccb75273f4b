package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/homeatlas/atlas-core/internal/layout"
)

// Row kinds in layout_versions.
const (
	kindSnapshot = "snapshot"
	kindDiff     = "diff"
)

// Defaults for the store configuration.
const (
	// DefaultSnapshotInterval is how many versions pass between full
	// snapshots.
	DefaultSnapshotInterval = 16

	// DefaultRetention is how many recent versions Prune keeps
	// reconstructable.
	DefaultRetention = 512

	defaultListLimit = 50
	maxListLimit     = 500
)

// Config tunes snapshot cadence and pruning.
type Config struct {
	// SnapshotInterval is the number of versions between full
	// snapshots. Zero means DefaultSnapshotInterval.
	SnapshotInterval uint64

	// Retention is the number of most recent versions Prune must keep
	// reconstructable. Zero means DefaultRetention.
	Retention uint64
}

// Record is one version to append: the diff that produced it and the
// full layout it resulted in. The store decides which representation to
// persist.
type Record struct {
	Version uint64
	Diff    layout.Diff
	Layout  *layout.Layout
	Author  string
}

// VersionInfo describes one stored version without its payload.
type VersionInfo struct {
	Version   uint64    `json:"version"`
	Kind      string    `json:"kind"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the SQLite-backed layout version store.
type Store struct {
	db       *sql.DB
	interval uint64
	keep     uint64
}

// NewStore creates a version store on an open database. The
// layout_versions table must already exist; migrations create it.
func NewStore(db *sql.DB, cfg Config) *Store {
	interval := cfg.SnapshotInterval
	if interval == 0 {
		interval = DefaultSnapshotInterval
	}
	keep := cfg.Retention
	if keep == 0 {
		keep = DefaultRetention
	}
	return &Store{db: db, interval: interval, keep: keep}
}

// Append persists one new version. The record's version must be exactly
// one past the newest stored version (or 1 on an empty store), otherwise
// ErrNonSequential is returned and nothing is written.
//
// Version 1 and every SnapshotInterval-th version after it are stored as
// full snapshots; the rest store only the diff.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.Version == 0 {
		return fmt.Errorf("version 0 is the implicit empty layout: %w", ErrNonSequential)
	}
	if rec.Layout == nil {
		return fmt.Errorf("record for version %d has no layout", rec.Version)
	}

	kind := kindDiff
	var payload any = rec.Diff
	if (rec.Version-1)%s.interval == 0 {
		kind = kindSnapshot
		payload = rec.Layout
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling version %d payload: %w", rec.Version, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	var latest uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM layout_versions",
	).Scan(&latest); err != nil {
		return fmt.Errorf("reading latest version: %w", err)
	}
	if rec.Version != latest+1 {
		return fmt.Errorf("append %d onto %d: %w", rec.Version, latest, ErrNonSequential)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO layout_versions (version, kind, payload, author_session) VALUES (?, ?, ?, ?)",
		rec.Version, kind, string(raw), rec.Author,
	); err != nil {
		return fmt.Errorf("inserting version %d: %w", rec.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing version %d: %w", rec.Version, err)
	}
	return nil
}

// Latest returns the newest stored version number. An empty store
// reports 0.
func (s *Store) Latest(ctx context.Context) (uint64, error) {
	var latest uint64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM layout_versions",
	).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("reading latest version: %w", err)
	}
	return latest, nil
}

// Get reconstructs the layout at an exact version. Version 0 always
// resolves to the empty layout. Other versions resolve by loading the
// nearest snapshot at or below the target and replaying diffs up to it.
func (s *Store) Get(ctx context.Context, version uint64) (*layout.Layout, error) {
	if version == 0 {
		return &layout.Layout{}, nil
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if version > latest {
		return nil, fmt.Errorf("version %d past latest %d: %w", version, latest, ErrVersionNotFound)
	}

	base := &layout.Layout{}
	var baseVersion uint64

	var payload string
	err = s.db.QueryRowContext(ctx,
		`SELECT version, payload FROM layout_versions
		 WHERE kind = ? AND version <= ?
		 ORDER BY version DESC LIMIT 1`,
		kindSnapshot, version,
	).Scan(&baseVersion, &payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Pruning removed the floor snapshot for this version.
		return nil, fmt.Errorf("no snapshot at or below %d: %w", version, ErrVersionNotFound)
	case err != nil:
		return nil, fmt.Errorf("loading snapshot for version %d: %w", version, err)
	}
	if err := json.Unmarshal([]byte(payload), base); err != nil {
		return nil, fmt.Errorf("snapshot %d: %v: %w", baseVersion, err, ErrCorruptPayload)
	}

	if baseVersion == version {
		return base, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, payload FROM layout_versions
		 WHERE kind = ? AND version > ? AND version <= ?
		 ORDER BY version ASC`,
		kindDiff, baseVersion, version,
	)
	if err != nil {
		return nil, fmt.Errorf("loading diffs after %d: %w", baseVersion, err)
	}
	defer rows.Close()

	next := baseVersion
	for rows.Next() {
		var v uint64
		var raw string
		if err := rows.Scan(&v, &raw); err != nil {
			return nil, fmt.Errorf("scanning diff row: %w", err)
		}
		if v != next+1 {
			return nil, fmt.Errorf("diff chain jumps %d to %d: %w", next, v, ErrVersionNotFound)
		}
		var d layout.Diff
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("diff %d: %v: %w", v, err, ErrCorruptPayload)
		}
		if err := layout.ApplyDiff(base, d); err != nil {
			return nil, fmt.Errorf("replaying diff %d: %w", v, err)
		}
		next = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating diff rows: %w", err)
	}
	if next != version {
		return nil, fmt.Errorf("replay stopped at %d of %d: %w", next, version, ErrVersionNotFound)
	}
	return base, nil
}

// GetDiff returns the stored diff for a single version. Snapshot-backed
// versions have no stored diff and report ErrVersionNotFound.
func (s *Store) GetDiff(ctx context.Context, version uint64) (layout.Diff, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM layout_versions WHERE version = ? AND kind = ?",
		version, kindDiff,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return layout.Diff{}, fmt.Errorf("no diff stored for version %d: %w", version, ErrVersionNotFound)
	case err != nil:
		return layout.Diff{}, fmt.Errorf("loading diff %d: %w", version, err)
	}
	var d layout.Diff
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return layout.Diff{}, fmt.Errorf("diff %d: %v: %w", version, err, ErrCorruptPayload)
	}
	return d, nil
}

// List returns metadata for the newest stored versions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]VersionInfo, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, kind, author_session, created_at
		 FROM layout_versions
		 ORDER BY version DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	infos := make([]VersionInfo, 0, limit)
	for rows.Next() {
		var info VersionInfo
		var created string
		if err := rows.Scan(&info.Version, &info.Kind, &info.Author, &created); err != nil {
			return nil, fmt.Errorf("scanning version row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			info.CreatedAt = t
		} else if t, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
			info.CreatedAt = t.UTC()
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating version rows: %w", err)
	}
	return infos, nil
}

// Prune discards rows no longer needed to rebuild the retained window.
// It keeps every version from the newest snapshot at or below
// (latest - retention + 1) onwards, so all retained versions stay
// reconstructable.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	latest, err := s.Latest(ctx)
	if err != nil {
		return 0, err
	}
	if latest <= s.keep {
		return 0, nil
	}
	cutoff := latest - s.keep + 1

	var floor uint64
	err = s.db.QueryRowContext(ctx,
		`SELECT version FROM layout_versions
		 WHERE kind = ? AND version <= ?
		 ORDER BY version DESC LIMIT 1`,
		kindSnapshot, cutoff,
	).Scan(&floor)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("finding prune floor: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM layout_versions WHERE version < ?", floor,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning below %d: %w", floor, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
