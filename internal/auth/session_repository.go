package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteSessionRepository implements SessionRepository on SQLite.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSQLiteSessionRepository creates a session repository on an open
// database. The sessions table must already exist; migrations create it.
func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SQLiteSessionRepository) Create(ctx context.Context, s *Session) error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, subject, role, issued_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID,
		s.Subject,
		string(s.Role),
		s.IssuedAt.UTC().Format(time.RFC3339),
		s.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get loads a session by id. Revoked sessions are deleted rows, so they
// surface as ErrSessionNotFound.
func (r *SQLiteSessionRepository) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	var role, issued, expires string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, subject, role, issued_at, expires_at FROM sessions WHERE id = ?",
		id,
	).Scan(&s.ID, &s.Subject, &role, &issued, &expires)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrSessionNotFound
	case err != nil:
		return nil, fmt.Errorf("querying session: %w", err)
	}

	s.Role = Role(role)
	if s.IssuedAt, err = time.Parse(time.RFC3339, issued); err != nil {
		return nil, fmt.Errorf("parsing issued_at: %w", err)
	}
	if s.ExpiresAt, err = time.Parse(time.RFC3339, expires); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	return &s, nil
}

// Revoke deletes a session row, invalidating its token immediately.
func (r *SQLiteSessionRepository) Revoke(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpired purges sessions whose expiry has passed. Called
// periodically from the server's housekeeping loop.
func (r *SQLiteSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?",
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("purging expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
