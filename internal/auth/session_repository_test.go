package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testSession(ttl time.Duration) *Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &Session{
		ID:        uuid.NewString(),
		Subject:   "admin",
		Role:      RoleEditor,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSessionRepository(testDB(t))

	s := testSession(time.Hour)
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != s.Subject || got.Role != s.Role {
		t.Fatalf("got %+v, want %+v", got, s)
	}
	if !got.IssuedAt.Equal(s.IssuedAt) || !got.ExpiresAt.Equal(s.ExpiresAt) {
		t.Fatalf("timestamps drifted: got %v/%v want %v/%v",
			got.IssuedAt, got.ExpiresAt, s.IssuedAt, s.ExpiresAt)
	}
}

func TestSessionRepositoryMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSessionRepository(testDB(t))

	if _, err := repo.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get missing err = %v, want ErrSessionNotFound", err)
	}
	if err := repo.Revoke(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Revoke missing err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionRepositoryRevoke(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSessionRepository(testDB(t))

	s := testSession(time.Hour)
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Revoke(ctx, s.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := repo.Get(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after revoke err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionRepositoryDeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSessionRepository(testDB(t))

	live := testSession(time.Hour)
	dead := testSession(-time.Hour)
	for _, s := range []*Session{live, dead} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d sessions, want 1", n)
	}
	if _, err := repo.Get(ctx, live.ID); err != nil {
		t.Fatalf("live session purged: %v", err)
	}
	if _, err := repo.Get(ctx, dead.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("dead session survived: %v", err)
	}
}
