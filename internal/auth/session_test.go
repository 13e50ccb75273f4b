package auth

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the sessions schema
// applied. The file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('viewer', 'editor')),
			issued_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return db
}

func testGate(t *testing.T, ttl time.Duration) *Gate {
	t.Helper()

	hash, err := HashPassword("hunter2-but-long")
	if err != nil {
		t.Fatalf("hashing test credential: %v", err)
	}
	return NewGate(Config{
		AdminUser:  "admin",
		AdminHash:  hash,
		JWTSecret:  "test-secret",
		SessionTTL: ttl,
	}, NewSQLiteSessionRepository(testDB(t)))
}

func TestAuthenticateAndVerify(t *testing.T) {
	ctx := context.Background()
	g := testGate(t, time.Hour)

	session, token, err := g.Authenticate(ctx, "admin", "hunter2-but-long")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if session.Role != RoleEditor {
		t.Fatalf("role = %q, want editor", session.Role)
	}
	if !session.Role.CanEdit() {
		t.Fatal("editor session cannot edit")
	}

	got, err := g.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != session.ID || got.Subject != "admin" {
		t.Fatalf("verified session = %+v", got)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	ctx := context.Background()
	g := testGate(t, time.Hour)

	tests := []struct {
		name     string
		user     string
		password string
	}{
		{"wrong password", "admin", "wrong"},
		{"unknown user", "root", "hunter2-but-long"},
		{"both wrong", "root", "wrong"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := g.Authenticate(ctx, tt.user, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	g := testGate(t, time.Hour)

	for _, token := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := g.Verify(ctx, token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Verify(%q) err = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	g := testGate(t, time.Hour)

	_, token, err := g.Authenticate(ctx, "admin", "hunter2-but-long")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	other := NewGate(Config{
		AdminUser: "admin",
		AdminHash: g.cfg.AdminHash,
		JWTSecret: "different-secret",
	}, g.sessions)
	if _, err := other.Verify(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("foreign signature err = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	ctx := context.Background()
	g := testGate(t, -time.Minute)

	_, token, err := g.Authenticate(ctx, "admin", "hunter2-but-long")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := g.Verify(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expired token err = %v, want ErrSessionExpired", err)
	}
}

func TestRevokedSessionFailsVerify(t *testing.T) {
	ctx := context.Background()
	g := testGate(t, time.Hour)

	session, token, err := g.Authenticate(ctx, "admin", "hunter2-but-long")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := g.Revoke(ctx, session.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := g.Verify(ctx, token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("revoked session err = %v, want ErrSessionRevoked", err)
	}
}

// BenchmarkRejectWrongPassword and BenchmarkRejectUnknownUser should
// report comparable times; a large gap would reveal the username check.
func BenchmarkRejectWrongPassword(b *testing.B) {
	hash, _ := HashPassword("the-real-password")
	g := NewGate(Config{AdminUser: "admin", AdminHash: hash, JWTSecret: "s"}, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = g.Authenticate(context.Background(), "admin", "wrong-password")
	}
}

func BenchmarkRejectUnknownUser(b *testing.B) {
	hash, _ := HashPassword("the-real-password")
	g := NewGate(Config{AdminUser: "admin", AdminHash: hash, JWTSecret: "s"}, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = g.Authenticate(context.Background(), "nobody", "wrong-password")
	}
}
