package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is an authorisation tier.
type Role string

const (
	// RoleViewer receives snapshots, diffs, and device state but may
	// not change anything.
	RoleViewer Role = "viewer"

	// RoleEditor may additionally submit layout edits, reverts, and
	// device commands.
	RoleEditor Role = "editor"
)

// CanEdit reports whether the role permits mutating operations.
func (r Role) CanEdit() bool {
	return r == RoleEditor
}

// Session is one authenticated presence. The ID doubles as the author
// recorded against layout versions.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's lifetime has passed.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Claims are the JWT claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	SessionID string `json:"sid"`
}

// defaultSessionTTL applies when the configured TTL is zero.
const defaultSessionTTL = 12 * time.Hour

// Config carries the gate's credential and token settings.
type Config struct {
	// AdminUser is the username of the administrative credential.
	AdminUser string

	// AdminHash is the Argon2id PHC hash of the admin password.
	AdminHash string

	// JWTSecret signs session tokens (HS256).
	JWTSecret string

	// SessionTTL bounds session lifetime. Zero means 12 hours.
	SessionTTL time.Duration

	// AllowAnonymousRead permits unauthenticated viewer connections.
	AllowAnonymousRead bool
}

// SessionRepository persists issued sessions for revocation checks.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Revoke(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// Gate authenticates credentials and verifies session tokens.
type Gate struct {
	cfg      Config
	sessions SessionRepository
}

// NewGate creates the auth gate.
func NewGate(cfg Config, sessions SessionRepository) *Gate {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	return &Gate{cfg: cfg, sessions: sessions}
}

// AllowAnonymousRead reports whether viewer access without a session is
// permitted.
func (g *Gate) AllowAnonymousRead() bool {
	return g.cfg.AllowAnonymousRead
}

// dummyHash is verified on username mismatch so a wrong username costs
// the same as a wrong password.
var dummyHash = func() string {
	h, err := HashPassword(uuid.NewString())
	if err != nil {
		panic(fmt.Sprintf("hashing dummy credential: %v", err))
	}
	return h
}()

// Authenticate checks credentials and, on success, issues an editor
// session and its signed token. Failures are uniformly
// ErrInvalidCredentials with no early exit on the username check.
func (g *Gate) Authenticate(ctx context.Context, username, password string) (*Session, string, error) {
	hash := g.cfg.AdminHash
	userOK := username == g.cfg.AdminUser
	if !userOK {
		hash = dummyHash
	}

	passOK, err := VerifyPassword(password, hash)
	if err != nil {
		return nil, "", fmt.Errorf("verifying credential: %w", err)
	}
	if !userOK || !passOK {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.NewString(),
		Subject:   username,
		Role:      RoleEditor,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.cfg.SessionTTL),
	}
	if err := g.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("persisting session: %w", err)
	}

	token, err := g.signToken(session)
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// Verify checks a token's signature and expiry, then confirms the
// session row still exists. A revoked or purged session fails even if
// the token itself is still valid.
func (g *Gate) Verify(ctx context.Context, token string) (*Session, error) {
	claims, err := g.parseToken(token)
	if err != nil {
		return nil, err
	}

	session, err := g.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if session.Expired() {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Revoke invalidates a session ahead of its expiry.
func (g *Gate) Revoke(ctx context.Context, sessionID string) error {
	return g.sessions.Revoke(ctx, sessionID)
}

func (g *Gate) signToken(s *Session) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Subject,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			ID:        uuid.NewString(),
		},
		Role:      s.Role,
		SessionID: s.ID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

func (g *Gate) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(g.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.SessionID == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: incomplete claims", ErrTokenInvalid)
	}
	return claims, nil
}
