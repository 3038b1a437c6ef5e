package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelierhq/atelier/internal/observability/logger"
	"golang.org/x/crypto/blake2b"
)

// ErrSessionNotFound is returned when no session has the token digest.
var ErrSessionNotFound = errors.New("session not found")

// Session is an opaque credential issued by the identity collaborator.
// Only the digest of the bearer token is stored.
type Session struct {
	ID         string
	TokenHash  string
	UserID     string
	IPAddress  string
	UserAgent  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsIdle checks if the session has been idle for too long
func (s *Session) IsIdle(now time.Time, idleTimeout time.Duration) bool {
	if idleTimeout <= 0 {
		return false
	}
	return now.Sub(s.LastSeenAt) > idleTimeout
}

// Repository defines the interface for session persistence
type Repository interface {
	// GetByTokenHash retrieves a session by the digest of its token
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteExpired deletes all sessions that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// HashToken returns the hex BLAKE2b-256 digest used to look a token up.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Service maintains the session table.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new session service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CleanupExpired removes expired sessions
func (s *Service) CleanupExpired(ctx context.Context) error {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "expired sessions removed", logger.RowsAffected(n))
	}
	return nil
}
