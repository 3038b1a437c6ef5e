// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/session"
	"github.com/jackc/pgx/v5"
)

// UserRepository implements identity.Directory
type UserRepository struct {
	q querier
}

// NewUserRepository creates a directory backed by the pool
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{q: db.pool}
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	var u identity.User
	err := r.q.QueryRow(ctx, `
		SELECT id, display_name, email, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.DisplayName, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ListOrganizationIDs returns the organizations a user belongs to
func (r *UserRepository) ListOrganizationIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT organization_id FROM organization_members WHERE user_id = $1 ORDER BY organization_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan memberships: %w", err)
	}
	return ids, nil
}

// SessionRepository implements session.Repository
type SessionRepository struct {
	q querier
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{q: db.pool}
}

// GetByTokenHash retrieves a session by the digest of its token
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	var sess session.Session
	err := r.q.QueryRow(ctx, `
		SELECT id, token_hash, user_id, ip_address, user_agent, expires_at, created_at, last_seen_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&sess.ID, &sess.TokenHash, &sess.UserID, &sess.IPAddress, &sess.UserAgent,
		&sess.ExpiresAt, &sess.CreatedAt, &sess.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// DeleteExpired removes sessions that expired before now
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
