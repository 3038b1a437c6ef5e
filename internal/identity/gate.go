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

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/observability/logger"
	"github.com/atelierhq/atelier/internal/session"
)

// Authorization Principles:
// 1. Every core mutation calls RequireRole or RequireOrg before reading
//    or writing shared state.
// 2. ADMIN is the only role that crosses organization boundaries.
// 3. The identity is an explicit argument, never ambient state.

// Gate resolves credentials into identities.
type Gate struct {
	directory   Directory
	sessions    session.Repository
	tokens      *TokenVerifier
	idleTimeout time.Duration
	now         func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithTokenVerifier enables service-token authentication.
func WithTokenVerifier(v *TokenVerifier) GateOption {
	return func(g *Gate) { g.tokens = v }
}

// WithIdleTimeout rejects sessions not seen for longer than d.
func WithIdleTimeout(d time.Duration) GateOption {
	return func(g *Gate) { g.idleTimeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a new identity gate
func NewGate(directory Directory, sessions session.Repository, opts ...GateOption) *Gate {
	g := &Gate{
		directory: directory,
		sessions:  sessions,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate resolves an opaque credential into an Identity. It performs
// lookups only.
func (g *Gate) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, apperr.Unauthenticated("not authenticated")
	}

	now := g.now()
	var userID string

	if g.tokens != nil && looksLikeJWT(credential) {
		sub, err := g.tokens.Verify(credential, now)
		if err != nil {
			slog.DebugContext(ctx, "service token rejected", logger.Error(err))
			return nil, apperr.Unauthenticated("invalid or expired token")
		}
		userID = sub
	} else {
		if g.sessions == nil {
			return nil, apperr.Unauthenticated("not authenticated")
		}
		sess, err := g.sessions.GetByTokenHash(ctx, session.HashToken(credential))
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return nil, apperr.Unauthenticated("invalid or expired session")
			}
			return nil, apperr.Upstream("failed to load session", err)
		}
		if sess.IsExpired(now) || sess.IsIdle(now, g.idleTimeout) {
			return nil, apperr.Unauthenticated("invalid or expired session")
		}
		userID = sess.UserID
	}

	user, err := g.directory.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Unauthenticated("unknown user")
		}
		return nil, apperr.Upstream("failed to load user", err)
	}

	orgIDs, err := g.directory.ListOrganizationIDs(ctx, user.ID)
	if err != nil {
		return nil, apperr.Upstream("failed to load memberships", err)
	}

	return &Identity{
		UserID:          user.ID,
		DisplayName:     user.DisplayName,
		Role:            user.Role,
		OrganizationIDs: orgIDs,
	}, nil
}

// AuthorizeOrg reports whether the identity may act on the organization:
// ADMIN always, CLIENT only for organizations it belongs to.
func AuthorizeOrg(identity *Identity, organizationID string) bool {
	if identity == nil {
		return false
	}
	if identity.Role == RoleAdmin {
		return true
	}
	return identity.MemberOf(organizationID)
}

// RequireRole fails with Forbidden unless the identity has the role.
func RequireRole(identity *Identity, role Role) error {
	if identity == nil {
		return apperr.Unauthenticated("not authenticated")
	}
	if identity.Role != role {
		return apperr.Forbidden("operation requires role " + string(role))
	}
	return nil
}

// RequireOrg fails with Forbidden unless AuthorizeOrg holds.
func RequireOrg(identity *Identity, organizationID string) error {
	if identity == nil {
		return apperr.Unauthenticated("not authenticated")
	}
	if !AuthorizeOrg(identity, organizationID) {
		return apperr.Forbidden("not authorized for this organization")
	}
	return nil
}
