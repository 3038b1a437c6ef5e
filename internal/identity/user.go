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
	"slices"
	"time"
)

// Domain errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid role")
)

// Role is the platform-wide role of a user.
type Role string

const (
	// RoleAdmin is the internal production team. Admins are implicitly
	// authorized for every organization.
	RoleAdmin Role = "ADMIN"

	// RoleClient is a member of one or more client organizations.
	RoleClient Role = "CLIENT"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleClient:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

// User is the persisted user record the directory returns.
type User struct {
	ID          string
	DisplayName string
	Email       string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identity is the caller of a core operation, derived per request and passed
// explicitly to every call.
type Identity struct {
	UserID          string
	DisplayName     string
	Role            Role
	OrganizationIDs []string
}

// IsAdmin reports whether the identity has the ADMIN role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// MemberOf reports whether organizationID is in the identity's set.
func (i *Identity) MemberOf(organizationID string) bool {
	if i == nil || organizationID == "" {
		return false
	}
	return slices.Contains(i.OrganizationIDs, organizationID)
}

// Directory resolves users and their organization memberships.
type Directory interface {
	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, userID string) (*User, error)

	// ListOrganizationIDs returns the organizations the user belongs to
	ListOrganizationIDs(ctx context.Context, userID string) ([]string, error)
}
