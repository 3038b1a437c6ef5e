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

package organization

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/id"
	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/observability/logger"
)

// Service provides organization management business logic
type Service struct {
	tx    TxRunner
	newID id.Generator
	now   func() time.Time
}

// NewService creates a new organization service
func NewService(tx TxRunner) *Service {
	return &Service{
		tx:    tx,
		newID: id.NewUUIDv7,
		now:   time.Now,
	}
}

// Create creates a new organization in good standing.
func (s *Service) Create(ctx context.Context, actor *identity.Identity, name string, plan Plan) (*Organization, error) {
	if err := identity.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("organization name is required")
	}
	if plan == "" {
		plan = PlanStarter
	}
	if _, err := ParsePlan(string(plan)); err != nil {
		return nil, apperr.Validation("plan must be STARTER, PROFESSIONAL or AGENCY")
	}

	now := s.now()
	org := &Organization{
		ID:            s.newID(),
		Name:          name,
		Plan:          plan,
		PaymentStatus: PaymentActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Organizations().Create(ctx, org); err != nil {
			return err
		}
		return stores.Activity().Record(ctx, audit.Event{
			ID:             s.newID(),
			Type:           audit.TypeOrganizationCreated,
			OrganizationID: org.ID,
			ActorID:        actor.UserID,
			Resource:       org.ID,
			Metadata:       map[string]any{"name": org.Name, "plan": string(org.Plan)},
			Timestamp:      now,
		})
	})
	if err != nil {
		return nil, mapError(err)
	}

	slog.InfoContext(ctx, "organization created", logger.OrganizationID(org.ID), logger.UserID(actor.UserID))
	return org, nil
}

// Get retrieves an organization the actor is authorized for.
func (s *Service) Get(ctx context.Context, actor *identity.Identity, id string) (*Organization, error) {
	if err := identity.RequireOrg(actor, id); err != nil {
		return nil, err
	}

	var org *Organization
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		var err error
		org, err = stores.Organizations().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return org, nil
}

// BillingUpdate carries admin billing edits. Nil fields are left unchanged.
type BillingUpdate struct {
	Plan                      *Plan
	PaymentStatus             *PaymentStatus
	ExternalBillingCustomerID *string
	BillingURL                *string
	CustomBillingValue        *float64
	BillingNotes              *string
}

func (u BillingUpdate) validate() error {
	if u.Plan != nil {
		if _, err := ParsePlan(string(*u.Plan)); err != nil {
			return apperr.Validation("plan must be STARTER, PROFESSIONAL or AGENCY")
		}
	}
	if u.PaymentStatus != nil {
		if _, err := ParsePaymentStatus(string(*u.PaymentStatus)); err != nil {
			return apperr.Validation("paymentStatus must be active, overdue or suspended")
		}
	}
	if u.CustomBillingValue != nil && *u.CustomBillingValue < 0 {
		return apperr.Validation("customBillingValue must not be negative")
	}
	return nil
}

// UpdateBilling applies admin billing edits.
func (s *Service) UpdateBilling(ctx context.Context, actor *identity.Identity, id string, u BillingUpdate) (*Organization, error) {
	if err := identity.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}
	if err := u.validate(); err != nil {
		return nil, err
	}

	var org *Organization
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		var err error
		org, err = stores.Organizations().GetByID(ctx, id)
		if err != nil {
			return err
		}

		changed := map[string]any{}
		if u.Plan != nil {
			org.Plan = *u.Plan
			changed["plan"] = string(*u.Plan)
		}
		if u.PaymentStatus != nil {
			changed["payment_status_from"] = string(org.PaymentStatus)
			org.PaymentStatus = *u.PaymentStatus
			changed["payment_status"] = string(*u.PaymentStatus)
		}
		if u.ExternalBillingCustomerID != nil {
			org.ExternalBillingCustomerID = strings.TrimSpace(*u.ExternalBillingCustomerID)
			changed["external_billing_customer_id"] = org.ExternalBillingCustomerID
		}
		if u.BillingURL != nil {
			org.BillingURL = strings.TrimSpace(*u.BillingURL)
			changed["billing_url"] = org.BillingURL
		}
		if u.CustomBillingValue != nil {
			org.CustomBillingValue = u.CustomBillingValue
			changed["custom_billing_value"] = *u.CustomBillingValue
		}
		if u.BillingNotes != nil {
			org.BillingNotes = u.BillingNotes
			changed["billing_notes"] = true
		}
		org.UpdatedAt = s.now()

		if err := stores.Organizations().Update(ctx, org); err != nil {
			return err
		}
		return stores.Activity().Record(ctx, audit.Event{
			ID:             s.newID(),
			Type:           audit.TypeBillingUpdated,
			OrganizationID: org.ID,
			ActorID:        actor.UserID,
			Resource:       org.ID,
			Metadata:       changed,
			Timestamp:      org.UpdatedAt,
		})
	})
	if err != nil {
		return nil, mapError(err)
	}
	return org, nil
}

// AddMember grants a user access to an organization.
func (s *Service) AddMember(ctx context.Context, actor *identity.Identity, orgID, userID string) (*Member, error) {
	if err := identity.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("userId is required")
	}

	m := &Member{
		OrganizationID: orgID,
		UserID:         userID,
		AddedBy:        actor.UserID,
		CreatedAt:      s.now(),
	}
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if _, err := stores.Organizations().GetByID(ctx, orgID); err != nil {
			return err
		}
		if err := stores.Memberships().AddMember(ctx, m); err != nil {
			return err
		}
		return stores.Activity().Record(ctx, audit.Event{
			ID:             s.newID(),
			Type:           audit.TypeMemberAdded,
			OrganizationID: orgID,
			ActorID:        actor.UserID,
			Resource:       orgID,
			Metadata:       map[string]any{"user_id": userID},
			Timestamp:      m.CreatedAt,
		})
	})
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func mapError(err error) error {
	switch {
	case apperr.KindOf(err) != apperr.KindUnknown:
		return err
	case errors.Is(err, ErrOrganizationNotFound):
		return apperr.Wrap(apperr.KindNotFound, "organization not found", err)
	case errors.Is(err, ErrMemberAlreadyExists):
		return apperr.Wrap(apperr.KindConflict, "user is already a member", err)
	case errors.Is(err, identity.ErrUserNotFound):
		return apperr.Wrap(apperr.KindValidation, "user not found", err)
	case errors.Is(err, ErrCustomerIDTaken):
		return apperr.Wrap(apperr.KindConflict, "external billing customer id already in use", err)
	default:
		return apperr.Upstream("organization store unavailable", err)
	}
}
