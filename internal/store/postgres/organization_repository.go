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

	"github.com/atelierhq/atelier/internal/billing"
	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/organization"
	"github.com/jackc/pgx/v5"
)

// OrganizationRepository implements organization.Repository and
// billing.OrganizationStore
type OrganizationRepository struct {
	q querier
}

const organizationColumns = `
	id, name, plan, payment_status, COALESCE(external_billing_customer_id, ''), billing_url,
	last_payment_date, next_billing_date, custom_billing_value::float8, billing_notes,
	created_at, updated_at`

func scanOrganization(row pgx.Row) (*organization.Organization, error) {
	var org organization.Organization
	err := row.Scan(
		&org.ID, &org.Name, &org.Plan, &org.PaymentStatus, &org.ExternalBillingCustomerID, &org.BillingURL,
		&org.LastPaymentDate, &org.NextBillingDate, &org.CustomBillingValue, &org.BillingNotes,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, organization.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	return &org, nil
}

// Create creates a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *organization.Organization) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO organizations (
			id, name, plan, payment_status, external_billing_customer_id, billing_url,
			last_payment_date, next_billing_date, custom_billing_value, billing_notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12)
	`,
		org.ID, org.Name, org.Plan, org.PaymentStatus, org.ExternalBillingCustomerID, org.BillingURL,
		org.LastPaymentDate, org.NextBillingDate, org.CustomBillingValue, org.BillingNotes,
		org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return organization.ErrCustomerIDTaken
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*organization.Organization, error) {
	return scanOrganization(r.q.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id))
}

// Update overwrites the mutable fields of an organization
func (r *OrganizationRepository) Update(ctx context.Context, org *organization.Organization) error {
	result, err := r.q.Exec(ctx, `
		UPDATE organizations
		SET name = $2, plan = $3, payment_status = $4, external_billing_customer_id = NULLIF($5, ''),
		    billing_url = $6, last_payment_date = $7, next_billing_date = $8,
		    custom_billing_value = $9, billing_notes = $10, updated_at = $11
		WHERE id = $1
	`,
		org.ID, org.Name, org.Plan, org.PaymentStatus, org.ExternalBillingCustomerID,
		org.BillingURL, org.LastPaymentDate, org.NextBillingDate,
		org.CustomBillingValue, org.BillingNotes, org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return organization.ErrCustomerIDTaken
		}
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return organization.ErrOrganizationNotFound
	}
	return nil
}

// FindByExternalCustomerID retrieves the organization linked to a payment
// provider customer
func (r *OrganizationRepository) FindByExternalCustomerID(ctx context.Context, customerID string) (*organization.Organization, error) {
	if customerID == "" {
		return nil, organization.ErrOrganizationNotFound
	}
	return scanOrganization(r.q.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE external_billing_customer_id = $1`, customerID))
}

// ApplyPaymentState overwrites payment status and, when set, the billing dates
func (r *OrganizationRepository) ApplyPaymentState(ctx context.Context, organizationID string, state billing.PaymentState) error {
	result, err := r.q.Exec(ctx, `
		UPDATE organizations
		SET payment_status = $2,
		    last_payment_date = COALESCE($3, last_payment_date),
		    next_billing_date = COALESCE($4, next_billing_date),
		    updated_at = $5
		WHERE id = $1
	`, organizationID, state.Status, state.LastPaymentDate, state.NextBillingDate, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to apply payment state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return organization.ErrOrganizationNotFound
	}
	return nil
}

// MembershipRepository implements organization.MembershipRepository
type MembershipRepository struct {
	q querier
}

// AddMember links a user to an organization
func (r *MembershipRepository) AddMember(ctx context.Context, m *organization.Member) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO organization_members (organization_id, user_id, added_by, created_at)
		VALUES ($1, $2, $3, $4)
	`, m.OrganizationID, m.UserID, m.AddedBy, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return organization.ErrMemberAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return identity.ErrUserNotFound
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}
