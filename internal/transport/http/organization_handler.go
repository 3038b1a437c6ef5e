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

package http

import (
	"net/http"

	"github.com/atelierhq/atelier/internal/organization"
	"github.com/go-chi/chi/v5"
)

// CreateOrganizationRequest represents organization creation data
type CreateOrganizationRequest struct {
	Name string `json:"name" example:"Acme Studios"`
	Plan string `json:"plan,omitempty" example:"STARTER"`
}

// CreateOrganization handles organization creation
// @Summary Create Organization
// @Description Admin-only
// @Tags Organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateOrganizationRequest true "Organization Data"
// @Success 201 {object} organization.Organization
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /organizations [post]
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	org, err := h.organizations.Create(r.Context(), GetIdentity(r.Context()), req.Name, organization.Plan(req.Plan))
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, org)
}

// GetOrganization returns an organization the caller may see
// @Summary Get Organization
// @Tags Organization
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {object} organization.Organization
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /organizations/{orgID} [get]
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.organizations.Get(r.Context(), GetIdentity(r.Context()), chi.URLParam(r, "orgID"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, org)
}

// UpdateBillingRequest represents admin billing edits. Omitted fields are
// left unchanged.
type UpdateBillingRequest struct {
	Plan                      *string  `json:"plan,omitempty"`
	PaymentStatus             *string  `json:"paymentStatus,omitempty"`
	ExternalBillingCustomerID *string  `json:"externalBillingCustomerId,omitempty"`
	BillingURL                *string  `json:"billingUrl,omitempty"`
	CustomBillingValue        *float64 `json:"customBillingValue,omitempty"`
	BillingNotes              *string  `json:"billingNotes,omitempty"`
}

// UpdateOrganizationBilling handles admin billing edits
// @Summary Update Organization Billing
// @Tags Organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param request body UpdateBillingRequest true "Billing fields"
// @Success 200 {object} organization.Organization
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /organizations/{orgID}/billing [put]
func (h *Handler) UpdateOrganizationBilling(w http.ResponseWriter, r *http.Request) {
	var req UpdateBillingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	update := organization.BillingUpdate{
		ExternalBillingCustomerID: req.ExternalBillingCustomerID,
		BillingURL:                req.BillingURL,
		CustomBillingValue:        req.CustomBillingValue,
		BillingNotes:              req.BillingNotes,
	}
	if req.Plan != nil {
		plan := organization.Plan(*req.Plan)
		update.Plan = &plan
	}
	if req.PaymentStatus != nil {
		status := organization.PaymentStatus(*req.PaymentStatus)
		update.PaymentStatus = &status
	}

	org, err := h.organizations.UpdateBilling(r.Context(), GetIdentity(r.Context()), chi.URLParam(r, "orgID"), update)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, org)
}

// AddMemberRequest represents membership creation data
type AddMemberRequest struct {
	UserID string `json:"userId"`
}

// AddOrganizationMember adds a user to an organization
// @Summary Add Organization Member
// @Tags Organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param request body AddMemberRequest true "Member"
// @Success 201 {object} organization.Member
// @Failure 409 {object} map[string]string
// @Router /organizations/{orgID}/members [post]
func (h *Handler) AddOrganizationMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	m, err := h.organizations.AddMember(r.Context(), GetIdentity(r.Context()), chi.URLParam(r, "orgID"), req.UserID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}
