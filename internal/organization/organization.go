package organization

import (
	"errors"
	"time"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMemberAlreadyExists  = errors.New("membership already exists")
	ErrCustomerIDTaken      = errors.New("external billing customer id already in use")
	ErrInvalidPlan          = errors.New("invalid plan")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
)

// Organization is a client tenant. It owns brands and carries billing state.
type Organization struct {
	ID                        string        `json:"id"`
	Name                      string        `json:"name"`
	Plan                      Plan          `json:"plan"`
	PaymentStatus             PaymentStatus `json:"paymentStatus"`
	ExternalBillingCustomerID string        `json:"externalBillingCustomerId,omitempty"`
	BillingURL                string        `json:"billingUrl,omitempty"`
	LastPaymentDate           *time.Time    `json:"lastPaymentDate,omitempty"`
	NextBillingDate           *time.Time    `json:"nextBillingDate,omitempty"`
	CustomBillingValue        *float64      `json:"customBillingValue,omitempty"`
	BillingNotes              *string       `json:"billingNotes,omitempty"`
	CreatedAt                 time.Time     `json:"createdAt"`
	UpdatedAt                 time.Time     `json:"updatedAt"`
}

// Plan is the subscription tier.
type Plan string

const (
	PlanStarter      Plan = "STARTER"
	PlanProfessional Plan = "PROFESSIONAL"
	PlanAgency       Plan = "AGENCY"
)

// ParsePlan validates a plan name.
func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanStarter, PlanProfessional, PlanAgency:
		return Plan(s), nil
	}
	return "", ErrInvalidPlan
}

// PaymentStatus is the billing standing of an organization.
type PaymentStatus string

// Status constants
const (
	PaymentActive    PaymentStatus = "active"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentSuspended PaymentStatus = "suspended"
)

// ParsePaymentStatus validates a payment status name.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentActive, PaymentOverdue, PaymentSuspended:
		return PaymentStatus(s), nil
	}
	return "", ErrInvalidPaymentStatus
}

// Member links a user to an organization.
type Member struct {
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	AddedBy        string    `json:"addedBy"`
	CreatedAt      time.Time `json:"createdAt"`
}
