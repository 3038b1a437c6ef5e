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

package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/id"
	"github.com/atelierhq/atelier/internal/observability/logger"
	"github.com/atelierhq/atelier/internal/organization"
)

// BillingCycle is the interval added to the sync time to get the next
// billing date after a confirmed payment.
const BillingCycle = 30 * 24 * time.Hour

// Outcome classifies a handled event.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
	OutcomeNoop    Outcome = "noop"
)

// SyncResult reports what HandleEvent did. Ignored and noop results are
// successes: the provider must not retry them.
type SyncResult struct {
	Outcome        Outcome
	Reason         string
	OrganizationID string
	PaymentStatus  organization.PaymentStatus
}

// PaymentState is the set of fields an event overwrites. Nil dates are left
// unchanged.
type PaymentState struct {
	Status          organization.PaymentStatus
	LastPaymentDate *time.Time
	NextBillingDate *time.Time
	UpdatedAt       time.Time
}

// OrganizationStore is the organization access the sync needs.
type OrganizationStore interface {
	// FindByExternalCustomerID returns organization.ErrOrganizationNotFound
	// when no organization carries the id.
	FindByExternalCustomerID(ctx context.Context, customerID string) (*organization.Organization, error)
	ApplyPaymentState(ctx context.Context, organizationID string, state PaymentState) error
}

// StoreProvider exposes the stores bound to one transaction.
type StoreProvider interface {
	Organizations() OrganizationStore
	Activity() audit.Sink
}

// TxRunner runs fn in a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// Metrics counts handled events.
type Metrics interface {
	RecordBillingEvent(ctx context.Context, eventType, outcome string)
}

// Service applies provider events to organizations.
type Service struct {
	tx      TxRunner
	metrics Metrics
	newID   id.Generator
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics counts events on m.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(g id.Generator) Option {
	return func(s *Service) { s.newID = g }
}

// NewService creates a billing sync service.
func NewService(tx TxRunner, opts ...Option) *Service {
	s := &Service{tx: tx, newID: id.NewUUIDv7, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// targetStatus maps a normalized event type to the payment status it sets.
func targetStatus(eventType string) (organization.PaymentStatus, bool) {
	switch eventType {
	case EventConfirmed, EventReceived:
		return organization.PaymentActive, true
	case EventOverdue:
		return organization.PaymentOverdue, true
	case EventRefunded, EventDeleted:
		return organization.PaymentSuspended, true
	}
	return "", false
}

// HandleEvent applies ev to the organization whose external billing customer
// id matches. Safe to call concurrently and repeatedly for the same event.
func (s *Service) HandleEvent(ctx context.Context, ev Event) (SyncResult, error) {
	if ev.Payment.Customer == "" {
		return SyncResult{}, apperr.Validation("payment.customer is required")
	}
	eventType := NormalizeType(ev.Type)

	var result SyncResult
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		org, err := stores.Organizations().FindByExternalCustomerID(ctx, ev.Payment.Customer)
		if errors.Is(err, organization.ErrOrganizationNotFound) {
			result = SyncResult{Outcome: OutcomeIgnored, Reason: "customer not found"}
			return nil
		}
		if err != nil {
			return err
		}

		status, ok := targetStatus(eventType)
		if !ok {
			result = SyncResult{
				Outcome:        OutcomeNoop,
				Reason:         "unhandled event type",
				OrganizationID: org.ID,
				PaymentStatus:  org.PaymentStatus,
			}
			return nil
		}

		now := s.now()
		state := PaymentState{Status: status, UpdatedAt: now}
		if status == organization.PaymentActive {
			paid := now
			if ev.Payment.ConfirmedDate != nil {
				paid = *ev.Payment.ConfirmedDate
			}
			next := now.Add(BillingCycle)
			state.LastPaymentDate = &paid
			state.NextBillingDate = &next
		}

		if err := stores.Organizations().ApplyPaymentState(ctx, org.ID, state); err != nil {
			return err
		}
		if err := stores.Activity().Record(ctx, audit.Event{
			ID:             s.newID(),
			Type:           audit.TypeBillingSynced,
			OrganizationID: org.ID,
			ActorID:        audit.ActorSystem,
			Resource:       org.ID,
			Metadata: map[string]any{
				"event":      eventType,
				"payment_id": ev.Payment.ID,
				"from":       string(org.PaymentStatus),
				"to":         string(status),
			},
			Timestamp: now,
		}); err != nil {
			return err
		}

		result = SyncResult{Outcome: OutcomeApplied, OrganizationID: org.ID, PaymentStatus: status}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindUnknown {
			return SyncResult{}, err
		}
		return SyncResult{}, apperr.Upstream("billing store unavailable", err)
	}

	if s.metrics != nil {
		s.metrics.RecordBillingEvent(ctx, eventType, string(result.Outcome))
	}

	attrs := []any{
		logger.EventType(eventType),
		logger.Customer(ev.Payment.Customer),
		logger.Outcome(string(result.Outcome)),
	}
	switch result.Outcome {
	case OutcomeIgnored:
		slog.WarnContext(ctx, "billing event for unknown customer", attrs...)
	case OutcomeNoop:
		slog.InfoContext(ctx, "billing event not handled", append(attrs, logger.OrganizationID(result.OrganizationID))...)
	default:
		slog.InfoContext(ctx, "billing status synced", append(attrs,
			logger.OrganizationID(result.OrganizationID),
			logger.Status(string(result.PaymentStatus)),
		)...)
	}
	return result, nil
}
