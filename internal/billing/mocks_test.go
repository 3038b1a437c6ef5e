package billing_test

import (
	"context"
	"sync"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/billing"
	"github.com/atelierhq/atelier/internal/organization"
)

// memoryOrgs is an organization table with transactional writes: changes made
// in a failed transaction are discarded.
type memoryOrgs struct {
	mu     sync.Mutex
	orgs   map[string]organization.Organization
	events []audit.Event

	findFn   func(ctx context.Context, customerID string) (*organization.Organization, error)
	applyFn  func(ctx context.Context, orgID string, state billing.PaymentState) error
	recordFn func(ctx context.Context, e audit.Event) error
}

func newMemoryOrgs(orgs ...organization.Organization) *memoryOrgs {
	m := &memoryOrgs{orgs: map[string]organization.Organization{}}
	for _, o := range orgs {
		m.orgs[o.ID] = o
	}
	return m
}

func (m *memoryOrgs) get(id string) organization.Organization {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orgs[id]
}

func (m *memoryOrgs) recorded() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Event(nil), m.events...)
}

func (m *memoryOrgs) WithTx(ctx context.Context, fn func(billing.StoreProvider) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{m: m, staged: map[string]organization.Organization{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, o := range tx.staged {
		m.orgs[id] = o
	}
	m.events = append(m.events, tx.events...)
	return nil
}

type memoryTx struct {
	m      *memoryOrgs
	staged map[string]organization.Organization
	events []audit.Event
}

func (t *memoryTx) Organizations() billing.OrganizationStore { return t }
func (t *memoryTx) Activity() audit.Sink                     { return t }

func (t *memoryTx) FindByExternalCustomerID(ctx context.Context, customerID string) (*organization.Organization, error) {
	if t.m.findFn != nil {
		return t.m.findFn(ctx, customerID)
	}
	for _, o := range t.m.orgs {
		if o.ExternalBillingCustomerID == customerID {
			if staged, ok := t.staged[o.ID]; ok {
				o = staged
			}
			return &o, nil
		}
	}
	return nil, organization.ErrOrganizationNotFound
}

func (t *memoryTx) ApplyPaymentState(ctx context.Context, orgID string, state billing.PaymentState) error {
	if t.m.applyFn != nil {
		if err := t.m.applyFn(ctx, orgID, state); err != nil {
			return err
		}
	}
	o, ok := t.staged[orgID]
	if !ok {
		o, ok = t.m.orgs[orgID]
	}
	if !ok {
		return organization.ErrOrganizationNotFound
	}
	o.PaymentStatus = state.Status
	if state.LastPaymentDate != nil {
		o.LastPaymentDate = state.LastPaymentDate
	}
	if state.NextBillingDate != nil {
		o.NextBillingDate = state.NextBillingDate
	}
	o.UpdatedAt = state.UpdatedAt
	t.staged[orgID] = o
	return nil
}

func (t *memoryTx) Record(ctx context.Context, e audit.Event) error {
	if t.m.recordFn != nil {
		if err := t.m.recordFn(ctx, e); err != nil {
			return err
		}
	}
	t.events = append(t.events, e)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingMetrics) RecordBillingEvent(_ context.Context, eventType, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[eventType+"/"+outcome]++
}
