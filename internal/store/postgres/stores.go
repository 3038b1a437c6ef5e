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

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/billing"
	"github.com/atelierhq/atelier/internal/catalog"
	"github.com/atelierhq/atelier/internal/organization"
	"github.com/atelierhq/atelier/internal/project"
)

// Each domain package declares the stores it needs; the adapters below bind
// the repositories to one transaction and satisfy those declarations.

type projectStores struct{ q querier }

func (s projectStores) Projects() project.Repository          { return &ProjectRepository{q: s.q} }
func (s projectStores) Comments() project.CommentRepository   { return &CommentRepository{q: s.q} }
func (s projectStores) Creatives() project.CreativeRepository { return &CreativeRepository{q: s.q} }
func (s projectStores) Catalog() catalog.Reader               { return &CatalogRepository{q: s.q} }
func (s projectStores) Activity() audit.Sink                  { return &ActivityRepository{q: s.q} }

type projectTxRunner struct{ db *DB }

// NewProjectTxRunner returns the transaction runner the project lifecycle and
// revision workflow use.
func NewProjectTxRunner(db *DB) project.TxRunner {
	return projectTxRunner{db: db}
}

func (r projectTxRunner) WithTx(ctx context.Context, fn func(project.StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q querier) error {
		return fn(projectStores{q: q})
	})
}

type organizationStores struct{ q querier }

func (s organizationStores) Organizations() organization.Repository {
	return &OrganizationRepository{q: s.q}
}

func (s organizationStores) Memberships() organization.MembershipRepository {
	return &MembershipRepository{q: s.q}
}

func (s organizationStores) Activity() audit.Sink { return &ActivityRepository{q: s.q} }

type organizationTxRunner struct{ db *DB }

// NewOrganizationTxRunner returns the transaction runner for organization
// administration.
func NewOrganizationTxRunner(db *DB) organization.TxRunner {
	return organizationTxRunner{db: db}
}

func (r organizationTxRunner) WithTx(ctx context.Context, fn func(organization.StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q querier) error {
		return fn(organizationStores{q: q})
	})
}

type billingStores struct{ q querier }

func (s billingStores) Organizations() billing.OrganizationStore {
	return &OrganizationRepository{q: s.q}
}

func (s billingStores) Activity() audit.Sink { return &ActivityRepository{q: s.q} }

type billingTxRunner struct{ db *DB }

// NewBillingTxRunner returns the transaction runner for payment event sync.
func NewBillingTxRunner(db *DB) billing.TxRunner {
	return billingTxRunner{db: db}
}

func (r billingTxRunner) WithTx(ctx context.Context, fn func(billing.StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q querier) error {
		return fn(billingStores{q: q})
	})
}
