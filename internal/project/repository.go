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

package project

import (
	"context"
	"time"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/catalog"
)

// ListFilter narrows a project listing. When AllOrganizations is false only
// projects whose brand belongs to one of OrganizationIDs are returned.
type ListFilter struct {
	AllOrganizations bool
	OrganizationIDs  []string
	BrandID          string
	Status           Status
	Limit            int
	Offset           int
}

// Repository defines the interface for project storage
type Repository interface {
	// GetByID loads a project with its organization resolved through the brand.
	GetByID(ctx context.Context, id string) (*Project, error)

	List(ctx context.Context, filter ListFilter) ([]*Project, error)

	Create(ctx context.Context, p *Project) error

	// UpdateStatus writes status only if the stored version equals
	// expectedVersion, incrementing it. Otherwise it returns ErrVersionConflict.
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status Status, updatedAt time.Time) error
}

// CommentRepository stores append-only comments.
type CommentRepository interface {
	Create(ctx context.Context, c *Comment) error
	ListByProject(ctx context.Context, projectID string) ([]Comment, error)
}

// CreativeRepository reads creatives produced for a project.
type CreativeRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]Creative, error)
}

// StoreProvider exposes the stores a lifecycle operation needs, bound to
// one transaction.
type StoreProvider interface {
	Projects() Repository
	Comments() CommentRepository
	Creatives() CreativeRepository
	Catalog() catalog.Reader
	Activity() audit.Sink
}

// TxRunner runs fn in a transaction. Returning an error rolls back every
// write fn made.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// Metrics records lifecycle transitions.
type Metrics interface {
	RecordTransition(ctx context.Context, operation, from, to string)
}

type noopMetrics struct{}

func (noopMetrics) RecordTransition(context.Context, string, string, string) {}
