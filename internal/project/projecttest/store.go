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

// Package projecttest provides an in-memory transactional store for tests of
// the project lifecycle and the code built on it.
package projecttest

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/catalog"
	"github.com/atelierhq/atelier/internal/project"
)

// Store keeps committed state in memory. Writes made inside WithTx are
// staged and only become visible when fn returns nil.
type Store struct {
	mu        sync.Mutex
	brands    map[string]catalog.Brand
	templates map[string]catalog.Template
	projects  map[string]project.Project
	creatives []project.Creative
	comments  []project.Comment
	events    []audit.Event

	// BeforeUpdateStatus runs inside UpdateStatus before the version check.
	BeforeUpdateStatus func(projectID string)
	// FailRecord makes every activity write fail.
	FailRecord error
	// FailGet makes every project read fail.
	FailGet error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		brands:    map[string]catalog.Brand{},
		templates: map[string]catalog.Template{},
		projects:  map[string]project.Project{},
	}
}

func (s *Store) AddBrand(b catalog.Brand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands[b.ID] = b
}

func (s *Store) AddTemplate(t catalog.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

// AddProject stores p as committed. Its version defaults to 1.
func (s *Store) AddProject(p project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Version == 0 {
		p.Version = 1
	}
	if b, ok := s.brands[p.BrandID]; ok && p.OrganizationID == "" {
		p.OrganizationID = b.OrganizationID
	}
	s.projects[p.ID] = p
}

func (s *Store) AddCreative(c project.Creative) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creatives = append(s.creatives, c)
}

// SetStatus commits a status write outside any transaction, as a concurrent
// writer would.
func (s *Store) SetStatus(id string, status project.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.projects[id]
	p.Status = status
	p.Version++
	s.projects[id] = p
}

// Project returns the committed project.
func (s *Store) Project(id string) (project.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	return p, ok
}

// Comments returns committed comments of a project.
func (s *Store) Comments(projectID string) []project.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []project.Comment
	for _, c := range s.comments {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out
}

// Events returns committed activity events.
func (s *Store) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// WithTx implements project.TxRunner.
func (s *Store) WithTx(ctx context.Context, fn func(stores project.StoreProvider) error) error {
	tx := &txStores{store: s, staged: map[string]project.Project{}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range tx.staged {
		s.projects[id] = p
	}
	s.comments = append(s.comments, tx.comments...)
	s.events = append(s.events, tx.events...)
	return nil
}

type txStores struct {
	store    *Store
	staged   map[string]project.Project
	comments []project.Comment
	events   []audit.Event
}

func (t *txStores) Projects() project.Repository          { return projectRepo{t} }
func (t *txStores) Comments() project.CommentRepository   { return commentRepo{t} }
func (t *txStores) Creatives() project.CreativeRepository { return creativeRepo{t} }
func (t *txStores) Catalog() catalog.Reader               { return catalogReader{t.store} }
func (t *txStores) Activity() audit.Sink                  { return activitySink{t} }

func (t *txStores) current(id string) (project.Project, bool) {
	if p, ok := t.staged[id]; ok {
		return p, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	p, ok := t.store.projects[id]
	return p, ok
}

type projectRepo struct{ t *txStores }

func (r projectRepo) GetByID(_ context.Context, id string) (*project.Project, error) {
	if r.t.store.FailGet != nil {
		return nil, r.t.store.FailGet
	}
	p, ok := r.t.current(id)
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	p.Creatives = nil
	p.Comments = nil
	return &p, nil
}

func (r projectRepo) List(_ context.Context, f project.ListFilter) ([]*project.Project, error) {
	r.t.store.mu.Lock()
	defer r.t.store.mu.Unlock()
	out := []*project.Project{}
	for _, p := range r.t.store.projects {
		if !f.AllOrganizations && !slices.Contains(f.OrganizationIDs, p.OrganizationID) {
			continue
		}
		if f.BrandID != "" && p.BrandID != f.BrandID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Offset >= len(out) {
		return []*project.Project{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r projectRepo) Create(_ context.Context, p *project.Project) error {
	r.t.staged[p.ID] = *p
	return nil
}

func (r projectRepo) UpdateStatus(_ context.Context, id string, expectedVersion int64, status project.Status, updatedAt time.Time) error {
	if hook := r.t.store.BeforeUpdateStatus; hook != nil {
		hook(id)
	}
	p, ok := r.t.current(id)
	if !ok {
		return project.ErrProjectNotFound
	}
	if p.Version != expectedVersion {
		return project.ErrVersionConflict
	}
	p.Status = status
	p.Version++
	p.UpdatedAt = updatedAt
	r.t.staged[id] = p
	return nil
}

type commentRepo struct{ t *txStores }

func (r commentRepo) Create(_ context.Context, c *project.Comment) error {
	r.t.comments = append(r.t.comments, *c)
	return nil
}

func (r commentRepo) ListByProject(_ context.Context, projectID string) ([]project.Comment, error) {
	out := r.t.store.Comments(projectID)
	for _, c := range r.t.comments {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	if out == nil {
		out = []project.Comment{}
	}
	return out, nil
}

type creativeRepo struct{ t *txStores }

func (r creativeRepo) ListByProject(_ context.Context, projectID string) ([]project.Creative, error) {
	r.t.store.mu.Lock()
	defer r.t.store.mu.Unlock()
	out := []project.Creative{}
	for _, c := range r.t.store.creatives {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

type catalogReader struct{ s *Store }

func (c catalogReader) GetBrand(_ context.Context, id string) (*catalog.Brand, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	b, ok := c.s.brands[id]
	if !ok {
		return nil, catalog.ErrBrandNotFound
	}
	return &b, nil
}

func (c catalogReader) GetTemplate(_ context.Context, id string) (*catalog.Template, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	t, ok := c.s.templates[id]
	if !ok {
		return nil, catalog.ErrTemplateNotFound
	}
	return &t, nil
}

type activitySink struct{ t *txStores }

func (a activitySink) Record(_ context.Context, e audit.Event) error {
	if a.t.store.FailRecord != nil {
		return a.t.store.FailRecord
	}
	a.t.events = append(a.t.events, e)
	return nil
}
