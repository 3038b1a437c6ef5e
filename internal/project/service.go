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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/catalog"
	"github.com/atelierhq/atelier/internal/id"
	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/observability/logger"
)

// Service provides project lifecycle business logic
type Service struct {
	tx      TxRunner
	metrics Metrics
	newID   id.Generator
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records transitions on m.
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

// NewService creates a new project service
func NewService(tx TxRunner, opts ...Option) *Service {
	s := &Service{
		tx:      tx,
		metrics: noopMetrics{},
		newID:   id.NewUUIDv7,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the fields of a new project.
type CreateInput struct {
	Name               string
	BrandID            string
	TemplateID         string
	Type               Type
	EstimatedCreatives int
	Deliverables       []Deliverable
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("name is required")
	}
	if in.BrandID == "" {
		return apperr.Validation("brandId is required")
	}
	if _, err := ParseType(string(in.Type)); err != nil {
		return apperr.Validation("projectType must be CAMPAIGN or TEMPLATE_CREATION")
	}
	if in.EstimatedCreatives < 0 || in.EstimatedCreatives > MaxEstimatedCreatives {
		return apperr.Validation(fmt.Sprintf("estimatedCreatives must be between 0 and %d", MaxEstimatedCreatives))
	}
	if in.Type == TypeCampaign && in.TemplateID == "" {
		return apperr.Validation("templateId is required for campaigns")
	}
	if err := ValidateDeliverables(in.Deliverables); err != nil {
		return apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	return nil
}

// Create validates the brand and template and inserts a project in its
// initial state: IN_PRODUCTION for campaigns, DRAFT for template requests.
func (s *Service) Create(ctx context.Context, actor *identity.Identity, in CreateInput) (*Project, error) {
	if actor == nil {
		return nil, apperr.Unauthenticated("not authenticated")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Project{
		ID:           s.newID(),
		Name:         strings.TrimSpace(in.Name),
		BrandID:      in.BrandID,
		Type:         in.Type,
		Deliverables: in.Deliverables,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.Deliverables == nil {
		p.Deliverables = []Deliverable{}
	}

	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		brand, err := stores.Catalog().GetBrand(ctx, in.BrandID)
		if err != nil {
			if errors.Is(err, catalog.ErrBrandNotFound) {
				return apperr.Validation("brand not found")
			}
			return err
		}
		if err := identity.RequireOrg(actor, brand.OrganizationID); err != nil {
			return err
		}
		p.OrganizationID = brand.OrganizationID

		switch in.Type {
		case TypeCampaign:
			tpl, err := stores.Catalog().GetTemplate(ctx, in.TemplateID)
			if err != nil {
				if errors.Is(err, catalog.ErrTemplateNotFound) {
					return apperr.Validation("template not found")
				}
				return err
			}
			if tpl.BrandID != brand.ID {
				return apperr.Validation("template does not belong to brand")
			}
			if !tpl.Usable() {
				return apperr.Validation("template must be approved and active")
			}
			p.TemplateID = &tpl.ID
			p.Status = StatusInProduction
			p.EstimatedCreatives = in.EstimatedCreatives
			if p.EstimatedCreatives == 0 {
				p.EstimatedCreatives = TotalQuantity(p.Deliverables)
			}
		case TypeTemplateCreation:
			p.Status = StatusDraft
			p.EstimatedCreatives = 0
		}

		if err := stores.Projects().Create(ctx, p); err != nil {
			return err
		}
		return stores.Activity().Record(ctx, s.activity(audit.TypeProjectCreated, actor.UserID, p, map[string]any{
			"project_type": string(p.Type),
			"status":       string(p.Status),
		}))
	})
	if err != nil {
		return nil, MapError(err)
	}

	s.metrics.RecordTransition(ctx, "create", "", string(p.Status))
	slog.InfoContext(ctx, "project created",
		logger.ProjectID(p.ID),
		logger.OrganizationID(p.OrganizationID),
		logger.Status(string(p.Status)),
	)
	return p, nil
}

// AdminSetStatus overwrites the status of any project with any of the five
// states. Only ADMIN identities may call it.
func (s *Service) AdminSetStatus(ctx context.Context, actor *identity.Identity, projectID string, target Status) (*Project, error) {
	if err := identity.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := ParseStatus(string(target)); err != nil {
		return nil, apperr.Validation("targetStatus must be one of DRAFT, IN_PRODUCTION, READY, APPROVED, REVISION")
	}

	var (
		p    *Project
		from Status
	)
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		var err error
		p, err = stores.Projects().GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		from = p.Status
		if err := s.transition(ctx, stores, p, target); err != nil {
			return err
		}
		return stores.Activity().Record(ctx, s.activity(audit.TypeProjectStatusUpdated, actor.UserID, p, map[string]any{
			"from": string(from),
			"to":   string(target),
		}))
	})
	if err != nil {
		return nil, MapError(err)
	}

	s.metrics.RecordTransition(ctx, "admin_set_status", string(from), string(target))
	slog.InfoContext(ctx, "project status overridden",
		logger.ProjectID(p.ID),
		logger.UserID(actor.UserID),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
	)
	return p, nil
}

// Approve moves a READY project to APPROVED on behalf of a client of the
// owning organization.
func (s *Service) Approve(ctx context.Context, actor *identity.Identity, projectID string) (*Project, error) {
	if err := identity.RequireRole(actor, identity.RoleClient); err != nil {
		return nil, err
	}

	var p *Project
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		var err error
		p, err = stores.Projects().GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		if err := identity.RequireOrg(actor, p.OrganizationID); err != nil {
			return err
		}
		if p.Status != StatusReady {
			return apperr.InvalidState("Only READY projects can be approved")
		}
		if err := s.transition(ctx, stores, p, StatusApproved); err != nil {
			return err
		}
		return stores.Activity().Record(ctx, s.activity(audit.TypeProjectApproved, actor.UserID, p, nil))
	})
	if err != nil {
		return nil, MapError(err)
	}

	s.metrics.RecordTransition(ctx, "approve", string(StatusReady), string(StatusApproved))
	slog.InfoContext(ctx, "project approved", logger.ProjectID(p.ID), logger.UserID(actor.UserID))
	return p, nil
}

// Get returns a project with its creatives and comments.
func (s *Service) Get(ctx context.Context, actor *identity.Identity, projectID string) (*Project, error) {
	if actor == nil {
		return nil, apperr.Unauthenticated("not authenticated")
	}

	var p *Project
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		var err error
		p, err = stores.Projects().GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		if err := identity.RequireOrg(actor, p.OrganizationID); err != nil {
			return err
		}
		if p.Creatives, err = stores.Creatives().ListByProject(ctx, p.ID); err != nil {
			return err
		}
		p.Comments, err = stores.Comments().ListByProject(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, MapError(err)
	}
	return p, nil
}

// List returns the projects visible to the actor. Clients only see projects
// of brands owned by their organizations.
func (s *Service) List(ctx context.Context, actor *identity.Identity, filter ListFilter) ([]*Project, error) {
	if actor == nil {
		return nil, apperr.Unauthenticated("not authenticated")
	}
	if filter.Status != "" {
		if _, err := ParseStatus(string(filter.Status)); err != nil {
			return nil, apperr.Validation("unknown status filter")
		}
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if actor.IsAdmin() {
		filter.AllOrganizations = true
		filter.OrganizationIDs = nil
	} else {
		filter.AllOrganizations = false
		filter.OrganizationIDs = actor.OrganizationIDs
		if len(filter.OrganizationIDs) == 0 {
			return []*Project{}, nil
		}
	}

	var out []*Project
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		var err error
		out, err = stores.Projects().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

// AddComment appends manual commentary without changing status.
func (s *Service) AddComment(ctx context.Context, actor *identity.Identity, projectID, content string) (*Comment, error) {
	if actor == nil {
		return nil, apperr.Unauthenticated("not authenticated")
	}
	content = NormalizeComment(content)
	if content == "" {
		return nil, apperr.Validation("content is required")
	}

	c := &Comment{
		ID:        s.newID(),
		ProjectID: projectID,
		AuthorID:  actor.UserID,
		Content:   content,
		CreatedAt: s.now(),
	}
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		p, err := stores.Projects().GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		if err := identity.RequireOrg(actor, p.OrganizationID); err != nil {
			return err
		}
		if err := stores.Comments().Create(ctx, c); err != nil {
			return err
		}
		return stores.Activity().Record(ctx, s.activity(audit.TypeCommentAdded, actor.UserID, p, map[string]any{
			"comment_id": c.ID,
		}))
	})
	if err != nil {
		return nil, MapError(err)
	}
	return c, nil
}

func (s *Service) transition(ctx context.Context, stores StoreProvider, p *Project, to Status) error {
	now := s.now()
	if err := stores.Projects().UpdateStatus(ctx, p.ID, p.Version, to, now); err != nil {
		return err
	}
	p.Status = to
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (s *Service) activity(eventType, actorID string, p *Project, metadata map[string]any) audit.Event {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["project_name"] = p.Name
	return audit.Event{
		ID:             s.newID(),
		Type:           eventType,
		OrganizationID: p.OrganizationID,
		ActorID:        actorID,
		Resource:       p.ID,
		Metadata:       metadata,
		Timestamp:      s.now(),
	}
}

// MapError translates repository errors into error kinds. Errors that
// already carry a kind pass through; anything else is a persistence failure.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case apperr.KindOf(err) != apperr.KindUnknown:
		return err
	case errors.Is(err, ErrProjectNotFound):
		return apperr.Wrap(apperr.KindNotFound, "project not found", err)
	case errors.Is(err, ErrVersionConflict):
		return apperr.Wrap(apperr.KindConflict, "project was modified concurrently, reload and retry", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Upstream("request cancelled", err)
	default:
		return apperr.Upstream("project store unavailable", err)
	}
}
