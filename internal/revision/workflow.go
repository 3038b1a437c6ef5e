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

// Package revision packages a client's revision request into a guarded
// READY to REVISION transition with its comment and activity entry.
package revision

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/id"
	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/observability/logger"
	"github.com/atelierhq/atelier/internal/project"
)

// DefaultMinCommentLength is the minimum comment length in runes.
const DefaultMinCommentLength = 10

// Request is a client's revision request.
type Request struct {
	ProjectID   string
	Comment     string
	CreativeIDs []string
}

// Workflow runs revision requests.
type Workflow struct {
	tx            project.TxRunner
	metrics       project.Metrics
	minCommentLen int
	newID         id.Generator
	now           func() time.Time
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithMinCommentLength sets the minimum comment length in runes. Values
// below one only require a non-empty comment.
func WithMinCommentLength(n int) Option {
	return func(w *Workflow) { w.minCommentLen = n }
}

// WithMetrics records transitions on m.
func WithMetrics(m project.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(g id.Generator) Option {
	return func(w *Workflow) { w.newID = g }
}

// NewWorkflow creates a revision workflow writing through tx.
func NewWorkflow(tx project.TxRunner, opts ...Option) *Workflow {
	w := &Workflow{
		tx:            tx,
		minCommentLen: DefaultMinCommentLength,
		newID:         id.NewUUIDv7,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = nopMetrics{}
	}
	return w
}

// RequestRevision moves a READY project to REVISION, appends the comment and
// records revision_requested, all in one transaction. Any failure leaves the
// project, its comments and the activity log untouched.
func (w *Workflow) RequestRevision(ctx context.Context, actor *identity.Identity, req Request) (*project.Project, *project.Comment, error) {
	if actor == nil {
		return nil, nil, apperr.Unauthenticated("not authenticated")
	}

	content := project.NormalizeComment(req.Comment)
	creativeIDs := dedupe(req.CreativeIDs)

	var (
		p       *project.Project
		comment *project.Comment
	)
	err := w.tx.WithTx(ctx, func(stores project.StoreProvider) error {
		var err error
		p, err = stores.Projects().GetByID(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		if err := identity.RequireOrg(actor, p.OrganizationID); err != nil {
			return err
		}
		if p.Status != project.StatusReady {
			return apperr.InvalidState("Only READY projects can enter revision")
		}
		if err := w.validateComment(content); err != nil {
			return err
		}

		creatives, err := stores.Creatives().ListByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := checkOwnership(creatives, creativeIDs); err != nil {
			return err
		}

		now := w.now()
		if err := stores.Projects().UpdateStatus(ctx, p.ID, p.Version, project.StatusRevision, now); err != nil {
			return err
		}
		p.Status = project.StatusRevision
		p.Version++
		p.UpdatedAt = now

		comment = &project.Comment{
			ID:          w.newID(),
			ProjectID:   p.ID,
			AuthorID:    actor.UserID,
			Content:     content,
			CreativeIDs: creativeIDs,
			CreatedAt:   now,
		}
		if err := stores.Comments().Create(ctx, comment); err != nil {
			return err
		}

		if err := stores.Activity().Record(ctx, audit.Event{
			ID:             w.newID(),
			Type:           audit.TypeRevisionRequested,
			OrganizationID: p.OrganizationID,
			ActorID:        actor.UserID,
			Resource:       p.ID,
			Metadata: map[string]any{
				"project_name": p.Name,
				"comment_id":   comment.ID,
				"creative_ids": creativeIDs,
			},
			Timestamp: now,
		}); err != nil {
			return err
		}

		p.Creatives = creatives
		if p.Comments, err = stores.Comments().ListByProject(ctx, p.ID); err != nil {
			return err
		}
		if !slices.ContainsFunc(p.Comments, func(c project.Comment) bool { return c.ID == comment.ID }) {
			p.Comments = append(p.Comments, *comment)
		}
		return nil
	})
	if err != nil {
		return nil, nil, project.MapError(err)
	}

	w.metrics.RecordTransition(ctx, "request_revision", string(project.StatusReady), string(project.StatusRevision))
	slog.InfoContext(ctx, "revision requested",
		logger.ProjectID(p.ID),
		logger.OrganizationID(p.OrganizationID),
		logger.UserID(actor.UserID),
		slog.Int("creatives", len(creativeIDs)),
	)
	return p, comment, nil
}

func (w *Workflow) validateComment(content string) error {
	if content == "" {
		return apperr.Validation("comment is required")
	}
	if w.minCommentLen > 0 && utf8.RuneCountInString(content) < w.minCommentLen {
		return apperr.Validation(fmt.Sprintf("comment must be at least %d characters", w.minCommentLen))
	}
	return nil
}

func checkOwnership(creatives []project.Creative, ids []string) error {
	for _, cid := range ids {
		if !slices.ContainsFunc(creatives, func(c project.Creative) bool { return c.ID == cid }) {
			return apperr.Validation(fmt.Sprintf("creative %s does not belong to this project", cid))
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

type nopMetrics struct{}

func (nopMetrics) RecordTransition(context.Context, string, string, string) {}
