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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/project"
	"github.com/jackc/pgx/v5"
)

// ProjectRepository implements project.Repository
type ProjectRepository struct {
	q querier
}

const projectColumns = `
	p.id, p.name, p.brand_id, b.organization_id, p.template_id, p.project_type, p.status,
	p.estimated_creatives, p.deliverables, p.version, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (*project.Project, error) {
	var p project.Project
	var deliverables []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.BrandID, &p.OrganizationID, &p.TemplateID, &p.Type, &p.Status,
		&p.EstimatedCreatives, &deliverables, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Deliverables = []project.Deliverable{}
	if len(deliverables) > 0 {
		if err := json.Unmarshal(deliverables, &p.Deliverables); err != nil {
			return nil, fmt.Errorf("failed to decode deliverables: %w", err)
		}
	}
	return &p, nil
}

// GetByID retrieves a project with its organization resolved through the brand
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*project.Project, error) {
	p, err := scanProject(r.q.QueryRow(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		JOIN brands b ON b.id = p.brand_id
		WHERE p.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// List returns projects matching the filter, newest first
func (r *ProjectRepository) List(ctx context.Context, filter project.ListFilter) ([]*project.Project, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.AllOrganizations {
		where = append(where, "b.organization_id = ANY("+arg(filter.OrganizationIDs)+")")
	}
	if filter.BrandID != "" {
		where = append(where, "p.brand_id = "+arg(filter.BrandID))
	}
	if filter.Status != "" {
		where = append(where, "p.status = "+arg(string(filter.Status)))
	}

	query := `SELECT ` + projectColumns + ` FROM projects p JOIN brands b ON b.id = p.brand_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*project.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Create inserts a new project
func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	deliverables := p.Deliverables
	if deliverables == nil {
		deliverables = []project.Deliverable{}
	}
	raw, err := json.Marshal(deliverables)
	if err != nil {
		return fmt.Errorf("failed to encode deliverables: %w", err)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO projects (
			id, name, brand_id, template_id, project_type, status,
			estimated_creatives, deliverables, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		p.ID, p.Name, p.BrandID, p.TemplateID, p.Type, p.Status,
		p.EstimatedCreatives, raw, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// UpdateStatus performs a compare-and-set on the project version
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status project.Status, updatedAt time.Time) error {
	result, err := r.q.Exec(ctx, `
		UPDATE projects
		SET status = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2
	`, id, expectedVersion, status, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check project: %w", err)
		}
		if !exists {
			return project.ErrProjectNotFound
		}
		return project.ErrVersionConflict
	}
	return nil
}

// CommentRepository implements project.CommentRepository
type CommentRepository struct {
	q querier
}

// Create appends a comment
func (r *CommentRepository) Create(ctx context.Context, c *project.Comment) error {
	creativeIDs := c.CreativeIDs
	if creativeIDs == nil {
		creativeIDs = []string{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO comments (id, project_id, author_id, content, creative_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.ProjectID, c.AuthorID, c.Content, creativeIDs, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByProject returns comments in creation order
func (r *CommentRepository) ListByProject(ctx context.Context, projectID string) ([]project.Comment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, project_id, author_id, content, creative_ids, created_at
		FROM comments
		WHERE project_id = $1
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (project.Comment, error) {
		var c project.Comment
		err := row.Scan(&c.ID, &c.ProjectID, &c.AuthorID, &c.Content, &c.CreativeIDs, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan comments: %w", err)
	}
	return comments, nil
}

// CreativeRepository implements project.CreativeRepository
type CreativeRepository struct {
	q querier
}

// ListByProject returns the creatives attached to a project
func (r *CreativeRepository) ListByProject(ctx context.Context, projectID string) ([]project.Creative, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, project_id, name, category, url, created_at
		FROM creatives
		WHERE project_id = $1
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list creatives: %w", err)
	}
	creatives, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (project.Creative, error) {
		var c project.Creative
		err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Category, &c.URL, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan creatives: %w", err)
	}
	return creatives, nil
}
