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

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/catalog"
	"github.com/jackc/pgx/v5"
)

// CatalogRepository implements catalog.Reader
type CatalogRepository struct {
	q querier
}

// GetBrand retrieves a brand by ID
func (r *CatalogRepository) GetBrand(ctx context.Context, id string) (*catalog.Brand, error) {
	var b catalog.Brand
	err := r.q.QueryRow(ctx, `
		SELECT id, organization_id, name FROM brands WHERE id = $1
	`, id).Scan(&b.ID, &b.OrganizationID, &b.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrBrandNotFound
		}
		return nil, fmt.Errorf("failed to get brand: %w", err)
	}
	return &b, nil
}

// GetTemplate retrieves a template by ID
func (r *CatalogRepository) GetTemplate(ctx context.Context, id string) (*catalog.Template, error) {
	var t catalog.Template
	err := r.q.QueryRow(ctx, `
		SELECT id, brand_id, name, status, active FROM templates WHERE id = $1
	`, id).Scan(&t.ID, &t.BrandID, &t.Name, &t.Status, &t.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

// ActivityRepository implements audit.Sink on the activity_log table
type ActivityRepository struct {
	q querier
}

// Record appends an activity event
func (r *ActivityRepository) Record(ctx context.Context, e audit.Event) error {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode activity metadata: %w", err)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO activity_log (id, event_type, organization_id, actor_id, resource, metadata, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`, e.ID, e.Type, e.OrganizationID, e.ActorID, e.Resource, raw, e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}
