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

// Package catalog exposes the read-only brand and template reference data
// that project creation validates against.
package catalog

import (
	"context"
	"errors"
)

var (
	ErrBrandNotFound    = errors.New("brand not found")
	ErrTemplateNotFound = errors.New("template not found")
)

// TemplateStatus is the review state of a template.
type TemplateStatus string

const (
	TemplatePending  TemplateStatus = "PENDING"
	TemplateApproved TemplateStatus = "APPROVED"
	TemplateRejected TemplateStatus = "REJECTED"
)

// Brand belongs to exactly one organization. The link never changes.
type Brand struct {
	ID             string
	OrganizationID string
	Name           string
}

// Template is a reusable layout scoped to a brand.
type Template struct {
	ID      string
	BrandID string
	Name    string
	Status  TemplateStatus
	Active  bool
}

// Usable reports whether a campaign may be built from the template.
func (t *Template) Usable() bool {
	return t != nil && t.Status == TemplateApproved && t.Active
}

// Reader looks up brands and templates.
type Reader interface {
	GetBrand(ctx context.Context, id string) (*Brand, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
}
