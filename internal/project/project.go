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

// Package project owns the Project lifecycle: creation, admin status
// overrides, client approval and commentary.
package project

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Domain errors returned by repositories.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrVersionConflict = errors.New("project version conflict")
	ErrInvalidStatus   = errors.New("invalid project status")
	ErrInvalidType     = errors.New("invalid project type")
)

// Status is a lifecycle state. No state is terminal.
type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusInProduction Status = "IN_PRODUCTION"
	StatusReady        Status = "READY"
	StatusApproved     Status = "APPROVED"
	StatusRevision     Status = "REVISION"
)

// Statuses lists every lifecycle state.
var Statuses = []Status{StatusDraft, StatusInProduction, StatusReady, StatusApproved, StatusRevision}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// Type distinguishes production jobs from template requests.
type Type string

const (
	TypeCampaign         Type = "CAMPAIGN"
	TypeTemplateCreation Type = "TEMPLATE_CREATION"
)

// ParseType validates a project type name.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeCampaign, TypeTemplateCreation:
		return Type(s), nil
	}
	return "", ErrInvalidType
}

// Project is a unit of creative work.
type Project struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	BrandID            string        `json:"brandId"`
	OrganizationID     string        `json:"organizationId"`
	TemplateID         *string       `json:"templateId,omitempty"`
	Type               Type          `json:"projectType"`
	Status             Status        `json:"status"`
	EstimatedCreatives int           `json:"estimatedCreatives"`
	Deliverables       []Deliverable `json:"deliverables"`
	Version            int64         `json:"version"`
	Creatives          []Creative    `json:"creatives,omitempty"`
	Comments           []Comment     `json:"comments,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Creative is a produced artifact. The core only reads it.
type Creative struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is append-only project commentary.
type Comment struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	AuthorID    string    `json:"authorId"`
	Content     string    `json:"content"`
	CreativeIDs []string  `json:"creativeIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NormalizeComment returns the NFC form of s with surrounding space removed.
func NormalizeComment(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
