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

package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/project"
	"github.com/atelierhq/atelier/internal/revision"
	"github.com/go-chi/chi/v5"
)

// CreateProjectRequest represents project creation data
type CreateProjectRequest struct {
	Name               string          `json:"name" example:"Summer launch"`
	BrandID            string          `json:"brandId"`
	TemplateID         string          `json:"templateId,omitempty"`
	ProjectType        string          `json:"projectType" example:"CAMPAIGN"`
	EstimatedCreatives int             `json:"estimatedCreatives" example:"12"`
	Deliverables       json.RawMessage `json:"deliverables,omitempty" swaggertype:"array,object"`
}

// CreateProject handles project creation
// @Summary Create Project
// @Description Create a project for one of the caller's brands
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateProjectRequest true "Project Data"
// @Success 201 {object} project.Project
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	deliverables, err := project.ParseDeliverables(req.Deliverables)
	if err != nil {
		respondAppError(w, r, apperr.Wrap(apperr.KindValidation, err.Error(), err))
		return
	}

	p, err := h.projects.Create(r.Context(), GetIdentity(r.Context()), project.CreateInput{
		Name:               req.Name,
		BrandID:            req.BrandID,
		TemplateID:         req.TemplateID,
		Type:               project.Type(req.ProjectType),
		EstimatedCreatives: req.EstimatedCreatives,
		Deliverables:       deliverables,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

// ListProjects handles project listing
// @Summary List Projects
// @Description List projects visible to the caller
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param brandId query string false "Brand filter"
// @Param status query string false "Status filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := project.ListFilter{
		BrandID: q.Get("brandId"),
		Status:  project.Status(q.Get("status")),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		respondAppError(w, r, apperr.Validation("limit must be an integer"))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		respondAppError(w, r, apperr.Validation("offset must be an integer"))
		return
	}

	projects, err := h.projects.List(r.Context(), GetIdentity(r.Context()), filter)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
		"count":    len(projects),
	})
}

// GetProject returns a project with its creatives and comments
// @Summary Get Project
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param projectID path string true "Project ID"
// @Success 200 {object} project.Project
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /projects/{projectID} [get]
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), GetIdentity(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// SetStatusRequest represents an admin status change
type SetStatusRequest struct {
	TargetStatus string `json:"targetStatus" example:"READY"`
}

// SetProjectStatus handles admin status changes
// @Summary Set Project Status
// @Description Admin-only status override
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectID path string true "Project ID"
// @Param request body SetStatusRequest true "Target status"
// @Success 200 {object} project.Project
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /projects/{projectID}/status [post]
func (h *Handler) SetProjectStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	p, err := h.projects.AdminSetStatus(r.Context(), GetIdentity(r.Context()), chi.URLParam(r, "projectID"), project.Status(req.TargetStatus))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ApproveProject handles client approval
// @Summary Approve Project
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param projectID path string true "Project ID"
// @Success 200 {object} project.Project
// @Failure 409 {object} map[string]string
// @Router /projects/{projectID}/approve [post]
func (h *Handler) ApproveProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Approve(r.Context(), GetIdentity(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// RevisionRequest represents a client revision request
type RevisionRequest struct {
	Comment     string   `json:"comment" example:"Please swap the hero image on the second slide"`
	CreativeIDs []string `json:"creativeIds,omitempty"`
}

// RequestRevision moves a READY project into revision
// @Summary Request Revision
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectID path string true "Project ID"
// @Param request body RevisionRequest true "Revision"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /projects/{projectID}/revisions [post]
func (h *Handler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	var req RevisionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	p, comment, err := h.revisions.RequestRevision(r.Context(), GetIdentity(r.Context()), revision.Request{
		ProjectID:   chi.URLParam(r, "projectID"),
		Comment:     req.Comment,
		CreativeIDs: req.CreativeIDs,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"project": p,
		"comment": comment,
	})
}

// AddCommentRequest represents a manual comment
type AddCommentRequest struct {
	Content string `json:"content"`
}

// AddComment appends a comment to a project
// @Summary Add Comment
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectID path string true "Project ID"
// @Param request body AddCommentRequest true "Comment"
// @Success 201 {object} project.Comment
// @Router /projects/{projectID}/comments [post]
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req AddCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	c, err := h.projects.AddComment(r.Context(), GetIdentity(r.Context()), chi.URLParam(r, "projectID"), req.Content)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
