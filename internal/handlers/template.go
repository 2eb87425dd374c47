package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/storage"
)

// TemplateHandler handles HTTP requests for analysis templates.
type TemplateHandler struct {
	templates storage.TemplateStore
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templates storage.TemplateStore) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// TemplateResponse represents a template in HTTP responses.
type TemplateResponse struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	Subtitle     string                   `json:"subtitle,omitempty"`
	Description  string                   `json:"description,omitempty"`
	Metrics      []storage.TemplateMetric `json:"metrics"`
	IsSystem     bool                     `json:"is_system"`
	ForkedFromID string                   `json:"forked_from_id,omitempty"`
	CreatedAt    string                   `json:"created_at,omitempty"`
	UpdatedAt    string                   `json:"updated_at,omitempty"`
}

// TemplateListResponse represents the list endpoint payload.
type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

// TemplateCreateRequest represents the payload for creating a template.
type TemplateCreateRequest struct {
	Name        string                   `json:"name"`
	Subtitle    string                   `json:"subtitle,omitempty"`
	Description string                   `json:"description,omitempty"`
	Metrics     []storage.TemplateMetric `json:"metrics"`
}

// TemplateUpdateRequest represents the payload for updating a template.
// Nil fields are left unchanged.
type TemplateUpdateRequest struct {
	Name        *string                   `json:"name,omitempty"`
	Subtitle    *string                   `json:"subtitle,omitempty"`
	Description *string                   `json:"description,omitempty"`
	Metrics     *[]storage.TemplateMetric `json:"metrics,omitempty"`
}

// TemplateForkRequest represents the payload for forking a template.
type TemplateForkRequest struct {
	Name string `json:"name,omitempty"`
}

func templateToResponse(t *storage.TemplateRecord) TemplateResponse {
	return TemplateResponse{
		ID:           t.ID,
		Name:         t.Name,
		Subtitle:     t.Subtitle,
		Description:  t.Description,
		Metrics:      t.Metrics,
		IsSystem:     t.IsSystem,
		ForkedFromID: t.ForkedFromID,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    t.UpdatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templates, err := h.templates.List(ctx)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list templates")
		return
	}

	resp := TemplateListResponse{Templates: make([]TemplateResponse, 0, len(templates))}
	for _, t := range templates {
		resp.Templates = append(resp.Templates, templateToResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/templates/{id}.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	template, err := h.templates.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get template")
		return
	}
	writeJSON(w, http.StatusOK, templateToResponse(template))
}

// Create handles POST /api/templates.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req TemplateCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	template := &storage.TemplateRecord{
		Name:        req.Name,
		Subtitle:    req.Subtitle,
		Description: req.Description,
		Metrics:     req.Metrics,
	}
	if err := h.templates.Create(ctx, template); err != nil {
		handleServiceError(w, ctx, err, "Failed to create template")
		return
	}

	created, err := h.templates.GetByID(ctx, template.ID)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load created template")
		return
	}

	logger.InfoContext(ctx, "template created", "template_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, templateToResponse(created))
}

// Fork handles POST /api/templates/{id}/fork.
func (h *TemplateHandler) Fork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req TemplateForkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	forked, err := h.templates.Fork(ctx, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to fork template")
		return
	}

	logger.InfoContext(ctx, "template forked", "template_id", forked.ID, "forked_from_id", forked.ForkedFromID)
	writeJSON(w, http.StatusCreated, templateToResponse(forked))
}

// Update handles PUT /api/templates/{id}.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req TemplateUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	template, err := h.templates.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get template")
		return
	}

	if req.Name != nil {
		template.Name = *req.Name
	}
	if req.Subtitle != nil {
		template.Subtitle = *req.Subtitle
	}
	if req.Description != nil {
		template.Description = *req.Description
	}
	if req.Metrics != nil {
		template.Metrics = *req.Metrics
	}

	if err := h.templates.Update(ctx, template); err != nil {
		handleServiceError(w, ctx, err, "Failed to update template")
		return
	}

	updated, err := h.templates.GetByID(ctx, template.ID)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load updated template")
		return
	}
	writeJSON(w, http.StatusOK, templateToResponse(updated))
}

// Delete handles DELETE /api/templates/{id}.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := chi.URLParam(r, "id")
	if err := h.templates.Delete(ctx, id); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete template")
		return
	}

	logger.InfoContext(ctx, "template deleted", "template_id", id)
	w.WriteHeader(http.StatusNoContent)
}
