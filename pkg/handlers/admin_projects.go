package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/auth"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
	"github.com/pixloom-ai/pixloom-engine/pkg/services"
)

// AdminProjectHandler handles project administration endpoints. All routes
// require an authenticated caller; finer-grained authorization is the
// gateway's concern.
type AdminProjectHandler struct {
	projects services.ProjectService
	catalog  *services.ModelCatalog
	authMw   *auth.Middleware
	logger   *zap.Logger
}

// NewAdminProjectHandler creates a new AdminProjectHandler.
func NewAdminProjectHandler(projects services.ProjectService, catalog *services.ModelCatalog, authMw *auth.Middleware, logger *zap.Logger) *AdminProjectHandler {
	return &AdminProjectHandler{
		projects: projects,
		catalog:  catalog,
		authMw:   authMw,
		logger:   logger,
	}
}

// RegisterRoutes registers the admin routes on the given mux.
func (h *AdminProjectHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/admin/projects", h.authMw.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/admin/projects", h.authMw.RequireAuth(h.List))
	mux.HandleFunc("GET /api/admin/projects/{id}", h.authMw.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/admin/projects/{id}", h.authMw.RequireAuth(h.Update))
	mux.HandleFunc("POST /api/admin/projects/{id}/archive", h.authMw.RequireAuth(h.Archive))
	mux.HandleFunc("POST /api/admin/projects/{id}/restore", h.authMw.RequireAuth(h.Restore))
	mux.HandleFunc("PUT /api/admin/projects/{id}/i18n/{locale}", h.authMw.RequireAuth(h.UpsertI18n))
	mux.HandleFunc("POST /api/admin/models/refresh", h.authMw.RequireAuth(h.RefreshModels))
}

// Create handles POST /api/admin/projects.
func (h *AdminProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var project models.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if project.Slug == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "slug is required")
		return
	}

	if err := h.projects.Create(r.Context(), &project); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			_ = ErrorResponse(w, http.StatusConflict, "conflict", err.Error())
			return
		}
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := WriteSuccess(w, http.StatusCreated, &project); err != nil {
		h.logger.Error("Failed to encode project response", zap.Error(err))
	}
}

// List handles GET /api/admin/projects?status=xx.
func (h *AdminProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidStatus(status) {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "unknown status filter")
		return
	}

	projects, err := h.projects.List(r.Context(), status)
	if err != nil {
		h.logger.Error("Project list failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list projects")
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}

	if err := WriteSuccess(w, http.StatusOK, projects); err != nil {
		h.logger.Error("Failed to encode project list", zap.Error(err))
	}
}

// Get handles GET /api/admin/projects/{id}. Unlike the public endpoint this
// returns the raw localized maps and works for any lifecycle state.
func (h *AdminProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), id)
	if err != nil {
		h.writeProjectError(w, id, err)
		return
	}

	if err := WriteSuccess(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to encode project response", zap.Error(err))
	}
}

// Update handles PUT /api/admin/projects/{id}.
func (h *AdminProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var project models.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	project.ID = id

	if err := h.projects.Update(r.Context(), &project); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "project not found")
		case errors.Is(err, apperrors.ErrConflict):
			_ = ErrorResponse(w, http.StatusConflict, "conflict", err.Error())
		default:
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		}
		return
	}

	if err := WriteSuccess(w, http.StatusOK, &project); err != nil {
		h.logger.Error("Failed to encode project response", zap.Error(err))
	}
}

// Archive handles POST /api/admin/projects/{id}/archive.
func (h *AdminProjectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.projects.Archive)
}

// Restore handles POST /api/admin/projects/{id}/restore.
func (h *AdminProjectHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.projects.Restore)
}

func (h *AdminProjectHandler) setStatus(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) error) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.writeProjectError(w, id, err)
		return
	}
	if err := WriteSuccess(w, http.StatusOK, map[string]string{"id": id.String()}); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

// UpsertI18n handles PUT /api/admin/projects/{id}/i18n/{locale}.
func (h *AdminProjectHandler) UpsertI18n(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	locale := r.PathValue("locale")
	if locale == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "locale is required")
		return
	}

	var entry models.ProjectI18n
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	entry.ProjectID = id
	entry.Locale = locale

	if err := h.projects.UpsertI18n(r.Context(), &entry); err != nil {
		h.logger.Error("I18n upsert failed", zap.String("project_id", id.String()), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to save localized content")
		return
	}

	if err := WriteSuccess(w, http.StatusOK, &entry); err != nil {
		h.logger.Error("Failed to encode i18n response", zap.Error(err))
	}
}

// RefreshModels handles POST /api/admin/models/refresh.
func (h *AdminProjectHandler) RefreshModels(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(); err != nil {
		h.logger.Error("Model catalog refresh failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to refresh model catalog")
		return
	}
	if err := WriteSuccess(w, http.StatusOK, map[string]interface{}{"models": h.catalog.Models()}); err != nil {
		h.logger.Error("Failed to encode models response", zap.Error(err))
	}
}

func (h *AdminProjectHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid project id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *AdminProjectHandler) writeProjectError(w http.ResponseWriter, id uuid.UUID, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "project not found")
		return
	}
	h.logger.Error("Project operation failed", zap.String("project_id", id.String()), zap.Error(err))
	_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "project operation failed")
}
