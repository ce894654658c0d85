package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/services"
)

// ProjectHandler handles the public project configuration endpoints.
type ProjectHandler struct {
	projects services.ProjectService
	logger   *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projects services.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// RegisterRoutes registers the public project routes on the given mux.
func (h *ProjectHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/by-slug/{slug}", h.GetBySlug)
	mux.HandleFunc("GET /api/projects/by-slug/{slug}/i18n", h.GetI18n)
	mux.HandleFunc("GET /api/projects/by-slug/{slug}/i18n/{locale}", h.GetI18n)
}

// GetBySlug handles GET /api/projects/by-slug/{slug}?locale=xx.
// Returns the project configuration flattened for the requested locale.
func (h *ProjectHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	locale := r.URL.Query().Get("locale")

	resolved, err := h.projects.Resolve(r.Context(), slug, locale)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		h.logger.Error("Project resolution failed", zap.String("slug", slug), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to resolve project")
		return
	}

	if err := WriteSuccess(w, http.StatusOK, resolved); err != nil {
		h.logger.Error("Failed to encode project response", zap.Error(err))
	}
}

// GetI18n handles GET /api/projects/by-slug/{slug}/i18n[/{locale}].
// Picks one whole localized document; 404 only when the project has no
// localized content at all.
func (h *ProjectHandler) GetI18n(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	locale := r.PathValue("locale")
	if locale == "" {
		locale = r.URL.Query().Get("locale")
	}

	doc, err := h.projects.ResolveI18n(r.Context(), slug, locale)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "no localized content for project")
			return
		}
		h.logger.Error("I18n resolution failed", zap.String("slug", slug), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to resolve localized content")
		return
	}

	if err := WriteSuccess(w, http.StatusOK, doc); err != nil {
		h.logger.Error("Failed to encode i18n response", zap.Error(err))
	}
}
