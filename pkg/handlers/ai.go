package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	libinjection "github.com/corazawaf/libinjection-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/auth"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
	"github.com/pixloom-ai/pixloom-engine/pkg/services"
)

// AIHandler handles the generation endpoints.
type AIHandler struct {
	generations services.GenerationService
	catalog     *services.ModelCatalog
	authMw      *auth.Middleware
	logger      *zap.Logger
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(generations services.GenerationService, catalog *services.ModelCatalog, authMw *auth.Middleware, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		generations: generations,
		catalog:     catalog,
		authMw:      authMw,
		logger:      logger,
	}
}

// RegisterRoutes registers the AI routes on the given mux.
func (h *AIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ai/generate", h.authMw.RequireAuth(h.Generate))
	mux.HandleFunc("GET /api/ai/history", h.authMw.RequireAuth(h.History))
	mux.HandleFunc("DELETE /api/ai/generation/{id}", h.authMw.RequireAuth(h.DeleteGeneration))
	mux.HandleFunc("GET /api/ai/models", h.ListModels)
}

type generateRequest struct {
	ControlValues  map[string]interface{} `json:"controlValues,omitempty"`
	OriginalImg    string                 `json:"originalImg,omitempty"`
	OriginalImages []string               `json:"originalImages,omitempty"`
	TextInput      string                 `json:"textInput,omitempty"`
	ClientID       string                 `json:"clientId"`
	ModelType      string                 `json:"modelType"`
	Metadata       models.JSONBMap        `json:"metadata,omitempty"`
}

type generateResponse struct {
	GenerationID     string      `json:"generationId"`
	OriginalImg      string      `json:"originalImg,omitempty"`
	OriginalImages   []string    `json:"originalImages"`
	GeneratedImg     string      `json:"generatedImg"`
	ProcessingTimeMs int64       `json:"processingTimeMs"`
	CreditsConsumed  json.Number `json:"creditsConsumed"`
	NewBalance       json.Number `json:"newBalance"`
	Status           string      `json:"status"`
	Message          string      `json:"message"`
	Prompt           string      `json:"prompt"`
}

// validationError writes a 400 with the offending field details.
func validationError(w http.ResponseWriter, message string, details []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   "validation_failed",
		"message": message,
		"details": details,
	})
}

// screenInputs rejects request fields carrying XSS payloads. Prompts reach
// admin dashboards verbatim, so injection screening happens at the edge.
func screenInputs(req *generateRequest) []string {
	var tainted []string
	if libinjection.IsXSS(req.TextInput) {
		tainted = append(tainted, "textInput")
	}
	for key, value := range req.ControlValues {
		if s, ok := value.(string); ok && libinjection.IsXSS(s) {
			tainted = append(tainted, "controlValues."+key)
		}
	}
	return tainted
}

// Generate handles POST /api/ai/generate.
func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userDID, err := auth.RequireUserDID(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var missing []string
	if req.ClientID == "" {
		missing = append(missing, "clientId")
	}
	if req.ModelType == "" {
		missing = append(missing, "modelType")
	}
	if len(missing) > 0 {
		validationError(w, "missing required fields", missing)
		return
	}
	if tainted := screenInputs(&req); len(tainted) > 0 {
		h.logger.Warn("Rejected generation input failing XSS screen",
			zap.String("user_did", userDID),
			zap.Strings("fields", tainted))
		validationError(w, "input rejected by content screening", tainted)
		return
	}

	images := req.OriginalImages
	if len(images) == 0 && req.OriginalImg != "" {
		images = []string{req.OriginalImg}
	}

	result, err := h.generations.Generate(r.Context(), &services.GenerateRequest{
		UserDID:        userDID,
		ProjectSlug:    req.ClientID,
		ModelType:      req.ModelType,
		ControlValues:  req.ControlValues,
		OriginalImages: images,
		TextInput:      req.TextInput,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.writeGenerateError(w, err)
		return
	}

	resp := generateResponse{
		GenerationID:     result.GenerationID.String(),
		OriginalImg:      req.OriginalImg,
		OriginalImages:   result.OriginalImages,
		GeneratedImg:     result.GeneratedImg,
		ProcessingTimeMs: result.ProcessingTimeMs,
		CreditsConsumed:  json.Number(result.CreditsConsumed.String()),
		NewBalance:       json.Number(result.NewBalance.String()),
		Status:           models.GenerationStatusCompleted,
		Message:          "generation completed",
		Prompt:           result.Prompt,
	}
	if err := WriteSuccess(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode generate response", zap.Error(err))
	}
}

// writeGenerateError maps service failures onto the public error contract.
func (h *AIHandler) writeGenerateError(w http.ResponseWriter, err error) {
	var insufficient *services.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error":    "insufficient_credits",
			"message":  insufficient.Error(),
			"current":  insufficient.Current.String(),
			"required": insufficient.Required.String(),
		})
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "project not found")
	case errors.Is(err, apperrors.ErrProjectNotActive):
		_ = ErrorResponse(w, http.StatusBadRequest, "project_not_active", "project is not active")
	default:
		h.logger.Error("Generation failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadRequest, "generation_failed", err.Error())
	}
}

type historyResponse struct {
	Items      []*models.Generation   `json:"items"`
	Statistics *services.HistoryStats `json:"statistics"`
}

// History handles GET /api/ai/history?clientId&limit&offset. clientId scopes
// the page and statistics to one project; absent, the whole account is
// returned.
func (h *AIHandler) History(w http.ResponseWriter, r *http.Request) {
	userDID, err := auth.RequireUserDID(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	clientID := r.URL.Query().Get("clientId")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, stats, err := h.generations.History(r.Context(), userDID, clientID, limit, offset)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		h.logger.Error("History query failed", zap.String("user_did", userDID), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}
	if items == nil {
		items = []*models.Generation{}
	}

	if err := WriteSuccess(w, http.StatusOK, historyResponse{Items: items, Statistics: stats}); err != nil {
		h.logger.Error("Failed to encode history response", zap.Error(err))
	}
}

// DeleteGeneration handles DELETE /api/ai/generation/{id}. Owner only.
func (h *AIHandler) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	userDID, err := auth.RequireUserDID(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid generation id")
		return
	}

	if err := h.generations.Delete(r.Context(), userDID, id); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			_ = ErrorResponse(w, http.StatusForbidden, "forbidden", "generation belongs to another user")
		case errors.Is(err, apperrors.ErrNotFound):
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "generation not found")
		default:
			h.logger.Error("Generation delete failed", zap.String("id", id.String()), zap.Error(err))
			_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to delete generation")
		}
		return
	}

	if err := WriteSuccess(w, http.StatusOK, map[string]string{"id": id.String()}); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

// ListModels handles GET /api/ai/models.
func (h *AIHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	entries := h.catalog.Models()
	if err := WriteSuccess(w, http.StatusOK, map[string]interface{}{"models": entries}); err != nil {
		h.logger.Error("Failed to encode models response", zap.Error(err))
	}
}
