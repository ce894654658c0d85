package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
	"github.com/pixloom-ai/pixloom-engine/pkg/services"
)

func newAIMux(svc services.GenerationService, did string) *http.ServeMux {
	mux := http.NewServeMux()
	catalog, _ := services.NewModelCatalog("", zap.NewNop())
	NewAIHandler(svc, catalog, testAuthMiddleware(did), zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func completedResult() *services.GenerateResult {
	return &services.GenerateResult{
		GenerationID:     uuid.New(),
		OriginalImages:   []string{"https://cdn.example.com/in.png"},
		GeneratedImg:     "out.webp",
		Prompt:           "A portrait",
		ProcessingTimeMs: 1200,
		CreditsConsumed:  decimal.NewFromInt(1),
		NewBalance:       decimal.NewFromInt(4),
	}
}

func TestGenerateSuccess(t *testing.T) {
	svc := &stubGenerationService{
		generateFunc: func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
			return completedResult(), nil
		},
	}
	mux := newAIMux(svc, "did:user:alice")

	body := `{"clientId":"portrait","modelType":"gemini","textInput":"a dog","originalImg":"https://cdn.example.com/in.png"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Status          string      `json:"status"`
			GeneratedImg    string      `json:"generatedImg"`
			NewBalance      json.Number `json:"newBalance"`
			CreditsConsumed json.Number `json:"creditsConsumed"`
			OriginalImages  []string    `json:"originalImages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != models.GenerationStatusCompleted {
		t.Errorf("status field = %q", envelope.Data.Status)
	}
	if envelope.Data.NewBalance != "4" {
		t.Errorf("newBalance = %q", envelope.Data.NewBalance)
	}

	// originalImg was promoted into the images slice for the service call.
	if len(svc.lastGenerate.OriginalImages) != 1 {
		t.Errorf("service images = %v", svc.lastGenerate.OriginalImages)
	}
	if svc.lastGenerate.UserDID != "did:user:alice" {
		t.Errorf("user DID = %q", svc.lastGenerate.UserDID)
	}
}

func TestGenerateRequiresAuth(t *testing.T) {
	mux := newAIMux(&stubGenerationService{}, "")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(`{}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateMissingFields(t *testing.T) {
	mux := newAIMux(&stubGenerationService{}, "did:user:alice")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(`{"textInput":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error != "validation_failed" {
		t.Errorf("error = %q", body.Error)
	}
	if len(body.Details) != 2 {
		t.Errorf("details = %v, want clientId and modelType", body.Details)
	}
}

func TestGenerateRejectsXSSInput(t *testing.T) {
	svc := &stubGenerationService{
		generateFunc: func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
			t.Fatal("service must not be called for screened input")
			return nil, nil
		},
	}
	mux := newAIMux(svc, "did:user:alice")

	body := `{"clientId":"portrait","modelType":"gemini","textInput":"<script>alert(1)</script>"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Details []string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Details) != 1 || resp.Details[0] != "textInput" {
		t.Errorf("details = %v", resp.Details)
	}
}

func TestGenerateInsufficientCreditsMapping(t *testing.T) {
	svc := &stubGenerationService{
		generateFunc: func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
			return nil, &services.InsufficientCreditsError{
				Current:  decimal.NewFromFloat(0.5),
				Required: decimal.NewFromInt(1),
			}
		},
	}
	mux := newAIMux(svc, "did:user:alice")

	body := `{"clientId":"portrait","modelType":"gemini"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "insufficient_credits" {
		t.Errorf("error = %v", resp["error"])
	}
	if resp["current"] != "0.5" || resp["required"] != "1" {
		t.Errorf("balance fields = %v / %v", resp["current"], resp["required"])
	}
}

func TestGenerateProjectNotFound(t *testing.T) {
	svc := &stubGenerationService{
		generateFunc: func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
			return nil, apperrors.ErrNotFound
		},
	}
	mux := newAIMux(svc, "did:user:alice")

	body := `{"clientId":"missing","modelType":"gemini"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(body)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	svc := &stubGenerationService{
		historyFunc: func(ctx context.Context, userDID, projectSlug string, limit, offset int) ([]*models.Generation, *services.HistoryStats, error) {
			return []*models.Generation{{UserDID: userDID, Status: models.GenerationStatusCompleted}},
				&services.HistoryStats{TotalGenerations: 1, CompletedGenerations: 1, SuccessRate: 1}, nil
		},
	}
	mux := newAIMux(svc, "did:user:alice")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ai/history?clientId=portrait&limit=10&offset=0", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastHistorySlug != "portrait" {
		t.Errorf("clientId forwarded as %q, want portrait", svc.lastHistorySlug)
	}

	var envelope struct {
		Data struct {
			Items      []models.Generation   `json:"items"`
			Statistics services.HistoryStats `json:"statistics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Errorf("items = %d", len(envelope.Data.Items))
	}
	if envelope.Data.Statistics.SuccessRate != 1 {
		t.Errorf("success rate = %v", envelope.Data.Statistics.SuccessRate)
	}
}

func TestHistoryUnknownClientID(t *testing.T) {
	svc := &stubGenerationService{
		historyFunc: func(ctx context.Context, userDID, projectSlug string, limit, offset int) ([]*models.Generation, *services.HistoryStats, error) {
			return nil, nil, apperrors.ErrNotFound
		},
	}
	mux := newAIMux(svc, "did:user:alice")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ai/history?clientId=missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteGeneration(t *testing.T) {
	tests := []struct {
		name       string
		deleteErr  error
		wantStatus int
	}{
		{"owner delete", nil, http.StatusOK},
		{"foreign generation", apperrors.ErrForbidden, http.StatusForbidden},
		{"missing generation", apperrors.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubGenerationService{
				deleteFunc: func(ctx context.Context, userDID string, id uuid.UUID) error {
					return tt.deleteErr
				},
			}
			mux := newAIMux(svc, "did:user:alice")

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/ai/generation/"+uuid.NewString(), nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestDeleteGenerationBadID(t *testing.T) {
	mux := newAIMux(&stubGenerationService{}, "did:user:alice")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/ai/generation/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
