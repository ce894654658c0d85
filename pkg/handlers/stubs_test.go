package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/auth"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
	"github.com/pixloom-ai/pixloom-engine/pkg/services"
)

// stubProjectService implements services.ProjectService with function fields.
type stubProjectService struct {
	resolveFunc     func(ctx context.Context, slug, locale string) (*services.ResolvedProject, error)
	resolveI18nFunc func(ctx context.Context, slug, locale string) (*models.ProjectI18n, error)
	createFunc      func(ctx context.Context, p *models.Project) error
	updateFunc      func(ctx context.Context, p *models.Project) error
	archiveFunc     func(ctx context.Context, id uuid.UUID) error
}

func (s *stubProjectService) Resolve(ctx context.Context, slug, locale string) (*services.ResolvedProject, error) {
	return s.resolveFunc(ctx, slug, locale)
}

func (s *stubProjectService) ResolveI18n(ctx context.Context, slug, locale string) (*models.ProjectI18n, error) {
	return s.resolveI18nFunc(ctx, slug, locale)
}

func (s *stubProjectService) Invalidate(ctx context.Context, slug string) error { return nil }

func (s *stubProjectService) Create(ctx context.Context, p *models.Project) error {
	if s.createFunc != nil {
		return s.createFunc(ctx, p)
	}
	return nil
}

func (s *stubProjectService) Update(ctx context.Context, p *models.Project) error {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, p)
	}
	return nil
}

func (s *stubProjectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProjectService) List(ctx context.Context, status string) ([]*models.Project, error) {
	return nil, nil
}

func (s *stubProjectService) Archive(ctx context.Context, id uuid.UUID) error {
	if s.archiveFunc != nil {
		return s.archiveFunc(ctx, id)
	}
	return nil
}

func (s *stubProjectService) Restore(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubProjectService) UpsertI18n(ctx context.Context, e *models.ProjectI18n) error {
	return nil
}

var _ services.ProjectService = (*stubProjectService)(nil)

// stubGenerationService implements services.GenerationService.
type stubGenerationService struct {
	generateFunc func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error)
	historyFunc  func(ctx context.Context, userDID, projectSlug string, limit, offset int) ([]*models.Generation, *services.HistoryStats, error)
	deleteFunc   func(ctx context.Context, userDID string, id uuid.UUID) error

	lastGenerate    *services.GenerateRequest
	lastHistorySlug string
}

func (s *stubGenerationService) Generate(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
	s.lastGenerate = req
	return s.generateFunc(ctx, req)
}

func (s *stubGenerationService) History(ctx context.Context, userDID, projectSlug string, limit, offset int) ([]*models.Generation, *services.HistoryStats, error) {
	s.lastHistorySlug = projectSlug
	return s.historyFunc(ctx, userDID, projectSlug, limit, offset)
}

func (s *stubGenerationService) Delete(ctx context.Context, userDID string, id uuid.UUID) error {
	return s.deleteFunc(ctx, userDID, id)
}

var _ services.GenerationService = (*stubGenerationService)(nil)

// stubValidator authenticates every request as the given DID; an empty DID
// rejects.
type stubValidator struct {
	did string
}

func (v *stubValidator) ValidateRequest(r *http.Request) (*auth.Claims, error) {
	if v.did == "" {
		return nil, errors.New("no token")
	}
	return &auth.Claims{DID: v.did}, nil
}

func testAuthMiddleware(did string) *auth.Middleware {
	return auth.NewMiddleware(&stubValidator{did: did}, zap.NewNop())
}
