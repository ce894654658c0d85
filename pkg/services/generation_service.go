package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/aiprovider"
	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/logging"
	"github.com/pixloom-ai/pixloom-engine/pkg/media"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
	"github.com/pixloom-ai/pixloom-engine/pkg/payments"
	"github.com/pixloom-ai/pixloom-engine/pkg/prompt"
	"github.com/pixloom-ai/pixloom-engine/pkg/repositories"
)

// textInputVariable is the variable key a free-form text input is merged
// under before substitution.
const textInputVariable = "text"

// InsufficientCreditsError carries the balance figures for the 400 response.
type InsufficientCreditsError struct {
	Current  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: have %s, need %s", e.Current, e.Required)
}

// Unwrap lets callers match with errors.Is(err, apperrors.ErrInsufficientCredits).
func (e *InsufficientCreditsError) Unwrap() error {
	return apperrors.ErrInsufficientCredits
}

// ProviderFactory creates provider clients by model type.
// Satisfied by *aiprovider.Factory; an interface so tests can inject mocks.
type ProviderFactory interface {
	Create(modelType aiprovider.ModelType, model string) (aiprovider.Provider, error)
}

// GenerateRequest is one generation submission.
type GenerateRequest struct {
	UserDID        string
	ProjectSlug    string
	ModelType      string
	ControlValues  map[string]interface{}
	OriginalImages []string
	TextInput      string
	Metadata       models.JSONBMap
}

// GenerateResult is the outcome of a completed generation.
type GenerateResult struct {
	GenerationID     uuid.UUID
	OriginalImages   []string
	GeneratedImg     string
	Prompt           string
	ProcessingTimeMs int64
	CreditsConsumed  decimal.Decimal
	NewBalance       decimal.Decimal
}

// HistoryStats aggregates a user's generation history for the history
// endpoint.
type HistoryStats struct {
	TotalGenerations     int64           `json:"totalGenerations"`
	CompletedGenerations int64           `json:"completedGenerations"`
	TotalCreditsSpent    decimal.Decimal `json:"totalCreditsSpent"`
	SuccessRate          float64         `json:"successRate"`
}

// GenerationService defines the generation flow operations.
type GenerationService interface {
	// Generate runs one end-to-end generation: credit check, record
	// insert, charge, AI invocation, upload and record completion. Single
	// attempt; a provider or upload failure marks the record failed and
	// refunds the charge with a promotional grant.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// History returns a page of the user's generations plus lifetime stats,
	// optionally scoped to one project slug.
	History(ctx context.Context, userDID, projectSlug string, limit, offset int) ([]*models.Generation, *HistoryStats, error)

	// Delete removes a generation. Only the owner may delete.
	Delete(ctx context.Context, userDID string, id uuid.UUID) error
}

// generationService implements GenerationService.
type generationService struct {
	projects    repositories.ProjectRepository
	generations repositories.GenerationRepository
	ledger      payments.Ledger
	providers   ProviderFactory
	catalog     *ModelCatalog
	uploader    media.Uploader
	cost        decimal.Decimal
	format      string
	logger      *zap.Logger
}

// NewGenerationService creates a new generation service. cost is the credits
// charged per generation; format the output image format (webp, jpeg, png).
func NewGenerationService(
	projects repositories.ProjectRepository,
	generations repositories.GenerationRepository,
	ledger payments.Ledger,
	providers ProviderFactory,
	catalog *ModelCatalog,
	uploader media.Uploader,
	cost decimal.Decimal,
	format string,
	logger *zap.Logger,
) GenerationService {
	return &generationService{
		projects:    projects,
		generations: generations,
		ledger:      ledger,
		providers:   providers,
		catalog:     catalog,
		uploader:    uploader,
		cost:        cost,
		format:      format,
		logger:      logger.Named("generation"),
	}
}

// Generate implements GenerationService.
//
// The balance check and the later debit are separate ledger calls, so two
// concurrent requests can both pass the check on the same balance. The ledger
// accepts the resulting negative balance; it is reconciled out of band.
func (s *generationService) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if !aiprovider.ValidModelType(req.ModelType) {
		return nil, fmt.Errorf("unsupported model type %q", req.ModelType)
	}

	project, err := s.projects.GetBySlug(ctx, req.ProjectSlug)
	if err != nil {
		return nil, err
	}
	if !project.IsActive() {
		return nil, apperrors.ErrProjectNotActive
	}

	balance, err := s.ledger.GetBalance(ctx, req.UserDID)
	if err != nil {
		return nil, fmt.Errorf("check balance: %w", err)
	}
	if balance.LessThan(s.cost) {
		return nil, &InsufficientCreditsError{Current: balance, Required: s.cost}
	}

	gen := &models.Generation{
		UserDID:        req.UserDID,
		ProjectID:      project.ID,
		Status:         models.GenerationStatusPending,
		ModelType:      req.ModelType,
		OriginalImages: req.OriginalImages,
		Metadata:       req.Metadata,
	}
	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, err
	}

	gen.Status = models.GenerationStatusProcessing
	if err := s.generations.Update(ctx, gen); err != nil {
		return nil, err
	}

	if err := s.ledger.CreateMeterEvent(ctx, req.UserDID, s.cost, gen.ID.String()); err != nil {
		s.markFailed(ctx, gen, fmt.Sprintf("credit charge failed: %v", err))
		return nil, fmt.Errorf("charge credits: %w", err)
	}
	gen.CreditsConsumed = s.cost

	// Merge into a copy so the caller's map is left alone.
	controlValues := make(map[string]interface{}, len(req.ControlValues)+1)
	for k, v := range req.ControlValues {
		controlValues[k] = v
	}
	if req.TextInput != "" {
		controlValues[textInputVariable] = req.TextInput
	}
	variables := prompt.BuildVariables(controlValues, req.OriginalImages)
	finalPrompt := prompt.Substitute(project.PromptTemplate, variables)
	gen.Prompt = finalPrompt

	start := time.Now()
	result, err := s.invoke(ctx, req, finalPrompt)
	if err != nil {
		s.failAndRefund(ctx, gen, err)
		return nil, err
	}

	filename, err := s.storeResult(ctx, gen.ID, result)
	if err != nil {
		s.failAndRefund(ctx, gen, err)
		return nil, err
	}

	gen.Status = models.GenerationStatusCompleted
	gen.GeneratedImg = filename
	gen.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err := s.generations.Update(ctx, gen); err != nil {
		return nil, err
	}

	if err := s.projects.IncrementUsage(ctx, project.ID); err != nil {
		s.logger.Warn("Usage count update failed",
			zap.String("project_id", project.ID.String()), zap.Error(err))
	}

	s.logger.Info("Generation completed",
		zap.String("generation_id", gen.ID.String()),
		zap.String("project", project.Slug),
		zap.String("model_type", req.ModelType),
		zap.Int64("elapsed_ms", gen.ProcessingTimeMs))

	return &GenerateResult{
		GenerationID:     gen.ID,
		OriginalImages:   req.OriginalImages,
		GeneratedImg:     filename,
		Prompt:           finalPrompt,
		ProcessingTimeMs: gen.ProcessingTimeMs,
		CreditsConsumed:  s.cost,
		NewBalance:       balance.Sub(s.cost),
	}, nil
}

// invoke runs the single provider attempt.
func (s *generationService) invoke(ctx context.Context, req *GenerateRequest, finalPrompt string) (*aiprovider.InvokeResult, error) {
	var model string
	if s.catalog != nil {
		model = s.catalog.DefaultModel(aiprovider.ModelType(req.ModelType))
	}
	provider, err := s.providers.Create(aiprovider.ModelType(req.ModelType), model)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Invoking provider",
		zap.String("provider", string(provider.Name())),
		zap.String("model", provider.Model()),
		zap.String("prompt", logging.TruncatePrompt(finalPrompt, 200)))

	return provider.Invoke(ctx, &aiprovider.InvokeRequest{
		Prompt: finalPrompt,
		Images: req.OriginalImages,
		Model:  model,
	})
}

// storeResult converts the first generated image to the configured output
// format and uploads it.
func (s *generationService) storeResult(ctx context.Context, id uuid.UUID, result *aiprovider.InvokeResult) (string, error) {
	if len(result.Images) == 0 {
		return "", fmt.Errorf("provider returned no images")
	}

	data, contentType, err := media.Convert(result.Images[0].Data, s.format)
	if err != nil {
		return "", fmt.Errorf("convert image: %w", err)
	}

	filename := id.String() + media.Extension(s.format)
	public, err := s.uploader.Upload(ctx, filename, data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return public, nil
}

// failAndRefund marks the generation failed and issues a compensating
// promotional grant for the already-debited charge.
func (s *generationService) failAndRefund(ctx context.Context, gen *models.Generation, cause error) {
	s.markFailed(ctx, gen, cause.Error())

	reason := "refund for failed generation " + gen.ID.String()
	if err := s.ledger.CreatePromotionGrant(ctx, gen.UserDID, s.cost, reason); err != nil {
		// The user has been charged for nothing. Loud log so support can
		// issue the grant manually.
		s.logger.Error("Refund failed after generation failure",
			zap.String("generation_id", gen.ID.String()),
			zap.String("user_did", gen.UserDID),
			zap.String("amount", s.cost.String()),
			zap.Error(err))
	}
}

func (s *generationService) markFailed(ctx context.Context, gen *models.Generation, message string) {
	gen.Status = models.GenerationStatusFailed
	gen.ErrorMessage = message
	if err := s.generations.Update(ctx, gen); err != nil {
		s.logger.Error("Failed to mark generation failed",
			zap.String("generation_id", gen.ID.String()), zap.Error(err))
	}
}

// History implements GenerationService. An unknown project slug resolves to
// apperrors.ErrNotFound rather than an empty page.
func (s *generationService) History(ctx context.Context, userDID, projectSlug string, limit, offset int) ([]*models.Generation, *HistoryStats, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var projectID *uuid.UUID
	if projectSlug != "" {
		project, err := s.projects.GetBySlug(ctx, projectSlug)
		if err != nil {
			return nil, nil, err
		}
		projectID = &project.ID
	}

	items, err := s.generations.ListByUser(ctx, userDID, projectID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	raw, err := s.generations.StatsByUser(ctx, userDID, projectID)
	if err != nil {
		return nil, nil, err
	}

	stats := &HistoryStats{
		TotalGenerations:     raw.TotalGenerations,
		CompletedGenerations: raw.CompletedGenerations,
		TotalCreditsSpent:    raw.TotalCreditsSpent,
	}
	if raw.TotalGenerations > 0 {
		stats.SuccessRate = float64(raw.CompletedGenerations) / float64(raw.TotalGenerations)
	}
	return items, stats, nil
}

// Delete implements GenerationService.
func (s *generationService) Delete(ctx context.Context, userDID string, id uuid.UUID) error {
	gen, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if gen.UserDID != userDID {
		return apperrors.ErrForbidden
	}
	return s.generations.Delete(ctx, id)
}
