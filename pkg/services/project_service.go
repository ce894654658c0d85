// Package services contains the business logic for pixloom-engine: project
// resolution, the generation flow and the model catalog.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
	"github.com/pixloom-ai/pixloom-engine/pkg/prompt"
	"github.com/pixloom-ai/pixloom-engine/pkg/repositories"
)

// defaultLocale is the pivot locale every fallback chain passes through.
const defaultLocale = "en"

// imageVariablePattern matches the positional image placeholders
// image1..imageN.
var imageVariablePattern = regexp.MustCompile(`^image[1-9][0-9]*$`)

// ResolvedProject is a project's configuration flattened for one locale.
// I18nContent carries the whole-document fallback pick for the same locale;
// nil when the project has no i18n rows.
type ResolvedProject struct {
	ID             uuid.UUID              `json:"id"`
	Slug           string                 `json:"slug"`
	Locale         string                 `json:"locale"`
	Name           string                 `json:"name"`
	Subtitle       string                 `json:"subtitle"`
	Description    string                 `json:"description"`
	PromptTemplate string                 `json:"promptTemplate"`
	Controls       models.ProjectControls `json:"controlsConfig"`
	UIConfig       models.JSONBMap        `json:"uiConfig"`
	Metadata       models.JSONBMap        `json:"metadata"`
	I18nContent    *models.ProjectI18n    `json:"i18nContent,omitempty"`
	UsageCount     int64                  `json:"usageCount"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// ProjectService defines project resolution and administration.
type ProjectService interface {
	// Resolve returns the active project's configuration flattened for the
	// requested locale. Missing and non-active projects both resolve to
	// apperrors.ErrNotFound.
	Resolve(ctx context.Context, slug, locale string) (*ResolvedProject, error)

	// ResolveI18n picks one whole i18n document for the locale. Unlike the
	// per-field resolution in Resolve, the fallback here never mixes locales
	// within a response.
	ResolveI18n(ctx context.Context, slug, locale string) (*models.ProjectI18n, error)

	// Invalidate drops every cached resolution for a slug.
	Invalidate(ctx context.Context, slug string) error

	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context, status string) ([]*models.Project, error)
	Archive(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	UpsertI18n(ctx context.Context, entry *models.ProjectI18n) error
}

// projectService implements ProjectService.
type projectService struct {
	projects repositories.ProjectRepository
	i18n     repositories.ProjectI18nRepository
	cache    *redis.Client
	cacheTTL time.Duration
	appName  string
	logger   *zap.Logger
}

// NewProjectService creates a new project service. A nil redis client
// disables caching. appName is the last-resort display name for projects with
// no localized name at all.
func NewProjectService(
	projects repositories.ProjectRepository,
	i18n repositories.ProjectI18nRepository,
	cache *redis.Client,
	cacheTTL time.Duration,
	appName string,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projects: projects,
		i18n:     i18n,
		cache:    cache,
		cacheTTL: cacheTTL,
		appName:  appName,
		logger:   logger.Named("projects"),
	}
}

// ResolveFieldWithFallback resolves one localized field: exact locale, then
// "en", then the first inserted entry, then the caller's fallback. Each field
// falls back independently, so a response may mix locales.
func ResolveFieldWithFallback(text models.LocalizedText, locale, fallback string) string {
	if v, ok := text.Get(locale); ok {
		return v
	}
	if v, ok := text.Get(defaultLocale); ok {
		return v
	}
	if v, ok := text.First(); ok {
		return v
	}
	return fallback
}

// ResolveDocumentWithFallback picks one whole i18n document: exact locale,
// then "en", then the earliest inserted document. Returns nil when entries is
// empty.
func ResolveDocumentWithFallback(entries []*models.ProjectI18n, locale string) *models.ProjectI18n {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.Locale == locale {
			return e
		}
	}
	for _, e := range entries {
		if e.Locale == defaultLocale {
			return e
		}
	}
	return entries[0]
}

// Resolve implements ProjectService.
func (s *projectService) Resolve(ctx context.Context, slug, locale string) (*ResolvedProject, error) {
	if locale == "" {
		locale = defaultLocale
	}

	if cached := s.cacheGet(ctx, slug, locale); cached != nil {
		return cached, nil
	}

	project, err := s.projects.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	// Drafts and archived projects are invisible to the public surface.
	if !project.IsActive() {
		return nil, apperrors.ErrNotFound
	}

	entries, err := s.i18n.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	resolved := &ResolvedProject{
		ID:             project.ID,
		Slug:           project.Slug,
		Locale:         locale,
		Name:           ResolveFieldWithFallback(project.Name, locale, s.appName),
		Subtitle:       ResolveFieldWithFallback(project.Subtitle, locale, ""),
		Description:    ResolveFieldWithFallback(project.Description, locale, ""),
		PromptTemplate: project.PromptTemplate,
		Controls:       project.Controls,
		UIConfig:       project.UIConfig,
		Metadata:       project.Metadata,
		I18nContent:    ResolveDocumentWithFallback(entries, locale),
		UsageCount:     project.UsageCount,
		CreatedAt:      project.CreatedAt,
	}

	s.cacheSet(ctx, slug, locale, resolved)
	return resolved, nil
}

// ResolveI18n implements ProjectService. Returns apperrors.ErrNotFound only
// when the project is missing, inactive, or has no i18n rows at all.
func (s *projectService) ResolveI18n(ctx context.Context, slug, locale string) (*models.ProjectI18n, error) {
	project, err := s.projects.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !project.IsActive() {
		return nil, apperrors.ErrNotFound
	}

	entries, err := s.i18n.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	doc := ResolveDocumentWithFallback(entries, locale)
	if doc == nil {
		return nil, apperrors.ErrNotFound
	}
	return doc, nil
}

// validateProject checks the control schema and that every prompt template
// variable can be satisfied at generation time: a control key, the free-text
// input or a positional image reference.
func validateProject(project *models.Project) error {
	if err := project.Controls.Validate(); err != nil {
		return fmt.Errorf("invalid controls config: %w", err)
	}

	known := make(map[string]string, len(project.Controls.Controls)+1)
	for _, c := range project.Controls.Controls {
		known[c.Key] = c.Key
	}
	known[textInputVariable] = textInputVariable

	var unknown []string
	for _, name := range prompt.Validate(project.PromptTemplate, known).MissingVariables {
		if imageVariablePattern.MatchString(name) {
			continue
		}
		unknown = append(unknown, name)
	}
	if len(unknown) > 0 {
		return fmt.Errorf("prompt template references undefined variables: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Create implements ProjectService.
func (s *projectService) Create(ctx context.Context, project *models.Project) error {
	if err := validateProject(project); err != nil {
		return err
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return err
	}
	s.logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("slug", project.Slug))
	return nil
}

// Update implements ProjectService.
func (s *projectService) Update(ctx context.Context, project *models.Project) error {
	if err := validateProject(project); err != nil {
		return err
	}
	if err := s.projects.Update(ctx, project); err != nil {
		return err
	}
	if err := s.Invalidate(ctx, project.Slug); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.String("slug", project.Slug), zap.Error(err))
	}
	return nil
}

// Get implements ProjectService.
func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.projects.GetByID(ctx, id)
}

// List implements ProjectService.
func (s *projectService) List(ctx context.Context, status string) ([]*models.Project, error) {
	return s.projects.List(ctx, status)
}

// Archive implements ProjectService. Archiving hides the project from the
// public surface; existing generation history stays intact.
func (s *projectService) Archive(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, models.ProjectStatusArchived)
}

// Restore implements ProjectService.
func (s *projectService) Restore(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, models.ProjectStatusActive)
}

func (s *projectService) setStatus(ctx context.Context, id uuid.UUID, status string) error {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.projects.SetStatus(ctx, id, status); err != nil {
		return err
	}
	if err := s.Invalidate(ctx, project.Slug); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.String("slug", project.Slug), zap.Error(err))
	}
	s.logger.Info("Project status changed",
		zap.String("project_id", id.String()),
		zap.String("status", status))
	return nil
}

// UpsertI18n implements ProjectService. The resolved-project cache embeds the
// i18n document, so a content change drops the slug's cached resolutions.
func (s *projectService) UpsertI18n(ctx context.Context, entry *models.ProjectI18n) error {
	if err := s.i18n.Upsert(ctx, entry); err != nil {
		return err
	}
	project, err := s.projects.GetByID(ctx, entry.ProjectID)
	if err != nil {
		s.logger.Warn("Could not look up project for cache invalidation",
			zap.String("project_id", entry.ProjectID.String()), zap.Error(err))
		return nil
	}
	if err := s.Invalidate(ctx, project.Slug); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.String("slug", project.Slug), zap.Error(err))
	}
	return nil
}

func cacheKey(slug, locale string) string {
	return fmt.Sprintf("pixloom:resolved:%s:%s", slug, locale)
}

func (s *projectService) cacheGet(ctx context.Context, slug, locale string) *ResolvedProject {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, cacheKey(slug, locale)).Bytes()
	if err != nil {
		return nil
	}
	var resolved ResolvedProject
	if err := json.Unmarshal(data, &resolved); err != nil {
		s.logger.Warn("Dropping undecodable cache entry", zap.String("slug", slug), zap.Error(err))
		s.cache.Del(ctx, cacheKey(slug, locale))
		return nil
	}
	return &resolved
}

func (s *projectService) cacheSet(ctx context.Context, slug, locale string, resolved *ResolvedProject) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(slug, locale), data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("Cache write failed", zap.String("slug", slug), zap.Error(err))
	}
}

// Invalidate implements ProjectService. All locales for the slug are dropped.
func (s *projectService) Invalidate(ctx context.Context, slug string) error {
	if s.cache == nil {
		return nil
	}

	pattern := fmt.Sprintf("pixloom:resolved:%s:*", slug)
	iter := s.cache.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cache keys: %w", err)
	}
	return nil
}
