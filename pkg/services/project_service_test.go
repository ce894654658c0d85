package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
)

func TestResolveFieldWithFallback(t *testing.T) {
	tests := []struct {
		name     string
		text     models.LocalizedText
		locale   string
		fallback string
		want     string
	}{
		{
			name:   "exact match",
			text:   models.NewLocalizedText("en", "Hello", "zh", "你好"),
			locale: "zh",
			want:   "你好",
		},
		{
			name:   "falls back to en",
			text:   models.NewLocalizedText("en", "Hello", "fr", "Bonjour"),
			locale: "zh",
			want:   "Hello",
		},
		{
			name:   "falls back to first inserted without en",
			text:   models.NewLocalizedText("ja", "こんにちは", "fr", "Bonjour"),
			locale: "zh",
			want:   "こんにちは",
		},
		{
			name:     "empty map uses caller fallback",
			text:     models.LocalizedText{},
			locale:   "zh",
			fallback: "default",
			want:     "default",
		},
		{
			name:   "empty string value counts as present",
			text:   models.NewLocalizedText("zh", "", "en", "Hello"),
			locale: "zh",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveFieldWithFallback(tt.text, tt.locale, tt.fallback); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDocumentWithFallback(t *testing.T) {
	ja := &models.ProjectI18n{Locale: "ja", ButtonLabel: "生成"}
	en := &models.ProjectI18n{Locale: "en", ButtonLabel: "Generate"}
	fr := &models.ProjectI18n{Locale: "fr", ButtonLabel: "Générer"}

	tests := []struct {
		name    string
		entries []*models.ProjectI18n
		locale  string
		want    *models.ProjectI18n
	}{
		{"exact", []*models.ProjectI18n{ja, en, fr}, "fr", fr},
		{"en fallback", []*models.ProjectI18n{ja, en, fr}, "zh", en},
		{"first inserted fallback", []*models.ProjectI18n{ja, fr}, "zh", ja},
		{"empty", nil, "en", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveDocumentWithFallback(tt.entries, tt.locale); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func newTestProject(slug, status string) *models.Project {
	return &models.Project{
		ID:             uuid.New(),
		Slug:           slug,
		Status:         status,
		Name:           models.NewLocalizedText("en", "Portrait Studio", "zh", "肖像工作室"),
		Subtitle:       models.NewLocalizedText("zh", "专业肖像"),
		PromptTemplate: "A portrait of {{subject}} using {{image1}}",
	}
}

func TestResolveActiveProject(t *testing.T) {
	repo := newMockProjectRepo(newTestProject("portrait", models.ProjectStatusActive))
	svc := NewProjectService(repo, newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())

	resolved, err := svc.Resolve(context.Background(), "portrait", "zh")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Name != "肖像工作室" {
		t.Errorf("name = %q", resolved.Name)
	}
	// zh subtitle exists; exact match wins even though en is absent.
	if resolved.Subtitle != "专业肖像" {
		t.Errorf("subtitle = %q", resolved.Subtitle)
	}
	if resolved.PromptTemplate == "" {
		t.Error("prompt template missing from resolution")
	}
}

func TestResolveMixesLocalesPerField(t *testing.T) {
	repo := newMockProjectRepo(newTestProject("portrait", models.ProjectStatusActive))
	svc := NewProjectService(repo, newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())

	resolved, err := svc.Resolve(context.Background(), "portrait", "fr")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Name != "Portrait Studio" {
		t.Errorf("name should fall back to en, got %q", resolved.Name)
	}
	if resolved.Subtitle != "专业肖像" {
		t.Errorf("subtitle should fall back to first inserted, got %q", resolved.Subtitle)
	}
}

func TestResolveIncludesI18nAndMetadata(t *testing.T) {
	project := newTestProject("portrait", models.ProjectStatusActive)
	project.Metadata = models.JSONBMap{"category": "portrait"}
	project.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	i18n := newMockI18nRepo()
	_ = i18n.Upsert(context.Background(), &models.ProjectI18n{
		ProjectID: project.ID, Locale: "ja", ButtonLabel: "生成",
	})
	_ = i18n.Upsert(context.Background(), &models.ProjectI18n{
		ProjectID: project.ID, Locale: "en", ButtonLabel: "Generate",
	})
	svc := NewProjectService(newMockProjectRepo(project), i18n, nil, 0, "PixLoom", zap.NewNop())

	resolved, err := svc.Resolve(context.Background(), "portrait", "zh")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// The embedded i18n document follows whole-document fallback: zh → en.
	if resolved.I18nContent == nil || resolved.I18nContent.Locale != "en" {
		t.Errorf("i18n content = %+v, want en document", resolved.I18nContent)
	}
	if resolved.Metadata["category"] != "portrait" {
		t.Errorf("metadata = %v", resolved.Metadata)
	}
	if !resolved.CreatedAt.Equal(project.CreatedAt) {
		t.Errorf("created at = %v", resolved.CreatedAt)
	}
}

func TestResolveWithoutI18nRows(t *testing.T) {
	project := newTestProject("portrait", models.ProjectStatusActive)
	svc := NewProjectService(newMockProjectRepo(project), newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())

	resolved, err := svc.Resolve(context.Background(), "portrait", "en")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.I18nContent != nil {
		t.Errorf("i18n content = %+v, want nil", resolved.I18nContent)
	}
}

func TestResolveHidesInactiveProjects(t *testing.T) {
	for _, status := range []string{models.ProjectStatusDraft, models.ProjectStatusArchived} {
		repo := newMockProjectRepo(newTestProject("hidden", status))
		svc := NewProjectService(repo, newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())

		_, err := svc.Resolve(context.Background(), "hidden", "en")
		if !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("status %s: err = %v, want ErrNotFound", status, err)
		}
	}
}

func TestResolveUnknownSlug(t *testing.T) {
	svc := NewProjectService(newMockProjectRepo(), newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())
	if _, err := svc.Resolve(context.Background(), "missing", "en"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveI18nDocumentFallback(t *testing.T) {
	project := newTestProject("portrait", models.ProjectStatusActive)
	repo := newMockProjectRepo(project)
	i18n := newMockI18nRepo()
	_ = i18n.Upsert(context.Background(), &models.ProjectI18n{
		ProjectID: project.ID, Locale: "ja", ButtonLabel: "生成", SEOTitle: "タイトル",
	})
	_ = i18n.Upsert(context.Background(), &models.ProjectI18n{
		ProjectID: project.ID, Locale: "en", ButtonLabel: "Generate", SEOTitle: "Title",
	})
	svc := NewProjectService(repo, i18n, nil, 0, "PixLoom", zap.NewNop())

	// Whole-document fallback: zh has no row so the en document is returned
	// intact, never a mix of fields.
	doc, err := svc.ResolveI18n(context.Background(), "portrait", "zh")
	if err != nil {
		t.Fatalf("ResolveI18n: %v", err)
	}
	if doc.Locale != "en" || doc.ButtonLabel != "Generate" || doc.SEOTitle != "Title" {
		t.Errorf("resolved document = %+v", doc)
	}
}

func TestResolveI18nNoRowsIsNotFound(t *testing.T) {
	project := newTestProject("portrait", models.ProjectStatusActive)
	svc := NewProjectService(newMockProjectRepo(project), newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())

	if _, err := svc.ResolveI18n(context.Background(), "portrait", "en"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound when project has zero i18n rows", err)
	}
}

func TestArchiveAndRestore(t *testing.T) {
	project := newTestProject("portrait", models.ProjectStatusActive)
	repo := newMockProjectRepo(project)
	svc := NewProjectService(repo, newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())
	ctx := context.Background()

	if err := svc.Archive(ctx, project.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if _, err := svc.Resolve(ctx, "portrait", "en"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("archived project still resolvable: %v", err)
	}

	if err := svc.Restore(ctx, project.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := svc.Resolve(ctx, "portrait", "en"); err != nil {
		t.Errorf("restored project not resolvable: %v", err)
	}
}

func TestCreateRejectsInvalidControls(t *testing.T) {
	svc := NewProjectService(newMockProjectRepo(), newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())

	project := newTestProject("bad", models.ProjectStatusDraft)
	project.Controls = models.ProjectControls{
		Controls: []models.Control{
			{Key: "style", Type: models.ControlTypeSelect, Select: &models.SelectControl{Options: []models.SelectOption{{Value: "a"}}}},
			{Key: "style", Type: models.ControlTypeSelect, Select: &models.SelectControl{Options: []models.SelectOption{{Value: "b"}}}},
		},
	}
	if err := svc.Create(context.Background(), project); err == nil {
		t.Fatal("expected duplicate control key to be rejected")
	}
}

func TestCreateValidatesTemplateVariables(t *testing.T) {
	svc := NewProjectService(newMockProjectRepo(), newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())
	ctx := context.Background()

	styleControl := models.Control{
		Key:    "style",
		Type:   models.ControlTypeSelect,
		Select: &models.SelectControl{Options: []models.SelectOption{{Value: "anime"}}},
	}

	// Control keys, the free-text input and positional image references are
	// all satisfiable at generation time.
	valid := newTestProject("portrait", models.ProjectStatusDraft)
	valid.Controls = models.ProjectControls{Controls: []models.Control{styleControl}}
	valid.PromptTemplate = "A {{style}} image of {{text}} from {{image2}}"
	if err := svc.Create(ctx, valid); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}

	invalid := newTestProject("broken", models.ProjectStatusDraft)
	invalid.PromptTemplate = "A {{style}} image" // no style control defined
	if err := svc.Create(ctx, invalid); err == nil {
		t.Fatal("template with undefined variable accepted")
	}
}

func TestUpdateValidatesTemplateVariables(t *testing.T) {
	project := newTestProject("portrait", models.ProjectStatusActive)
	project.PromptTemplate = "A portrait of {{text}}"
	svc := NewProjectService(newMockProjectRepo(project), newMockI18nRepo(), nil, 0, "PixLoom", zap.NewNop())

	project.PromptTemplate = "A portrait in {{mood}} light"
	if err := svc.Update(context.Background(), project); err == nil {
		t.Fatal("update introducing an undefined variable accepted")
	}
}
