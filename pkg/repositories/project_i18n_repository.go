package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pixloom-ai/pixloom-engine/pkg/database"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
)

// ProjectI18nRepository defines the interface for per-locale supplementary
// content.
type ProjectI18nRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectI18n, error)
	Upsert(ctx context.Context, entry *models.ProjectI18n) error
	Delete(ctx context.Context, projectID uuid.UUID, locale string) error
}

// projectI18nRepository implements ProjectI18nRepository using PostgreSQL.
type projectI18nRepository struct {
	db *database.DB
}

// NewProjectI18nRepository creates a new project i18n repository.
func NewProjectI18nRepository(db *database.DB) ProjectI18nRepository {
	return &projectI18nRepository{db: db}
}

// ListByProject retrieves every i18n row for a project ordered by insertion
// time. Ordering matters: document fallback uses the earliest row as the last
// resort.
func (r *projectI18nRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectI18n, error) {
	query := `
		SELECT id, project_id, locale, button_label, seo_title, seo_description,
		       help_content, created_at, updated_at
		FROM project_i18n
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project i18n: %w", err)
	}
	defer rows.Close()

	var entries []*models.ProjectI18n
	for rows.Next() {
		var e models.ProjectI18n
		err := rows.Scan(
			&e.ID,
			&e.ProjectID,
			&e.Locale,
			&e.ButtonLabel,
			&e.SEOTitle,
			&e.SEODescription,
			&e.HelpContent,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project i18n: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project i18n: %w", err)
	}
	return entries, nil
}

// Upsert inserts or updates the (project, locale) row. Inserts preserve
// created_at so the original insertion order survives updates.
func (r *projectI18nRepository) Upsert(ctx context.Context, entry *models.ProjectI18n) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	query := `
		INSERT INTO project_i18n (id, project_id, locale, button_label,
			seo_title, seo_description, help_content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project_id, locale) DO UPDATE
		SET button_label = EXCLUDED.button_label,
		    seo_title = EXCLUDED.seo_title,
		    seo_description = EXCLUDED.seo_description,
		    help_content = EXCLUDED.help_content,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ProjectID,
		entry.Locale,
		entry.ButtonLabel,
		entry.SEOTitle,
		entry.SEODescription,
		entry.HelpContent,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert project i18n: %w", err)
	}
	return nil
}

// Delete removes one locale's supplementary content.
func (r *projectI18nRepository) Delete(ctx context.Context, projectID uuid.UUID, locale string) error {
	query := `DELETE FROM project_i18n WHERE project_id = $1 AND locale = $2`
	_, err := r.db.Exec(ctx, query, projectID, locale)
	if err != nil {
		return fmt.Errorf("failed to delete project i18n: %w", err)
	}
	return nil
}
