// Package repositories contains PostgreSQL data access for pixloom-engine.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/database"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
)

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetBySlug(ctx context.Context, slug string) (*models.Project, error)
	List(ctx context.Context, status string) ([]*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `id, slug, status, name, subtitle, description,
	prompt_template, controls_config, ui_config, metadata, usage_count,
	created_at, updated_at`

// Create inserts a new project.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}

	query := `
		INSERT INTO projects (id, slug, status, name, subtitle, description,
			prompt_template, controls_config, ui_config, metadata, usage_count,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		project.ID,
		project.Slug,
		project.Status,
		project.Name,
		project.Subtitle,
		project.Description,
		project.PromptTemplate,
		project.Controls,
		project.UIConfig,
		project.Metadata,
		project.UsageCount,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("slug %q already in use: %w", project.Slug, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by ID.
func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetBySlug retrieves a project by its public slug.
func (r *projectRepository) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE slug = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, slug))
}

// List retrieves projects ordered by creation time, optionally filtered by
// status. An empty status returns every project.
func (r *projectRepository) List(ctx context.Context, status string) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// Update persists the mutable fields of a project.
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET slug = $2,
		    status = $3,
		    name = $4,
		    subtitle = $5,
		    description = $6,
		    prompt_template = $7,
		    controls_config = $8,
		    ui_config = $9,
		    metadata = $10,
		    updated_at = $11
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		project.ID,
		project.Slug,
		project.Status,
		project.Name,
		project.Subtitle,
		project.Description,
		project.PromptTemplate,
		project.Controls,
		project.UIConfig,
		project.Metadata,
		project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("slug %q already in use: %w", project.Slug, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetStatus changes the project lifecycle state.
func (r *projectRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// IncrementUsage bumps the project usage counter after a completed generation.
func (r *projectRepository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE projects SET usage_count = usage_count + 1 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment usage count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *projectRepository) scanOne(row pgx.Row) (*models.Project, error) {
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (r *projectRepository) scanRow(rows pgx.Rows) (*models.Project, error) {
	p, err := scanProject(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return p, nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.Slug,
		&p.Status,
		&p.Name,
		&p.Subtitle,
		&p.Description,
		&p.PromptTemplate,
		&p.Controls,
		&p.UIConfig,
		&p.Metadata,
		&p.UsageCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
