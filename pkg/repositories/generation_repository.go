package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/pixloom-ai/pixloom-engine/pkg/apperrors"
	"github.com/pixloom-ai/pixloom-engine/pkg/database"
	"github.com/pixloom-ai/pixloom-engine/pkg/models"
)

// GenerationStats aggregates a user's generation history.
type GenerationStats struct {
	TotalGenerations     int64           `json:"totalGenerations"`
	CompletedGenerations int64           `json:"completedGenerations"`
	TotalCreditsSpent    decimal.Decimal `json:"totalCreditsSpent"`
}

// GenerationRepository defines the interface for generation record access.
// ListByUser and StatsByUser accept an optional project filter; nil means all
// of the user's projects.
type GenerationRepository interface {
	Create(ctx context.Context, gen *models.Generation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error)
	Update(ctx context.Context, gen *models.Generation) error
	ListByUser(ctx context.Context, userDID string, projectID *uuid.UUID, limit, offset int) ([]*models.Generation, error)
	StatsByUser(ctx context.Context, userDID string, projectID *uuid.UUID) (*GenerationStats, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// generationRepository implements GenerationRepository using PostgreSQL.
type generationRepository struct {
	db *database.DB
}

// NewGenerationRepository creates a new generation repository.
func NewGenerationRepository(db *database.DB) GenerationRepository {
	return &generationRepository{db: db}
}

const generationColumns = `id, user_did, project_id, status, model_type,
	original_images, generated_img, prompt, credits_consumed,
	processing_time_ms, error_message, metadata, created_at, updated_at`

// Create inserts a new generation record in pending state.
func (r *generationRepository) Create(ctx context.Context, gen *models.Generation) error {
	if gen.ID == uuid.Nil {
		gen.ID = uuid.New()
	}
	now := time.Now()
	gen.CreatedAt = now
	gen.UpdatedAt = now
	if gen.Status == "" {
		gen.Status = models.GenerationStatusPending
	}
	if gen.OriginalImages == nil {
		gen.OriginalImages = []string{}
	}

	query := `
		INSERT INTO generations (id, user_did, project_id, status, model_type,
			original_images, generated_img, prompt, credits_consumed,
			processing_time_ms, error_message, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		gen.ID,
		gen.UserDID,
		gen.ProjectID,
		gen.Status,
		gen.ModelType,
		gen.OriginalImages,
		gen.GeneratedImg,
		gen.Prompt,
		gen.CreditsConsumed,
		gen.ProcessingTimeMs,
		gen.ErrorMessage,
		gen.Metadata,
		gen.CreatedAt,
		gen.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create generation: %w", err)
	}
	return nil
}

// GetByID retrieves a generation by ID.
func (r *generationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = $1`

	gen, err := scanGeneration(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	return gen, nil
}

// Update persists the mutable lifecycle fields of a generation. The status
// written must be a forward transition from the stored one; a stale or
// backward write is rejected.
func (r *generationRepository) Update(ctx context.Context, gen *models.Generation) error {
	current, err := r.GetByID(ctx, gen.ID)
	if err != nil {
		return err
	}
	if current.Status != gen.Status && !current.CanTransitionTo(gen.Status) {
		return fmt.Errorf("cannot move generation from %s to %s: %w",
			current.Status, gen.Status, apperrors.ErrInvalidStatusChange)
	}

	gen.UpdatedAt = time.Now()

	query := `
		UPDATE generations
		SET status = $2,
		    generated_img = $3,
		    prompt = $4,
		    credits_consumed = $5,
		    processing_time_ms = $6,
		    error_message = $7,
		    metadata = $8,
		    updated_at = $9
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		gen.ID,
		gen.Status,
		gen.GeneratedImg,
		gen.Prompt,
		gen.CreditsConsumed,
		gen.ProcessingTimeMs,
		gen.ErrorMessage,
		gen.Metadata,
		gen.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListByUser retrieves a user's generations newest-first, optionally scoped
// to one project.
func (r *generationRepository) ListByUser(ctx context.Context, userDID string, projectID *uuid.UUID, limit, offset int) ([]*models.Generation, error) {
	query := `SELECT ` + generationColumns + `
		FROM generations
		WHERE user_did = $1 AND ($2::uuid IS NULL OR project_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(ctx, query, userDID, nullableUUID(projectID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var generations []*models.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		generations = append(generations, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generations: %w", err)
	}
	return generations, nil
}

// StatsByUser aggregates a user's history, optionally scoped to one project.
// Credits are only counted for completed generations since failures are
// refunded.
func (r *generationRepository) StatsByUser(ctx context.Context, userDID string, projectID *uuid.UUID) (*GenerationStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COALESCE(SUM(credits_consumed) FILTER (WHERE status = 'completed'), 0)
		FROM generations
		WHERE user_did = $1 AND ($2::uuid IS NULL OR project_id = $2)`

	var stats GenerationStats
	err := r.db.QueryRow(ctx, query, userDID, nullableUUID(projectID)).Scan(
		&stats.TotalGenerations,
		&stats.CompletedGenerations,
		&stats.TotalCreditsSpent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate generation stats: %w", err)
	}
	return &stats, nil
}

// Delete removes a generation record.
func (r *generationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM generations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// nullableUUID converts an optional filter into a SQL parameter.
func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func scanGeneration(row pgx.Row) (*models.Generation, error) {
	var gen models.Generation
	err := row.Scan(
		&gen.ID,
		&gen.UserDID,
		&gen.ProjectID,
		&gen.Status,
		&gen.ModelType,
		&gen.OriginalImages,
		&gen.GeneratedImg,
		&gen.Prompt,
		&gen.CreditsConsumed,
		&gen.ProcessingTimeMs,
		&gen.ErrorMessage,
		&gen.Metadata,
		&gen.CreatedAt,
		&gen.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &gen, nil
}
