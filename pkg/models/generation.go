package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Generation status constants. Transitions are monotonic forward-only:
// pending → processing → completed | failed. There is no backward transition.
const (
	GenerationStatusPending    = "pending"
	GenerationStatusProcessing = "processing"
	GenerationStatusCompleted  = "completed"
	GenerationStatusFailed     = "failed"
)

var generationStatusRank = map[string]int{
	GenerationStatusPending:    0,
	GenerationStatusProcessing: 1,
	GenerationStatusCompleted:  2,
	GenerationStatusFailed:     2,
}

// Generation is one end-to-end AI invocation attempt tied to a user, a
// project and a credit charge. Rows are created at request start, mutated
// through the call lifecycle and deleted only by the owning user.
type Generation struct {
	ID               uuid.UUID       `json:"id"`
	UserDID          string          `json:"userDid"`
	ProjectID        uuid.UUID       `json:"projectId"`
	Status           string          `json:"status"`
	ModelType        string          `json:"modelType"`
	OriginalImages   []string        `json:"originalImages"`
	GeneratedImg     string          `json:"generatedImg,omitempty"`
	Prompt           string          `json:"prompt,omitempty"`
	CreditsConsumed  decimal.Decimal `json:"creditsConsumed"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	Metadata         JSONBMap        `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// CanTransitionTo reports whether moving from the current status to next is a
// forward transition. Terminal states (completed, failed) accept no further
// changes.
func (g *Generation) CanTransitionTo(next string) bool {
	from, ok := generationStatusRank[g.Status]
	if !ok {
		return false
	}
	to, ok := generationStatusRank[next]
	if !ok {
		return false
	}
	if g.Status == GenerationStatusCompleted || g.Status == GenerationStatusFailed {
		return false
	}
	return to > from
}

// ValidGenerationStatus reports whether s is a known generation status.
func ValidGenerationStatus(s string) bool {
	_, ok := generationStatusRank[s]
	return ok
}
