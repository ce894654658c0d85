// Package models contains domain types for pixloom-engine.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project status constants. Projects are never hard-deleted; archiving is the
// terminal lifecycle state and restore moves a project back to active.
const (
	ProjectStatusActive   = "active"
	ProjectStatusDraft    = "draft"
	ProjectStatusArchived = "archived"
)

// Project is a tenant-configured AI image application: a slug, localized
// display text, a prompt template with {{key}} placeholders and a typed
// control schema.
type Project struct {
	ID             uuid.UUID       `json:"id"`
	Slug           string          `json:"slug"`
	Status         string          `json:"status"`
	Name           LocalizedText   `json:"name"`
	Subtitle       LocalizedText   `json:"subtitle"`
	Description    LocalizedText   `json:"description"`
	PromptTemplate string          `json:"promptTemplate"`
	Controls       ProjectControls `json:"controlsConfig"`
	UIConfig       JSONBMap        `json:"uiConfig"`
	Metadata       JSONBMap        `json:"metadata"`
	UsageCount     int64           `json:"usageCount"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsActive reports whether the project can be resolved and used for
// generation.
func (p *Project) IsActive() bool {
	return p.Status == ProjectStatusActive
}

// ValidStatus reports whether s is a known project status.
func ValidStatus(s string) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusDraft, ProjectStatusArchived:
		return true
	}
	return false
}

// JSONBMap is a map type that handles PostgreSQL JSONB serialization.
type JSONBMap map[string]interface{}

// Value implements driver.Valuer for database serialization.
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for database deserialization.
func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONBMap", value)
	}

	return json.Unmarshal(bytes, j)
}
