package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectI18n is supplementary localized content for a project, keyed by
// (projectID, locale) with one row per pair. Unlike the per-field display
// text on Project, i18n fallback picks a whole document.
type ProjectI18n struct {
	ID             uuid.UUID `json:"id"`
	ProjectID      uuid.UUID `json:"projectId"`
	Locale         string    `json:"locale"`
	ButtonLabel    string    `json:"buttonLabel,omitempty"`
	SEOTitle       string    `json:"seoTitle,omitempty"`
	SEODescription string    `json:"seoDescription,omitempty"`
	HelpContent    string    `json:"helpContent,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
