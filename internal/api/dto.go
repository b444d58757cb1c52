package api

import (
	"github.com/starford/designtrail/internal/models"
	"github.com/starford/designtrail/internal/recordservice"
	"github.com/starford/designtrail/internal/session"
)

// RecordRequest is the body of draft and commit requests.
type RecordRequest = models.RecordInput

// RecordDetail is returned by metadata reads and commits.
type RecordDetail = recordservice.RecordDetail

// ElementListResponse wraps element listings.
type ElementListResponse struct {
	Elements []models.ElementSummary `json:"elements"`
	Total    int                     `json:"total"`
}

// TagListResponse wraps tag listings and suggestions.
type TagListResponse struct {
	Tags []string `json:"tags"`
}

// SelectionRequest replaces the host selection.
type SelectionRequest struct {
	IDs []string `json:"ids"`
}

// SelectionResponse lists the selected elements.
type SelectionResponse struct {
	Elements []models.Element `json:"elements"`
}

// SessionPatch edits the panel session. Nil fields are left alone.
type SessionPatch struct {
	SourceURL        *string      `json:"sourceUrl,omitempty"`
	Notes            *string      `json:"notes,omitempty"`
	AddTags          []string     `json:"addTags,omitempty"`
	RemoveTags       []string     `json:"removeTags,omitempty"`
	Tab              *session.Tab `json:"tab,omitempty"`
	Query            *string      `json:"query,omitempty"`
	ToggleFilterTags []string     `json:"toggleFilterTags,omitempty"`
}
