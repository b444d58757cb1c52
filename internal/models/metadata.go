// Package models defines the domain types for DesignTrail.
package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultNodeName is shown for host elements without a name.
const DefaultNodeName = "Unnamed Layer"

// Limits applied to caller-supplied metadata.
const (
	MaxSourceURLLen = 2048
	MaxNotesLen     = 64 << 10
	MaxTagLen       = 64
)

// Kind identifies which record is the current view of an element.
type Kind string

const (
	KindNone  Kind = "none"
	KindDraft Kind = "draft"
	KindSaved Kind = "saved"
)

// MetadataRecord is the persisted shape of both draft and saved records.
type MetadataRecord struct {
	SourceURL    string   `json:"sourceUrl"`
	Tags         []string `json:"tags"`
	Notes        string   `json:"notes"`
	LastModified int64    `json:"lastModified,omitempty"` // epoch milliseconds
}

// HasTag reports whether the record carries tag (exact match).
func (r MetadataRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// RecordInput is the editable part of a record as supplied by a caller.
type RecordInput struct {
	SourceURL string   `json:"sourceUrl"`
	Tags      []string `json:"tags"`
	Notes     string   `json:"notes"`
}

// Normalize trims tags, drops empty ones and removes duplicates while
// keeping the first occurrence, so insertion order survives.
func (in RecordInput) Normalize() RecordInput {
	seen := make(map[string]struct{}, len(in.Tags))
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return RecordInput{
		SourceURL: strings.TrimSpace(in.SourceURL),
		Tags:      tags,
		Notes:     in.Notes,
	}
}

// Validate checks field limits.
func (in RecordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SourceURL, validation.Length(0, MaxSourceURLLen)),
		validation.Field(&in.Notes, validation.Length(0, MaxNotesLen)),
		validation.Field(&in.Tags, validation.Each(validation.Required, validation.Length(1, MaxTagLen))),
	)
}

// Record converts the input into a record stamped with lastModified
// (zero leaves the timestamp absent, as drafts are written).
func (in RecordInput) Record(lastModified int64) MetadataRecord {
	tags := make([]string, len(in.Tags))
	copy(tags, in.Tags)
	return MetadataRecord{
		SourceURL:    in.SourceURL,
		Tags:         tags,
		Notes:        in.Notes,
		LastModified: lastModified,
	}
}

// Element is a selectable object of the host document.
type Element struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DisplayName returns the element name or DefaultNodeName.
func (e Element) DisplayName() string {
	if e.Name == "" {
		return DefaultNodeName
	}
	return e.Name
}

// ElementSummary joins a saved record with its live host element.
type ElementSummary struct {
	ElementID    string   `json:"nodeId"`
	DisplayName  string   `json:"nodeName"`
	SourceURL    string   `json:"sourceUrl"`
	Tags         []string `json:"tags"`
	Notes        string   `json:"notes"`
	LastModified int64    `json:"lastModified,omitempty"`
}

// NewElementSummary builds the summary for el from its saved record.
func NewElementSummary(el Element, rec MetadataRecord) ElementSummary {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return ElementSummary{
		ElementID:    el.ID,
		DisplayName:  el.DisplayName(),
		SourceURL:    rec.SourceURL,
		Tags:         tags,
		Notes:        rec.Notes,
		LastModified: rec.LastModified,
	}
}
