package bridge

import (
	"bytes"
	"encoding/json"

	"github.com/starford/designtrail/internal/models"
)

// Outbound message type names.
const (
	TypeInitPreferences  = "init-preferences"
	TypePrefsUpdated     = "preferences-updated"
	TypeMetadataLoaded   = "metadata-loaded"
	TypeDraftLoaded      = "draft-loaded"
	TypeNewElement       = "new-element"
	TypeNoSelection      = "no-selection"
	TypeSelectionChanged = "selection-changed"
	TypeAllTags          = "all-tags"
	TypeAllElements      = "all-elements"
	TypeNotice           = "notice"
	TypePanelResized     = "panel-resized"
)

// User-facing texts.
const (
	MsgNoSelection     = "Select an element to view or edit its metadata"
	MsgNewElement      = "Add metadata to this element"
	MsgDraftLoaded     = "Continuing from your unsaved draft"
	MsgSelectFirst     = "Please select an element first"
	MsgSaved           = "Metadata saved successfully!"
	MsgSaveFailed      = "Could not save metadata, please try again"
	MsgLoadFailed      = "Could not load metadata"
	MsgElementNotFound = "Element not found"
	MsgPrefsFailed     = "Could not update preferences"
)

// Outbound is a message to the UI. It marshals with a "type" field.
type Outbound interface {
	Type() string
	outbound()
}

// NoticeLevel classifies a Notice.
type NoticeLevel string

const (
	LevelInfo    NoticeLevel = "info"
	LevelSuccess NoticeLevel = "success"
	LevelWarning NoticeLevel = "warning"
	LevelError   NoticeLevel = "error"
)

type InitPreferences struct {
	Preferences models.Preferences `json:"preferences"`
}

// PreferencesUpdated carries the record after any successful update.
type PreferencesUpdated struct {
	Preferences models.Preferences `json:"preferences"`
}

type MetadataLoaded struct {
	Data     models.MetadataRecord `json:"data"`
	NodeName string                `json:"nodeName"`
	NodeID   string                `json:"nodeId"`
}

type DraftLoaded struct {
	Data     models.MetadataRecord `json:"data"`
	NodeName string                `json:"nodeName"`
	NodeID   string                `json:"nodeId"`
	Message  string                `json:"message"`
}

type NewElement struct {
	NodeName string `json:"nodeName"`
	NodeID   string `json:"nodeId"`
	Message  string `json:"message"`
}

type NoSelection struct {
	Message string `json:"message"`
}

type SelectionChanged struct{}

type AllTags struct {
	Tags []string `json:"tags"`
}

type AllElements struct {
	Elements []models.ElementSummary `json:"elements"`
}

// Notice mirrors a host notification so the UI can show it too.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// PanelResized reports the clamped panel size after a resize.
type PanelResized struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (InitPreferences) Type() string    { return TypeInitPreferences }
func (PreferencesUpdated) Type() string { return TypePrefsUpdated }
func (MetadataLoaded) Type() string     { return TypeMetadataLoaded }
func (DraftLoaded) Type() string        { return TypeDraftLoaded }
func (NewElement) Type() string         { return TypeNewElement }
func (NoSelection) Type() string        { return TypeNoSelection }
func (SelectionChanged) Type() string   { return TypeSelectionChanged }
func (AllTags) Type() string            { return TypeAllTags }
func (AllElements) Type() string        { return TypeAllElements }
func (Notice) Type() string             { return TypeNotice }
func (PanelResized) Type() string       { return TypePanelResized }

func (InitPreferences) outbound()    {}
func (PreferencesUpdated) outbound() {}
func (MetadataLoaded) outbound()     {}
func (DraftLoaded) outbound()        {}
func (NewElement) outbound()         {}
func (NoSelection) outbound()        {}
func (SelectionChanged) outbound()   {}
func (AllTags) outbound()            {}
func (AllElements) outbound()        {}
func (Notice) outbound()             {}
func (PanelResized) outbound()       {}

func (m InitPreferences) MarshalJSON() ([]byte, error) {
	type plain InitPreferences
	return withType(m.Type(), plain(m))
}

func (m PreferencesUpdated) MarshalJSON() ([]byte, error) {
	type plain PreferencesUpdated
	return withType(m.Type(), plain(m))
}

func (m MetadataLoaded) MarshalJSON() ([]byte, error) {
	type plain MetadataLoaded
	return withType(m.Type(), plain(m))
}

func (m DraftLoaded) MarshalJSON() ([]byte, error) {
	type plain DraftLoaded
	return withType(m.Type(), plain(m))
}

func (m NewElement) MarshalJSON() ([]byte, error) {
	type plain NewElement
	return withType(m.Type(), plain(m))
}

func (m NoSelection) MarshalJSON() ([]byte, error) {
	type plain NoSelection
	return withType(m.Type(), plain(m))
}

func (m SelectionChanged) MarshalJSON() ([]byte, error) {
	type plain SelectionChanged
	return withType(m.Type(), plain(m))
}

func (m AllTags) MarshalJSON() ([]byte, error) {
	type plain AllTags
	return withType(m.Type(), plain(m))
}

func (m AllElements) MarshalJSON() ([]byte, error) {
	type plain AllElements
	return withType(m.Type(), plain(m))
}

func (m Notice) MarshalJSON() ([]byte, error) {
	type plain Notice
	return withType(m.Type(), plain(m))
}

func (m PanelResized) MarshalJSON() ([]byte, error) {
	type plain PanelResized
	return withType(m.Type(), plain(m))
}

// withType marshals v (a struct) and prepends the type discriminator.
func withType(typ string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(head)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
