package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/models"
)

// Inbound message type names.
const (
	TypeSaveMetadata      = "save-metadata"
	TypeSaveDraft         = "save-draft"
	TypeGetMetadata       = "get-metadata"
	TypeGetAllTags        = "get-all-tags"
	TypeGetAllElements    = "get-all-elements"
	TypeUpdatePreferences = "update-preferences"
	TypeResize            = "resize"
	TypeNavigateToNode    = "navigate-to-node"
)

// Inbound is a message from the UI. The set is closed: only types in this
// package implement it, and each dispatches to its own Handler method.
type Inbound interface {
	Type() string
	accept(ctx context.Context, h Handler) error
}

// Handler has one method per inbound message kind.
type Handler interface {
	HandleSaveMetadata(ctx context.Context, m SaveMetadata) error
	HandleSaveDraft(ctx context.Context, m SaveDraft) error
	HandleGetMetadata(ctx context.Context, m GetMetadata) error
	HandleGetAllTags(ctx context.Context, m GetAllTags) error
	HandleGetAllElements(ctx context.Context, m GetAllElements) error
	HandleUpdatePreferences(ctx context.Context, m UpdatePreferences) error
	HandleResize(ctx context.Context, m Resize) error
	HandleNavigateToNode(ctx context.Context, m NavigateToNode) error
}

// Dispatch calls the Handler method matching msg.
func Dispatch(ctx context.Context, h Handler, msg Inbound) error {
	return msg.accept(ctx, h)
}

// SaveMetadata commits the record of the selected element.
type SaveMetadata struct {
	models.RecordInput
}

// SaveDraft overwrites the draft of the selected element.
type SaveDraft struct {
	models.RecordInput
}

// GetMetadata asks for the current view of the selected element.
type GetMetadata struct{}

// GetAllTags asks for the union of saved tags.
type GetAllTags struct{}

// GetAllElements asks for every resolvable saved element.
type GetAllElements struct{}

// UpdatePreferences replaces the preferences record.
type UpdatePreferences struct {
	Preferences models.Preferences `json:"preferences"`
}

// Resize requests a new panel size; the host clamps it.
type Resize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NavigateToNode selects an element and brings it into view.
type NavigateToNode struct {
	NodeID string `json:"nodeId"`
}

func (SaveMetadata) Type() string      { return TypeSaveMetadata }
func (SaveDraft) Type() string         { return TypeSaveDraft }
func (GetMetadata) Type() string       { return TypeGetMetadata }
func (GetAllTags) Type() string        { return TypeGetAllTags }
func (GetAllElements) Type() string    { return TypeGetAllElements }
func (UpdatePreferences) Type() string { return TypeUpdatePreferences }
func (Resize) Type() string            { return TypeResize }
func (NavigateToNode) Type() string    { return TypeNavigateToNode }

func (m SaveMetadata) accept(ctx context.Context, h Handler) error {
	return h.HandleSaveMetadata(ctx, m)
}
func (m SaveDraft) accept(ctx context.Context, h Handler) error   { return h.HandleSaveDraft(ctx, m) }
func (m GetMetadata) accept(ctx context.Context, h Handler) error { return h.HandleGetMetadata(ctx, m) }
func (m GetAllTags) accept(ctx context.Context, h Handler) error  { return h.HandleGetAllTags(ctx, m) }
func (m GetAllElements) accept(ctx context.Context, h Handler) error {
	return h.HandleGetAllElements(ctx, m)
}
func (m UpdatePreferences) accept(ctx context.Context, h Handler) error {
	return h.HandleUpdatePreferences(ctx, m)
}
func (m Resize) accept(ctx context.Context, h Handler) error { return h.HandleResize(ctx, m) }
func (m NavigateToNode) accept(ctx context.Context, h Handler) error {
	return h.HandleNavigateToNode(ctx, m)
}

// Decode parses a JSON message of the form {"type": "...", ...}.
func Decode(data []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bridge: decode: %w: %w", apperr.ErrInvalidInput, err)
	}

	var msg Inbound
	switch env.Type {
	case TypeSaveMetadata:
		var m SaveMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, decodeErr(env.Type, err)
		}
		msg = m
	case TypeSaveDraft:
		var m SaveDraft
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, decodeErr(env.Type, err)
		}
		msg = m
	case TypeGetMetadata:
		msg = GetMetadata{}
	case TypeGetAllTags:
		msg = GetAllTags{}
	case TypeGetAllElements:
		msg = GetAllElements{}
	case TypeUpdatePreferences:
		var m UpdatePreferences
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, decodeErr(env.Type, err)
		}
		msg = m
	case TypeResize:
		var m Resize
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, decodeErr(env.Type, err)
		}
		msg = m
	case TypeNavigateToNode:
		var m NavigateToNode
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, decodeErr(env.Type, err)
		}
		if m.NodeID == "" {
			return nil, fmt.Errorf("bridge: decode %s: %w: nodeId is required", env.Type, apperr.ErrInvalidInput)
		}
		msg = m
	case "":
		return nil, fmt.Errorf("bridge: decode: %w: missing type", apperr.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("bridge: decode: %w: unknown type %q", apperr.ErrInvalidInput, env.Type)
	}
	return msg, nil
}

func decodeErr(typ string, err error) error {
	return fmt.Errorf("bridge: decode %s: %w: %w", typ, apperr.ErrInvalidInput, err)
}
