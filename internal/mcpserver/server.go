// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes DesignTrail metadata tools for LLM integration via stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/index"
	"github.com/starford/designtrail/internal/models"
	"github.com/starford/designtrail/internal/preferences"
	"github.com/starford/designtrail/internal/recordservice"
)

// RecordFormatURI is the resource URI of the record contract.
const RecordFormatURI = "designtrail://record-format"

// Server wraps the MCP server with DesignTrail tools.
type Server struct {
	mcp     *server.MCPServer
	records *recordservice.Service
	prefs   *preferences.Service
}

// New creates a new MCP server with all tools registered.
func New(records *recordservice.Service, prefs *preferences.Service, version string) *Server {
	s := &Server{records: records, prefs: prefs}

	s.mcp = server.NewMCPServer(
		"DesignTrail",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	tagItems := mcp.Items(map[string]any{"type": "string"})

	s.mcp.AddTool(mcp.NewTool("get_metadata",
		mcp.WithDescription("Read the current metadata of a design element: its draft if one exists, "+
			"otherwise its saved record. Includes a checksum for save_metadata's if_match."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Element id")),
	), s.getMetadata)

	s.mcp.AddTool(mcp.NewTool("save_metadata",
		mcp.WithDescription("Save the metadata record of an element and drop its draft. "+
			"Read the contract first via get_record_contract or the "+RecordFormatURI+" resource."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Element id")),
		mcp.WithString("source_url", mcp.Description("Where the element came from")),
		mcp.WithArray("tags", tagItems, mcp.Description("Tags, replacing existing ones")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
		mcp.WithString("if_match", mcp.Description("Checksum from get_metadata; the save fails if the record changed")),
	), s.saveMetadata)

	s.mcp.AddTool(mcp.NewTool("save_draft",
		mcp.WithDescription("Store an unsaved draft for an element. Drafts are not listed or indexed."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Element id")),
		mcp.WithString("source_url", mcp.Description("Where the element came from")),
		mcp.WithArray("tags", tagItems, mcp.Description("Tags")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
	), s.saveDraft)

	s.mcp.AddTool(mcp.NewTool("list_elements",
		mcp.WithDescription("List elements with saved metadata. Tags filter with AND semantics; "+
			"query is a case-insensitive substring over name, URL, tags and notes."),
		mcp.WithArray("tags", tagItems, mcp.Description("Every listed tag must be present")),
		mcp.WithString("query", mcp.Description("Optional search text")),
	), s.listElements)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag in use, or suggest tags matching a prefix."),
		mcp.WithString("prefix", mcp.Description("Optional text to complete")),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("get_preferences",
		mcp.WithDescription("Read the panel preferences (layout, theme, autosave)."),
	), s.getPreferences)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the DesignTrail record format contract. "+
			"Call this before saving metadata to ensure correct structure."),
	), s.getRecordContract)

	s.mcp.AddResource(
		mcp.NewResource(RecordFormatURI, "Record Format Contract",
			mcp.WithResourceDescription("Shape and rules of element metadata records."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns domain errors into messages an LLM can act on.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrElementNotResolvable):
		return mcp.NewToolResultError("element not found; use list_elements to find valid node ids")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("record changed since it was read; call get_metadata and retry")
	case errors.Is(err, apperr.ErrStorageUnavailable):
		return mcp.NewToolResultError("storage unavailable, try again later")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func recordInput(req mcp.CallToolRequest) models.RecordInput {
	return models.RecordInput{
		SourceURL: req.GetString("source_url", ""),
		Tags:      req.GetStringSlice("tags", nil),
		Notes:     req.GetString("notes", ""),
	}
}

func (s *Server) getMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.records.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d)
}

func (s *Server) saveMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.records.Commit(ctx, id, recordInput(req), req.GetString("if_match", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d)
}

func (s *Server) saveDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.records.SaveDraft(ctx, id, recordInput(req)); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("draft saved: " + id), nil
}

func (s *Server) listElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := index.Query{
		Tags: req.GetStringSlice("tags", nil),
		Text: req.GetString("query", ""),
	}
	elements, err := s.records.List(ctx, q)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(elements)
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		tags []string
		err  error
	)
	if prefix := req.GetString("prefix", ""); prefix != "" {
		tags, err = s.records.SuggestTags(ctx, prefix, nil, 0)
	} else {
		tags, err = s.records.Tags(ctx)
	}
	if err != nil {
		return toolError(err), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags found"), nil
	}
	return mcp.NewToolResultText(strings.Join(tags, "\n")), nil
}

func (s *Server) getPreferences(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.prefs.Get(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(p)
}

func (s *Server) getRecordContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RecordFormatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
