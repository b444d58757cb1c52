package api

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/designtrail/internal/bridge"
	"github.com/starford/designtrail/internal/checksum"
	"github.com/starford/designtrail/internal/index"
	"github.com/starford/designtrail/internal/models"
	"github.com/starford/designtrail/internal/preferences"
	"github.com/starford/designtrail/internal/recordservice"
)

// Handler holds API route handlers.
type Handler struct {
	records *recordservice.Service
	prefs   *preferences.Service
	host    Host
	bridge  Sender
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{records: d.Records, prefs: d.Prefs, host: d.Host, bridge: d.Bridge}
}

// elementID extracts {id}. Ids may arrive percent-encoded.
func elementID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListElements handles GET /elements?tag=a&tag=b&q=text.
func (h *Handler) ListElements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := index.Query{Tags: q["tag"], Text: q.Get("q")}

	elements, err := h.records.List(r.Context(), query)
	if err != nil {
		writeError(w, "list elements", err)
		return
	}
	writeJSON(w, http.StatusOK, ElementListResponse{Elements: elements, Total: len(elements)})
}

// ListTags handles GET /tags.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.records.Tags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// SuggestTags handles GET /tags/suggest?prefix=br&limit=5&exclude=a.
func (h *Handler) SuggestTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	tags, err := h.records.SuggestTags(r.Context(), q.Get("prefix"), q["exclude"], limit)
	if err != nil {
		writeError(w, "suggest tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// GetMetadata handles GET /elements/{id}/metadata.
func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	id := elementID(r)
	d, err := h.records.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get metadata "+id, err)
		return
	}
	if d.Checksum != "" {
		w.Header().Set("ETag", checksum.ETag(d.Checksum))
	}
	writeJSON(w, http.StatusOK, d)
}

// CommitMetadata handles PUT /elements/{id}/metadata with optional If-Match.
func (h *Handler) CommitMetadata(w http.ResponseWriter, r *http.Request) {
	id := elementID(r)
	var req RecordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))

	d, err := h.records.Commit(r.Context(), id, req, ifMatch)
	if err != nil {
		writeError(w, "commit metadata "+id, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, http.StatusOK, d)
}

// SaveDraft handles PUT /elements/{id}/draft.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	id := elementID(r)
	var req RecordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.records.SaveDraft(r.Context(), id, req); err != nil {
		writeError(w, "save draft "+id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DiscardDraft handles DELETE /elements/{id}/draft.
func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	id := elementID(r)
	if err := h.records.DiscardDraft(r.Context(), id); err != nil {
		writeError(w, "discard draft "+id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences handles GET /preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.prefs.Get(r.Context())
	if err != nil {
		writeError(w, "get preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePreferences handles PUT /preferences. The full record is required.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var p models.Preferences
	if !decodeBody(w, r, &p) {
		return
	}
	ch, err := h.prefs.Update(r.Context(), p)
	if err != nil {
		writeError(w, "update preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// GetSelection handles GET /selection.
func (h *Handler) GetSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SelectionResponse{Elements: h.host.Selection()})
}

// SetSelection handles PUT /selection.
func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.host.Select(req.IDs...); err != nil {
		writeError(w, "select", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Navigate handles POST /navigate/{id}.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	err := h.bridge.Send(r.Context(), bridge.NavigateToNode{NodeID: elementID(r)})
	if err != nil {
		writeError(w, "navigate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostMessage handles POST /messages: the body is one raw bridge message.
// Replies are delivered on the event stream.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	msg, err := bridge.Decode(body)
	if err != nil {
		writeError(w, "decode message", err)
		return
	}
	if err := h.bridge.Send(r.Context(), msg); err != nil {
		writeError(w, "handle "+msg.Type(), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
