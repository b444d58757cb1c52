package api

import (
	"net/http"

	"github.com/starford/designtrail/internal/session"
)

type sessionHandler struct {
	s *session.Session
}

// Get handles GET /session.
func (h *sessionHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.s.State())
}

// Patch handles PATCH /session. Edits apply in field order and stop at the
// first error.
func (h *sessionHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var p SessionPatch
	if !decodeBody(w, r, &p) {
		return
	}
	if err := h.apply(r, p); err != nil {
		writeError(w, "patch session", err)
		return
	}
	writeJSON(w, http.StatusOK, h.s.State())
}

func (h *sessionHandler) apply(r *http.Request, p SessionPatch) error {
	if p.SourceURL != nil {
		if err := h.s.SetSourceURL(*p.SourceURL); err != nil {
			return err
		}
	}
	if p.Notes != nil {
		if err := h.s.SetNotes(*p.Notes); err != nil {
			return err
		}
	}
	for _, t := range p.AddTags {
		if err := h.s.AddTag(t); err != nil {
			return err
		}
	}
	for _, t := range p.RemoveTags {
		if err := h.s.RemoveTag(t); err != nil {
			return err
		}
	}
	if p.Tab != nil {
		if err := h.s.SwitchTab(r.Context(), *p.Tab); err != nil {
			return err
		}
	}
	if p.Query != nil {
		h.s.SetQuery(*p.Query)
	}
	for _, t := range p.ToggleFilterTags {
		h.s.ToggleFilterTag(t)
	}
	return nil
}

// Save handles POST /session/save.
func (h *sessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.s.Save(r.Context()); err != nil {
		writeError(w, "save session", err)
		return
	}
	writeJSON(w, http.StatusOK, h.s.State())
}
