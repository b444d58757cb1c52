package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/designtrail/internal/bridge"
	"github.com/starford/designtrail/internal/models"
	"github.com/starford/designtrail/internal/preferences"
	"github.com/starford/designtrail/internal/recordservice"
	"github.com/starford/designtrail/internal/session"
)

// Host is the part of the host document the API drives directly.
type Host interface {
	Selection() []models.Element
	Select(ids ...string) error
	Navigate(ctx context.Context, id string) error
}

// Sender hands raw messages to the bridge loop.
type Sender interface {
	Send(ctx context.Context, msg bridge.Inbound) error
}

// Deps groups everything the router serves.
type Deps struct {
	Records *recordservice.Service
	Prefs   *preferences.Service
	Host    Host
	Bridge  Sender
	// Session is optional; without it the /session routes are not mounted.
	Session *session.Session
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler

	AuthEnabled bool
	Token       string
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(d.AuthEnabled, d.Token))

	// Index.
	r.Get("/elements", h.ListElements)
	r.Get("/tags", h.ListTags)
	r.Get("/tags/suggest", h.SuggestTags)

	// Records by element id.
	r.Get("/elements/{id}/metadata", h.GetMetadata)
	r.Put("/elements/{id}/metadata", h.CommitMetadata)
	r.Put("/elements/{id}/draft", h.SaveDraft)
	r.Delete("/elements/{id}/draft", h.DiscardDraft)

	r.Get("/preferences", h.GetPreferences)
	r.Put("/preferences", h.UpdatePreferences)

	// Host control.
	r.Get("/selection", h.GetSelection)
	r.Put("/selection", h.SetSelection)
	r.Post("/navigate/{id}", h.Navigate)

	// Raw bridge messages.
	r.Post("/messages", h.PostMessage)

	if d.Session != nil {
		sh := &sessionHandler{s: d.Session}
		r.Get("/session", sh.Get)
		r.Patch("/session", sh.Patch)
		r.Post("/session/save", sh.Save)
	}

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
