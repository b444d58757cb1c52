// Package session holds the state of one plugin panel: the form for the
// selected element, the explore tab filters and the autosave timer. It
// talks to the privileged side only through bridge messages.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/bridge"
	"github.com/starford/designtrail/internal/debounce"
	"github.com/starford/designtrail/internal/index"
	"github.com/starford/designtrail/internal/models"
)

// DefaultAutosaveDelay is the quiet period before a draft is written.
const DefaultAutosaveDelay = time.Second

// MinSuggestLen is the shortest input that produces tag suggestions.
const MinSuggestLen = 2

const sendTimeout = 5 * time.Second

// Tab is the visible panel tab.
type Tab string

const (
	TabMetadata Tab = "metadata"
	TabExplore  Tab = "explore"
)

// Sender delivers inbound messages to the bridge.
type Sender interface {
	Send(ctx context.Context, msg bridge.Inbound) error
}

// State is a copy of the view-model for rendering.
type State struct {
	ID           string                  `json:"id"`
	Preferences  models.Preferences      `json:"preferences"`
	HasSelection bool                    `json:"hasSelection"`
	NodeID       string                  `json:"nodeId"`
	NodeName     string                  `json:"nodeName"`
	SourceURL    string                  `json:"sourceUrl"`
	Tags         []string                `json:"tags"`
	Notes        string                  `json:"notes"`
	Draft        bool                    `json:"draft"`
	Tab          Tab                     `json:"tab"`
	FilterTags   []string                `json:"filterTags"`
	Query        string                  `json:"query"`
	AllTags      []string                `json:"allTags"`
	Visible      []models.ElementSummary `json:"visible"`
	Message      string                  `json:"message"`
	MessageLevel bridge.NoticeLevel      `json:"messageLevel"`
	Panel        models.Size             `json:"panel"`
}

// Session is the panel view-model. It is safe for concurrent use.
type Session struct {
	id        string
	send      Sender
	logger    *slog.Logger
	autosave  *debounce.Debouncer
	delay     time.Duration
	afterFunc debounce.AfterFunc

	// sendMu orders draft writes against commits.
	sendMu sync.Mutex

	mu           sync.Mutex
	rev          uint64
	savedRev     uint64
	prefs        models.Preferences
	hasSelection bool
	nodeID       string
	nodeName     string
	sourceURL    string
	tags         []string
	notes        string
	draft        bool
	tab          Tab
	filterTags   []string
	query        string
	allTags      []string
	elements     []models.ElementSummary
	message      string
	level        bridge.NoticeLevel
	panel        models.Size
}

// Option configures a Session.
type Option func(*Session)

// WithAutosaveDelay overrides DefaultAutosaveDelay.
func WithAutosaveDelay(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithAfterFunc replaces the clock used by the autosave timer.
func WithAfterFunc(f debounce.AfterFunc) Option {
	return func(s *Session) { s.afterFunc = f }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session sending through send.
func New(send Sender, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		send:   send,
		logger: slog.Default(),
		delay:  DefaultAutosaveDelay,
		prefs:  models.DefaultPreferences(),
		tab:    TabMetadata,
		tags:   []string{},
		panel:  models.PortraitSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("session_id", s.id))
	s.autosave = debounce.New(s.delay, s.writeDraft, s.afterFunc)
	return s
}

// ID returns the random session id.
func (s *Session) ID() string { return s.id }

// Open requests the initial metadata, tags and element list.
func (s *Session) Open(ctx context.Context) error {
	for _, m := range []bridge.Inbound{bridge.GetMetadata{}, bridge.GetAllTags{}, bridge.GetAllElements{}} {
		if err := s.send.Send(ctx, m); err != nil {
			return fmt.Errorf("session: open: %w", err)
		}
	}
	return nil
}

// Emit applies msg and sends any follow-up requests on a new goroutine, so
// it can be used as the bridge Emitter without re-entering the bridge loop.
func (s *Session) Emit(msg bridge.Outbound) {
	next := s.Apply(msg)
	if len(next) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		for _, m := range next {
			if err := s.send.Send(ctx, m); err != nil {
				s.logger.Warn("session: follow-up failed",
					slog.String("type", m.Type()),
					slog.String("error", err.Error()))
			}
		}
	}()
}

// Apply folds an outbound message into the view-model and returns the
// requests the panel should send in response.
func (s *Session) Apply(msg bridge.Outbound) []bridge.Inbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case bridge.InitPreferences:
		s.setPrefs(m.Preferences)
		s.panel = m.Preferences.Layout.PanelSize()
	case bridge.PreferencesUpdated:
		// The panel follows the PanelResized sent for a layout switch.
		s.setPrefs(m.Preferences)
	case bridge.MetadataLoaded:
		s.load(m.NodeID, m.NodeName, m.Data)
		s.draft = false
		s.setMessage("", "")
	case bridge.DraftLoaded:
		s.load(m.NodeID, m.NodeName, m.Data)
		s.draft = true
		s.setMessage(m.Message, bridge.LevelInfo)
	case bridge.NewElement:
		s.load(m.NodeID, m.NodeName, models.MetadataRecord{})
		s.draft = false
		s.setMessage(m.Message, bridge.LevelInfo)
	case bridge.NoSelection:
		s.autosave.Cancel()
		s.clearForm()
		s.hasSelection = false
		s.nodeID, s.nodeName = "", ""
		s.setMessage(m.Message, bridge.LevelWarning)
	case bridge.SelectionChanged:
		// A pending draft would be written against the new selection.
		s.autosave.Cancel()
		return []bridge.Inbound{bridge.GetMetadata{}}
	case bridge.AllTags:
		s.allTags = append([]string(nil), m.Tags...)
	case bridge.AllElements:
		s.elements = append([]models.ElementSummary(nil), m.Elements...)
	case bridge.Notice:
		s.setMessage(m.Message, m.Level)
		if m.Level == bridge.LevelSuccess {
			s.draft = false
			if s.tab == TabExplore {
				return []bridge.Inbound{bridge.GetAllElements{}}
			}
		}
	case bridge.PanelResized:
		s.panel = models.Size{Width: m.Width, Height: m.Height}
	}
	return nil
}

func (s *Session) setPrefs(p models.Preferences) {
	s.prefs = p
	if !p.Autosave {
		s.autosave.Cancel()
	}
}

// load replaces the form. The loaded content counts as written.
func (s *Session) load(id, name string, rec models.MetadataRecord) {
	s.savedRev = s.rev
	s.hasSelection = true
	s.nodeID, s.nodeName = id, name
	s.sourceURL = rec.SourceURL
	s.notes = rec.Notes
	s.tags = append([]string{}, rec.Tags...)
}

func (s *Session) clearForm() {
	s.sourceURL, s.notes = "", ""
	s.tags = []string{}
	s.draft = false
}

func (s *Session) setMessage(msg string, level bridge.NoticeLevel) {
	s.message, s.level = msg, level
}

// SetSourceURL edits the source URL field.
func (s *Session) SetSourceURL(url string) error {
	return s.edit(func() error { s.sourceURL = url; return nil })
}

// SetNotes edits the notes field.
func (s *Session) SetNotes(notes string) error {
	return s.edit(func() error { s.notes = notes; return nil })
}

// AddTag appends tag unless it is blank or already present.
func (s *Session) AddTag(tag string) error {
	tag = strings.TrimSpace(tag)
	return s.edit(func() error {
		if tag == "" {
			return fmt.Errorf("session: add tag: %w: empty tag", apperr.ErrInvalidInput)
		}
		for _, t := range s.tags {
			if t == tag {
				return fmt.Errorf("session: add tag %q: %w", tag, apperr.ErrConflict)
			}
		}
		s.tags = append(s.tags, tag)
		return nil
	})
}

// RemoveTag drops tag from the form.
func (s *Session) RemoveTag(tag string) error {
	return s.edit(func() error {
		kept := s.tags[:0]
		for _, t := range s.tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		s.tags = kept
		return nil
	})
}

// edit applies fn to the form and schedules an autosave.
func (s *Session) edit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSelection {
		return apperr.ErrNoActiveSelection
	}
	if err := fn(); err != nil {
		return err
	}
	s.rev++
	if s.prefs.Autosave {
		s.autosave.Trigger()
	}
	return nil
}

// writeDraft runs on the autosave timer. Failures are only logged. A
// timer that fired before a Save took sendMu finds nothing left to write.
func (s *Session) writeDraft() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if !s.hasSelection || s.rev == s.savedRev {
		s.mu.Unlock()
		return
	}
	in := s.inputLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.send.Send(ctx, bridge.SaveDraft{RecordInput: in}); err != nil {
		s.logger.Warn("session: autosave failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.draft = true
	s.mu.Unlock()
}

func (s *Session) inputLocked() models.RecordInput {
	return models.RecordInput{
		SourceURL: s.sourceURL,
		Tags:      append([]string{}, s.tags...),
		Notes:     s.notes,
	}
}

// Save commits the form, dropping any pending autosave. A draft write
// already in flight completes first so the commit removes it.
func (s *Session) Save(ctx context.Context) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if !s.hasSelection {
		s.mu.Unlock()
		return apperr.ErrNoActiveSelection
	}
	in := s.inputLocked()
	prevSaved := s.savedRev
	s.savedRev = s.rev
	s.mu.Unlock()

	s.autosave.Cancel()
	if err := s.send.Send(ctx, bridge.SaveMetadata{RecordInput: in}); err != nil {
		s.mu.Lock()
		s.savedRev = prevSaved
		s.mu.Unlock()
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// FlushAutosave writes a pending draft now.
func (s *Session) FlushAutosave() bool {
	return s.autosave.Flush()
}

// SwitchTab changes tab. The explore tab loads elements the first time.
func (s *Session) SwitchTab(ctx context.Context, tab Tab) error {
	if tab != TabMetadata && tab != TabExplore {
		return fmt.Errorf("session: switch tab %q: %w", tab, apperr.ErrInvalidInput)
	}
	s.mu.Lock()
	s.tab = tab
	load := tab == TabExplore && len(s.elements) == 0
	s.mu.Unlock()

	if load {
		return s.send.Send(ctx, bridge.GetAllElements{})
	}
	return nil
}

// ToggleFilterTag adds tag to the explore filter, or removes it.
func (s *Session) ToggleFilterTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.filterTags {
		if t == tag {
			s.filterTags = append(s.filterTags[:i], s.filterTags[i+1:]...)
			return
		}
	}
	s.filterTags = append(s.filterTags, tag)
}

// SetQuery sets the explore search text.
func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
}

// Visible returns the explore list after filters.
func (s *Session) Visible() []models.ElementSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

func (s *Session) visibleLocked() []models.ElementSummary {
	q := index.Query{Tags: append([]string(nil), s.filterTags...), Text: s.query}
	return index.Filter(append([]models.ElementSummary(nil), s.elements...), q)
}

// SuggestTags completes a tag being typed from the known tag set.
func (s *Session) SuggestTags(input string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(strings.TrimSpace(input)) < MinSuggestLen {
		return []string{}
	}
	return index.SuggestFrom(s.allTags, input, s.tags, index.DefaultSuggestLimit)
}

// State returns a snapshot of the view-model.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:           s.id,
		Preferences:  s.prefs,
		HasSelection: s.hasSelection,
		NodeID:       s.nodeID,
		NodeName:     s.nodeName,
		SourceURL:    s.sourceURL,
		Tags:         append([]string{}, s.tags...),
		Notes:        s.notes,
		Draft:        s.draft,
		Tab:          s.tab,
		FilterTags:   append([]string{}, s.filterTags...),
		Query:        s.query,
		AllTags:      append([]string{}, s.allTags...),
		Visible:      s.visibleLocked(),
		Message:      s.message,
		MessageLevel: s.level,
		Panel:        s.panel,
	}
}
