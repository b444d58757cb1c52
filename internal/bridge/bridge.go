// Package bridge connects the UI to the privileged side: selection,
// notifications, resize and navigation on the host, and the metadata,
// index and preferences services behind them. Messages are handled one at
// a time on a single goroutine.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/index"
	"github.com/starford/designtrail/internal/metadata"
	"github.com/starford/designtrail/internal/models"
	"github.com/starford/designtrail/internal/preferences"
)

// ErrClosed is returned by Send once the loop has stopped.
var ErrClosed = errors.New("bridge: closed")

// Host is the slice of the host object model the bridge drives.
type Host interface {
	Selection() []models.Element
	Notify(message string)
	Resize(width, height int) models.Size
	Navigate(ctx context.Context, id string) error
}

// Emitter receives every outbound message.
type Emitter interface {
	Emit(msg Outbound)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Outbound)

func (f EmitterFunc) Emit(msg Outbound) { f(msg) }

// Deps groups the collaborators of a Bridge.
type Deps struct {
	Host     Host
	Repo     *metadata.Repository
	Index    index.ElementIndex
	Prefs    *preferences.Service
	Emitter  Emitter
	Logger   *slog.Logger
	OnCommit func(elementID string)
}

type request struct {
	ctx  context.Context
	msg  Inbound
	errc chan error
}

// Bridge serialises inbound messages onto one goroutine.
type Bridge struct {
	core  *core
	inbox chan request
	done  chan struct{}
}

// New wires a bridge. Updates made through the preferences service, by any
// caller, are emitted as preferences-updated and layout changes resize the
// host panel.
func New(d Deps) *Bridge {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Emitter == nil {
		d.Emitter = EmitterFunc(func(Outbound) {})
	}
	c := &core{Deps: d}
	if d.Prefs != nil {
		d.Prefs.OnLayoutChange(c)
		d.Prefs.OnChange(func(ch preferences.Change) {
			c.Emitter.Emit(PreferencesUpdated{Preferences: ch.Current})
		})
	}
	return &Bridge{
		core:  c,
		inbox: make(chan request),
		done:  make(chan struct{}),
	}
}

// Run emits init-preferences and then handles messages until ctx ends.
func (b *Bridge) Run(ctx context.Context) error {
	defer close(b.done)

	b.core.start(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-b.inbox:
			req.errc <- Dispatch(req.ctx, b.core, req.msg)
		}
	}
}

// Send enqueues msg and waits until it has been handled.
func (b *Bridge) Send(ctx context.Context, msg Inbound) error {
	req := request{ctx: ctx, msg: msg, errc: make(chan error, 1)}
	select {
	case b.inbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
	select {
	case err := <-req.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectionChanged tells the UI to re-request metadata. It is safe to call
// from host listeners on any goroutine.
func (b *Bridge) SelectionChanged() {
	b.core.Emitter.Emit(SelectionChanged{})
}

// core implements Handler. Handler methods run only on the Run goroutine.
type core struct {
	Deps
}

var _ Handler = (*core)(nil)

func (c *core) start(ctx context.Context) {
	p, err := c.Prefs.Get(ctx)
	if err != nil {
		c.Logger.Error("bridge: load preferences", slog.String("error", err.Error()))
		p = models.DefaultPreferences()
	}
	c.Emitter.Emit(InitPreferences{Preferences: p})
}

// current returns the first selected element. Multi-select is reduced to
// index 0.
func (c *core) current() (models.Element, bool) {
	sel := c.Host.Selection()
	if len(sel) == 0 {
		return models.Element{}, false
	}
	return sel[0], true
}

func (c *core) notify(level NoticeLevel, message string) {
	c.Host.Notify(message)
	c.Emitter.Emit(Notice{Level: level, Message: message})
}

func (c *core) HandleSaveMetadata(ctx context.Context, m SaveMetadata) error {
	el, ok := c.current()
	if !ok {
		c.notify(LevelWarning, MsgSelectFirst)
		return apperr.ErrNoActiveSelection
	}

	if _, err := c.Repo.Commit(ctx, el.ID, m.RecordInput); err != nil {
		c.Logger.Error("bridge: save metadata",
			slog.String("element_id", el.ID),
			slog.String("error", err.Error()))
		c.notify(LevelError, MsgSaveFailed)
		return err
	}
	c.notify(LevelSuccess, MsgSaved)
	if c.OnCommit != nil {
		c.OnCommit(el.ID)
	}
	return c.HandleGetAllTags(ctx, GetAllTags{})
}

func (c *core) HandleSaveDraft(ctx context.Context, m SaveDraft) error {
	el, ok := c.current()
	if !ok {
		return apperr.ErrNoActiveSelection
	}
	if err := c.Repo.SaveDraft(ctx, el.ID, m.RecordInput); err != nil {
		c.Logger.Warn("bridge: autosave draft failed",
			slog.String("element_id", el.ID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (c *core) HandleGetMetadata(ctx context.Context, _ GetMetadata) error {
	el, ok := c.current()
	if !ok {
		c.Emitter.Emit(NoSelection{Message: MsgNoSelection})
		return nil
	}

	view, err := c.Repo.LoadCurrent(ctx, el)
	if err != nil {
		c.Logger.Error("bridge: load metadata",
			slog.String("element_id", el.ID),
			slog.String("error", err.Error()))
		c.notify(LevelError, MsgLoadFailed)
		return err
	}

	switch v := view.(type) {
	case metadata.Draft:
		c.Emitter.Emit(DraftLoaded{Data: v.Record, NodeName: v.Name, NodeID: el.ID, Message: MsgDraftLoaded})
	case metadata.Saved:
		c.Emitter.Emit(MetadataLoaded{Data: v.Record, NodeName: v.Name, NodeID: el.ID})
	case metadata.None:
		c.Emitter.Emit(NewElement{NodeName: v.Name, NodeID: el.ID, Message: MsgNewElement})
	default:
		return fmt.Errorf("bridge: unexpected view %T", view)
	}
	return nil
}

func (c *core) HandleGetAllTags(ctx context.Context, _ GetAllTags) error {
	tags, err := c.Index.CollectTags(ctx)
	if err != nil {
		c.Logger.Error("bridge: collect tags", slog.String("error", err.Error()))
		c.notify(LevelError, MsgLoadFailed)
		return err
	}
	c.Emitter.Emit(AllTags{Tags: tags})
	return nil
}

func (c *core) HandleGetAllElements(ctx context.Context, _ GetAllElements) error {
	elements, err := c.Index.ListAll(ctx)
	if err != nil {
		c.Logger.Error("bridge: list elements", slog.String("error", err.Error()))
		c.notify(LevelError, MsgLoadFailed)
		return err
	}
	c.Emitter.Emit(AllElements{Elements: elements})
	return nil
}

func (c *core) HandleUpdatePreferences(ctx context.Context, m UpdatePreferences) error {
	if _, err := c.Prefs.Update(ctx, m.Preferences); err != nil {
		c.Logger.Error("bridge: update preferences", slog.String("error", err.Error()))
		c.notify(LevelError, MsgPrefsFailed)
		return err
	}
	return nil
}

// HandleResize applies the minimum of the current layout before the host
// clamps the request.
func (c *core) HandleResize(ctx context.Context, m Resize) error {
	layout := models.LayoutPortrait
	if p, err := c.Prefs.Get(ctx); err != nil {
		c.Logger.Warn("bridge: resize: load preferences", slog.String("error", err.Error()))
	} else {
		layout = p.Layout
	}
	floor := layout.MinPanelSize()
	size := c.Host.Resize(max(m.Width, floor.Width), max(m.Height, floor.Height))
	c.Emitter.Emit(PanelResized{Width: size.Width, Height: size.Height})
	return nil
}

func (c *core) HandleNavigateToNode(ctx context.Context, m NavigateToNode) error {
	if err := c.Host.Navigate(ctx, m.NodeID); err != nil {
		if errors.Is(err, apperr.ErrElementNotResolvable) {
			c.notify(LevelWarning, MsgElementNotFound)
		} else {
			c.Logger.Error("bridge: navigate",
				slog.String("element_id", m.NodeID),
				slog.String("error", err.Error()))
		}
		return err
	}
	return nil
}

// LayoutChanged resizes the panel to the geometry of layout.
func (c *core) LayoutChanged(layout models.Layout) {
	want := layout.PanelSize()
	size := c.Host.Resize(want.Width, want.Height)
	c.Emitter.Emit(PanelResized{Width: size.Width, Height: size.Height})
}
