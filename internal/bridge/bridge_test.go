package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/host"
	"github.com/starford/designtrail/internal/index"
	"github.com/starford/designtrail/internal/kvstore"
	"github.com/starford/designtrail/internal/metadata"
	"github.com/starford/designtrail/internal/models"
	"github.com/starford/designtrail/internal/preferences"
	"github.com/starford/designtrail/internal/testutil"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Outbound
}

func (r *recorder) Emit(m Outbound) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) take() []Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

type fixture struct {
	bridge  *Bridge
	doc     *host.Document
	store   *testutil.FlakyStore
	rec     *recorder
	commits []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := testutil.NewFlaky(kvstore.NewMemory())
	repo := metadata.New(store, metadata.WithLogger(logger), metadata.WithCommitRetry(1, time.Millisecond))
	doc := host.NewDocument(logger,
		models.Element{ID: "1:1", Name: "Hero"},
		models.Element{ID: "1:2"},
	)
	f := &fixture{doc: doc, store: store, rec: &recorder{}}
	f.bridge = New(Deps{
		Host:     doc,
		Repo:     repo,
		Index:    index.NewService(repo, doc, logger),
		Prefs:    preferences.NewService(store, logger),
		Emitter:  f.rec,
		Logger:   logger,
		OnCommit: func(id string) { f.commits = append(f.commits, id) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.bridge.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})

	// The first handled message proves init-preferences went out.
	f.send(t, GetAllTags{})
	msgs := f.rec.take()
	if len(msgs) == 0 || msgs[0].Type() != TypeInitPreferences {
		t.Fatalf("first message = %v, want init-preferences", msgs)
	}
	return f
}

func (f *fixture) send(t *testing.T, m Inbound) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.bridge.Send(ctx, m)
}

func only[T Outbound](t *testing.T, msgs []Outbound) T {
	t.Helper()
	var zero T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v
		}
	}
	t.Fatalf("no %T in %v", zero, msgs)
	return zero
}

func TestGetMetadata_Flow(t *testing.T) {
	f := newFixture(t)

	if err := f.send(t, GetMetadata{}); err != nil {
		t.Fatal(err)
	}
	ns := only[NoSelection](t, f.rec.take())
	if ns.Message != MsgNoSelection {
		t.Errorf("message = %q", ns.Message)
	}

	if err := f.doc.Select("1:2", "1:1"); err != nil {
		t.Fatal(err)
	}
	f.send(t, GetMetadata{})
	ne := only[NewElement](t, f.rec.take())
	if ne.NodeID != "1:2" || ne.NodeName != models.DefaultNodeName || ne.Message != MsgNewElement {
		t.Errorf("new-element = %+v", ne)
	}

	draft := models.RecordInput{SourceURL: "http://a", Tags: []string{"x"}, Notes: "n"}
	if err := f.send(t, SaveDraft{RecordInput: draft}); err != nil {
		t.Fatalf("save-draft: %v", err)
	}
	f.send(t, GetMetadata{})
	dl := only[DraftLoaded](t, f.rec.take())
	if dl.Data.SourceURL != "http://a" || dl.Message != MsgDraftLoaded {
		t.Errorf("draft-loaded = %+v", dl)
	}

	commit := models.RecordInput{SourceURL: "http://a", Tags: []string{"x", "y"}, Notes: "n2"}
	if err := f.send(t, SaveMetadata{RecordInput: commit}); err != nil {
		t.Fatalf("save-metadata: %v", err)
	}
	msgs := f.rec.take()
	if n := only[Notice](t, msgs); n.Level != LevelSuccess || n.Message != MsgSaved {
		t.Errorf("notice = %+v", n)
	}
	if tags := only[AllTags](t, msgs); len(tags.Tags) != 2 {
		t.Errorf("all-tags = %v", tags.Tags)
	}
	if len(f.commits) != 1 || f.commits[0] != "1:2" {
		t.Errorf("commits = %v", f.commits)
	}

	f.send(t, GetMetadata{})
	ml := only[MetadataLoaded](t, f.rec.take())
	if ml.Data.Notes != "n2" || ml.Data.LastModified == 0 {
		t.Errorf("metadata-loaded = %+v", ml)
	}
}

func TestSaveMetadata_NoSelection(t *testing.T) {
	f := newFixture(t)
	err := f.send(t, SaveMetadata{})
	if !errors.Is(err, apperr.ErrNoActiveSelection) {
		t.Fatalf("err = %v", err)
	}
	if n := only[Notice](t, f.rec.take()); n.Message != MsgSelectFirst {
		t.Errorf("notice = %+v", n)
	}
	if notices := f.doc.Notices(); len(notices) != 1 || notices[0] != MsgSelectFirst {
		t.Errorf("host notices = %v", notices)
	}
}

func TestSaveMetadata_StoreDownIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.doc.Select("1:1")
	f.store.SetDown(true)

	err := f.send(t, SaveMetadata{RecordInput: models.RecordInput{Tags: []string{"a"}}})
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if n := only[Notice](t, f.rec.take()); n.Level != LevelError {
		t.Errorf("notice = %+v", n)
	}

	// Draft failures stay silent.
	f.send(t, SaveDraft{})
	for _, m := range f.rec.take() {
		if _, ok := m.(Notice); ok {
			t.Errorf("save-draft failure produced a notice")
		}
	}

	f.store.SetDown(false)
	if err := f.send(t, SaveMetadata{}); err != nil {
		t.Errorf("bridge did not recover: %v", err)
	}
}

func TestUpdatePreferences_LayoutResizes(t *testing.T) {
	f := newFixture(t)
	p := models.Preferences{Layout: models.LayoutLandscape, Theme: models.ThemeDark, Autosave: true}
	if err := f.send(t, UpdatePreferences{Preferences: p}); err != nil {
		t.Fatal(err)
	}
	pr := only[PanelResized](t, f.rec.take())
	if pr.Width != 600 || pr.Height != 400 {
		t.Errorf("resized to %+v", pr)
	}
	if got := f.doc.PanelSize(); got != models.LandscapeSize {
		t.Errorf("panel = %+v", got)
	}

	p.Theme = models.ThemeLight
	f.send(t, UpdatePreferences{Preferences: p})
	for _, m := range f.rec.take() {
		if _, ok := m.(PanelResized); ok {
			t.Error("theme change resized the panel")
		}
	}
}

func TestResize_Clamps(t *testing.T) {
	f := newFixture(t)
	f.send(t, Resize{Width: 10, Height: 5000})
	pr := only[PanelResized](t, f.rec.take())
	if pr.Width != host.MinWidth || pr.Height != host.MaxHeight {
		t.Errorf("resized to %+v", pr)
	}
}

func TestUpdatePreferences_EmitsUpdate(t *testing.T) {
	f := newFixture(t)
	p := models.DefaultPreferences()
	p.Autosave = false
	if err := f.send(t, UpdatePreferences{Preferences: p}); err != nil {
		t.Fatal(err)
	}
	if got := only[PreferencesUpdated](t, f.rec.take()); got.Preferences != p {
		t.Errorf("preferences = %+v", got.Preferences)
	}

	// Updates made around the bridge are reported too.
	p.Theme = models.ThemeDark
	if _, err := f.bridge.core.Prefs.Update(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if got := only[PreferencesUpdated](t, f.rec.take()); got.Preferences.Theme != models.ThemeDark {
		t.Errorf("preferences = %+v", got.Preferences)
	}
}

func TestResize_LayoutMinimum(t *testing.T) {
	f := newFixture(t)
	f.send(t, Resize{Width: 300, Height: 350})
	pr := only[PanelResized](t, f.rec.take())
	if pr.Width != 300 || pr.Height != models.PortraitMinSize.Height {
		t.Errorf("portrait resized to %+v", pr)
	}

	p := models.Preferences{Layout: models.LayoutLandscape, Theme: models.ThemeLight, Autosave: true}
	f.send(t, UpdatePreferences{Preferences: p})
	f.rec.take()
	f.send(t, Resize{Width: 300, Height: 350})
	pr = only[PanelResized](t, f.rec.take())
	if pr.Width != models.LandscapeMinSize.Width || pr.Height != 350 {
		t.Errorf("landscape resized to %+v", pr)
	}
}

func TestNavigateToNode(t *testing.T) {
	f := newFixture(t)
	if err := f.send(t, NavigateToNode{NodeID: "1:1"}); err != nil {
		t.Fatal(err)
	}
	if f.doc.Viewport() != "1:1" {
		t.Errorf("viewport = %q", f.doc.Viewport())
	}

	err := f.send(t, NavigateToNode{NodeID: "gone"})
	if !errors.Is(err, apperr.ErrElementNotResolvable) {
		t.Fatalf("err = %v", err)
	}
	if n := only[Notice](t, f.rec.take()); n.Message != MsgElementNotFound {
		t.Errorf("notice = %+v", n)
	}
}

func TestGetAllElements(t *testing.T) {
	f := newFixture(t)
	f.doc.Select("1:1")
	f.send(t, SaveMetadata{RecordInput: models.RecordInput{Tags: []string{"a"}}})
	f.rec.take()

	f.send(t, GetAllElements{})
	ae := only[AllElements](t, f.rec.take())
	if len(ae.Elements) != 1 || ae.Elements[0].DisplayName != "Hero" {
		t.Errorf("all-elements = %+v", ae.Elements)
	}
}

func TestSend_Serialized(t *testing.T) {
	f := newFixture(t)
	f.doc.Select("1:1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.send(t, SaveDraft{RecordInput: models.RecordInput{Tags: []string{"t"}}})
		}()
	}
	wg.Wait()
	if err := f.send(t, GetMetadata{}); err != nil {
		t.Fatal(err)
	}
	only[DraftLoaded](t, f.rec.take())
}

func TestSend_AfterStop(t *testing.T) {
	b := New(Deps{Prefs: preferences.NewService(kvstore.NewMemory(), nil)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { b.Run(ctx); close(done) }()
	cancel()
	<-done
	if err := b.Send(context.Background(), GetAllTags{}); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestOutboundJSON(t *testing.T) {
	tests := []struct {
		msg  Outbound
		want string
	}{
		{SelectionChanged{}, `{"type":"selection-changed"}`},
		{NoSelection{Message: "m"}, `{"type":"no-selection","message":"m"}`},
		{AllTags{Tags: []string{"a"}}, `{"type":"all-tags","tags":["a"]}`},
		{PanelResized{Width: 1, Height: 2}, `{"type":"panel-resized","width":1,"height":2}`},
		{PreferencesUpdated{Preferences: models.DefaultPreferences()}, `{"type":"preferences-updated","preferences":{"layout":"portrait","theme":"light","autosave":true}}`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.msg)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != tt.want {
			t.Errorf("%T = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"type":"save-metadata","sourceUrl":"u","tags":["a"],"notes":"n"}`))
	if err != nil {
		t.Fatal(err)
	}
	sm, ok := m.(SaveMetadata)
	if !ok || sm.SourceURL != "u" || len(sm.Tags) != 1 || sm.Notes != "n" {
		t.Errorf("decoded %#v", m)
	}

	m, _ = Decode([]byte(`{"type":"update-preferences","preferences":{"layout":"landscape","theme":"dark","autosave":false}}`))
	if up, ok := m.(UpdatePreferences); !ok || up.Preferences.Layout != models.LayoutLandscape {
		t.Errorf("decoded %#v", m)
	}

	m, _ = Decode([]byte(`{"type":"resize","width":300,"height":400}`))
	if r, ok := m.(Resize); !ok || r.Width != 300 {
		t.Errorf("decoded %#v", m)
	}

	for _, bad := range []string{`{}`, `{"type":"explode"}`, `not json`, `{"type":"navigate-to-node"}`} {
		if _, err := Decode([]byte(bad)); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Decode(%s) err = %v", bad, err)
		}
	}
}
