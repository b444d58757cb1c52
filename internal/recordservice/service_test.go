package recordservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/host"
	"github.com/starford/designtrail/internal/index"
	"github.com/starford/designtrail/internal/metadata"
	"github.com/starford/designtrail/internal/models"
	"github.com/starford/designtrail/internal/testutil"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) PublishRecordEvent(kind, id string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+id)
	l.mu.Unlock()
}

func newService(t *testing.T) (*Service, *eventLog) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := metadata.New(testutil.TestSQLite(t), metadata.WithLogger(logger))
	doc := host.NewDocument(logger, models.Element{ID: "1:1", Name: "Hero"})
	events := &eventLog{}
	return NewService(repo, index.NewService(repo, doc, logger), doc, events), events
}

func TestGet_Kinds(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	d, err := svc.Get(ctx, "1:1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != models.KindNone || d.Record != nil || d.Checksum != "" {
		t.Errorf("detail = %+v", d)
	}

	if err := svc.SaveDraft(ctx, "1:1", models.RecordInput{Notes: "wip"}); err != nil {
		t.Fatal(err)
	}
	d, _ = svc.Get(ctx, "1:1")
	if d.Kind != models.KindDraft || d.Record.Notes != "wip" {
		t.Errorf("detail = %+v", d)
	}

	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, apperr.ErrElementNotResolvable) {
		t.Errorf("err = %v", err)
	}
}

func TestCommit_IfMatch(t *testing.T) {
	svc, events := newService(t)
	ctx := context.Background()

	if _, err := svc.Commit(ctx, "1:1", models.RecordInput{Tags: []string{"a"}}, "bogus"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("If-Match without saved record: err = %v", err)
	}

	first, err := svc.Commit(ctx, "1:1", models.RecordInput{Tags: []string{"a"}}, "")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx, "1:1")
	if got.Checksum != first.Checksum {
		t.Errorf("Get checksum %q != commit checksum %q", got.Checksum, first.Checksum)
	}

	second, err := svc.Commit(ctx, "1:1", models.RecordInput{Tags: []string{"b"}}, first.Checksum)
	if err != nil {
		t.Fatalf("matching If-Match: %v", err)
	}
	if _, err := svc.Commit(ctx, "1:1", models.RecordInput{}, first.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale If-Match: err = %v", err)
	}
	if second.Record.Tags[0] != "b" {
		t.Errorf("record = %+v", second.Record)
	}
	if n := len(events.events); n != 2 {
		t.Errorf("events = %v", events.events)
	}
}

func TestDiscardDraft(t *testing.T) {
	svc, events := newService(t)
	ctx := context.Background()
	svc.SaveDraft(ctx, "1:1", models.RecordInput{Notes: "x"})
	if err := svc.DiscardDraft(ctx, "1:1"); err != nil {
		t.Fatal(err)
	}
	d, _ := svc.Get(ctx, "1:1")
	if d.Kind != models.KindNone {
		t.Errorf("kind = %s", d.Kind)
	}
	want := []string{"draft.saved:1:1", "draft.discarded:1:1"}
	if len(events.events) != 2 || events.events[0] != want[0] || events.events[1] != want[1] {
		t.Errorf("events = %v", events.events)
	}
}

func TestListTagsSuggest(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	svc.Commit(ctx, "1:1", models.RecordInput{Tags: []string{"brand", "icon"}}, "")

	list, err := svc.List(ctx, index.Query{Tags: []string{"icon"}})
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
	tags, _ := svc.Tags(ctx)
	if len(tags) != 2 {
		t.Errorf("tags = %v", tags)
	}
	sug, _ := svc.SuggestTags(ctx, "ic", nil, 0)
	if len(sug) != 1 || sug[0] != "icon" {
		t.Errorf("suggest = %v", sug)
	}
}
