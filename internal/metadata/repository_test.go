package metadata

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/kvstore"
	"github.com/starford/designtrail/internal/models"
	"github.com/starford/designtrail/internal/testutil"
)

func testRepo(t *testing.T, opts ...Option) (*Repository, kvstore.Store) {
	t.Helper()
	store := testutil.TestSQLite(t)
	opts = append([]Option{WithCommitRetry(2, time.Millisecond)}, opts...)
	return New(store, opts...), store
}

var e1 = models.Element{ID: "1:2", Name: "Hero"}

func TestLoadCurrent_None(t *testing.T) {
	repo, _ := testRepo(t)
	v, err := repo.LoadCurrent(context.Background(), e1)
	if err != nil {
		t.Fatalf("LoadCurrent: %v", err)
	}
	if _, ok := v.(None); !ok {
		t.Fatalf("view = %T, want None", v)
	}
	if v.NodeName() != "Hero" {
		t.Errorf("name = %q", v.NodeName())
	}
}

func TestLoadCurrent_UnnamedElement(t *testing.T) {
	repo, _ := testRepo(t)
	v, _ := repo.LoadCurrent(context.Background(), models.Element{ID: "9"})
	if v.NodeName() != models.DefaultNodeName {
		t.Errorf("name = %q, want %q", v.NodeName(), models.DefaultNodeName)
	}
}

func TestSaveDraft_TakesPrecedenceOverSaved(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()

	if _, err := repo.Commit(ctx, e1.ID, models.RecordInput{SourceURL: "http://saved", Tags: []string{"s"}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	draft := models.RecordInput{SourceURL: "http://draft", Tags: []string{"d", "e"}, Notes: "wip"}
	if err := repo.SaveDraft(ctx, e1.ID, draft); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	v, err := repo.LoadCurrent(ctx, e1)
	if err != nil {
		t.Fatalf("LoadCurrent: %v", err)
	}
	d, ok := v.(Draft)
	if !ok {
		t.Fatalf("view = %T, want Draft", v)
	}
	if d.Record.SourceURL != "http://draft" || d.Record.Notes != "wip" || !reflect.DeepEqual(d.Record.Tags, []string{"d", "e"}) {
		t.Errorf("draft = %+v", d.Record)
	}
	if d.Record.LastModified != 0 {
		t.Errorf("draft lastModified = %d, want absent", d.Record.LastModified)
	}
}

func TestCommit_RemovesDraft(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()

	if err := repo.SaveDraft(ctx, e1.ID, models.RecordInput{SourceURL: "http://a", Tags: []string{"x"}, Notes: "n"}); err != nil {
		t.Fatal(err)
	}
	start := time.Now().UnixMilli()
	rec, err := repo.Commit(ctx, e1.ID, models.RecordInput{SourceURL: "http://a", Tags: []string{"x", "y"}, Notes: "n2"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rec.LastModified < start {
		t.Errorf("lastModified %d earlier than commit start %d", rec.LastModified, start)
	}

	v, _ := repo.LoadCurrent(ctx, e1)
	s, ok := v.(Saved)
	if !ok {
		t.Fatalf("view = %T, want Saved", v)
	}
	if !reflect.DeepEqual(s.Record.Tags, []string{"x", "y"}) || s.Record.Notes != "n2" {
		t.Errorf("saved = %+v", s.Record)
	}
	if _, err := repo.Draft(ctx, e1.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("draft lookup err = %v, want ErrNotFound", err)
	}
}

func TestCommit_RetriesDraftDeletion(t *testing.T) {
	flaky := testutil.NewFlaky(kvstore.NewMemory())
	repo := New(flaky, WithCommitRetry(3, time.Millisecond))
	ctx := context.Background()

	_ = repo.SaveDraft(ctx, e1.ID, models.RecordInput{Notes: "draft"})
	flaky.FailDeletes = 2

	if _, err := repo.Commit(ctx, e1.ID, models.RecordInput{Notes: "final"}); err != nil {
		t.Fatalf("Commit should succeed after retries: %v", err)
	}
	if flaky.Deletes != 3 {
		t.Errorf("delete attempts = %d, want 3", flaky.Deletes)
	}
	v, _ := repo.LoadCurrent(ctx, e1)
	if v.Kind() != models.KindSaved {
		t.Errorf("kind = %s, want saved", v.Kind())
	}
}

func TestCommit_FailsWhenDraftCannotBeRemoved(t *testing.T) {
	flaky := testutil.NewFlaky(kvstore.NewMemory())
	repo := New(flaky, WithCommitRetry(1, time.Millisecond))
	ctx := context.Background()

	_ = repo.SaveDraft(ctx, e1.ID, models.RecordInput{Notes: "draft"})
	flaky.FailDeletes = 5

	_, err := repo.Commit(ctx, e1.ID, models.RecordInput{Notes: "final"})
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	// The saved record is already authoritative even though the commit failed.
	saved, err := repo.Saved(ctx, e1.ID)
	if err != nil || saved.Notes != "final" {
		t.Errorf("saved = %+v, err = %v", saved, err)
	}
}

func TestCommit_StoreDown(t *testing.T) {
	flaky := testutil.NewFlaky(kvstore.NewMemory())
	repo := New(flaky)
	flaky.SetDown(true)

	_, err := repo.Commit(context.Background(), e1.ID, models.RecordInput{})
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("commit err = %v, want ErrStorageUnavailable", err)
	}
	err = repo.SaveDraft(context.Background(), e1.ID, models.RecordInput{})
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("draft err = %v, want ErrStorageUnavailable", err)
	}
}

func TestNoSelectionGuards(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()
	if err := repo.SaveDraft(ctx, "", models.RecordInput{}); !errors.Is(err, apperr.ErrNoActiveSelection) {
		t.Errorf("SaveDraft err = %v", err)
	}
	if _, err := repo.Commit(ctx, "", models.RecordInput{}); !errors.Is(err, apperr.ErrNoActiveSelection) {
		t.Errorf("Commit err = %v", err)
	}
}

func TestCommit_NormalizesTags(t *testing.T) {
	repo, _ := testRepo(t)
	rec, err := repo.Commit(context.Background(), e1.ID, models.RecordInput{Tags: []string{" b ", "a", "b", ""}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec.Tags, []string{"b", "a"}) {
		t.Errorf("tags = %v, want [b a]", rec.Tags)
	}
}

func TestCommit_RejectsOversizedTag(t *testing.T) {
	repo, _ := testRepo(t)
	long := make([]byte, models.MaxTagLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := repo.Commit(context.Background(), e1.ID, models.RecordInput{Tags: []string{string(long)}})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCommit_UsesClock(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo, _ := testRepo(t, WithClock(func() time.Time { return fixed }))
	rec, _ := repo.Commit(context.Background(), e1.ID, models.RecordInput{})
	if rec.LastModified != fixed.UnixMilli() {
		t.Errorf("lastModified = %d, want %d", rec.LastModified, fixed.UnixMilli())
	}
}

func TestDiscard(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()
	_, _ = repo.Commit(ctx, e1.ID, models.RecordInput{Notes: "saved"})
	_ = repo.SaveDraft(ctx, e1.ID, models.RecordInput{Notes: "draft"})

	if err := repo.Discard(ctx, e1.ID); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	v, _ := repo.LoadCurrent(ctx, e1)
	if v.Kind() != models.KindSaved {
		t.Errorf("kind = %s, want saved", v.Kind())
	}
}

func TestCorruptRecordTreatedAsAbsent(t *testing.T) {
	repo, store := testRepo(t)
	ctx := context.Background()
	_ = store.Set(ctx, DraftKey(e1.ID), []byte("{not json"))

	v, err := repo.LoadCurrent(ctx, e1)
	if err != nil {
		t.Fatalf("LoadCurrent: %v", err)
	}
	if v.Kind() != models.KindNone {
		t.Errorf("kind = %s, want none", v.Kind())
	}
}

func TestSavedIDs_IgnoresDrafts(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()
	_, _ = repo.Commit(ctx, "b", models.RecordInput{})
	_, _ = repo.Commit(ctx, "a", models.RecordInput{})
	_ = repo.SaveDraft(ctx, "c", models.RecordInput{})

	ids, err := repo.SavedIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("ids = %v, want [a b]", ids)
	}
}
