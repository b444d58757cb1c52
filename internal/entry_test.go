package internal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/designtrail/internal/kvstore"
	"github.com/starford/designtrail/internal/models"
)

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestOpenServices_LoadsDocumentAndStore(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "doc.yaml")
	content := "elements:\n  - id: \"1:1\"\n    name: Hero\n"
	if err := os.WriteFile(doc, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	cfg.Store.Driver = kvstore.DriverMemory
	cfg.Host.Document = doc
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := openServices(cfg, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.store.Close() })

	ctx := context.Background()
	if _, err := svc.records.Commit(ctx, "1:1", models.RecordInput{Tags: []string{"hero"}}, ""); err != nil {
		t.Fatal(err)
	}
	tags, err := svc.records.Tags(ctx)
	if err != nil || len(tags) != 1 || tags[0] != "hero" {
		t.Errorf("tags = %v, err = %v", tags, err)
	}
}

func TestOpenServices_BadDocument(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = kvstore.DriverMemory
	cfg.Host.Document = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := openServices(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil); err == nil {
		t.Fatal("missing host document should fail")
	}
}

func TestOpenServices_EmptyDocument(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = kvstore.DriverMemory

	svc, err := openServices(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.store.Close() })
	if len(svc.doc.Elements()) != 0 || svc.doc.Path() != "" {
		t.Errorf("expected empty in-memory document")
	}
}
