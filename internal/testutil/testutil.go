// Package testutil provides shared test helpers for stores and host documents.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/kvstore"
)

// TestSQLite creates a temporary SQLite-backed store that is automatically cleaned up.
func TestSQLite(t *testing.T) *kvstore.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "designtrail-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	s, err := kvstore.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// WriteDocument writes a host document into a temp dir and returns its path.
// name decides the format by extension (doc.yaml, doc.json, doc.toml).
func WriteDocument(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// FlakyStore wraps a Store and fails operations on demand. Each Fail*
// counter is the number of upcoming calls of that kind that fail; Down
// fails everything.
type FlakyStore struct {
	kvstore.Store

	mu          sync.Mutex
	Down        bool
	FailGets    int
	FailSets    int
	FailDeletes int
	FailLists   int
	Deletes     int // delete calls observed, failed or not
}

// NewFlaky wraps s.
func NewFlaky(s kvstore.Store) *FlakyStore {
	return &FlakyStore{Store: s}
}

// SetDown toggles total unavailability.
func (f *FlakyStore) SetDown(down bool) {
	f.mu.Lock()
	f.Down = down
	f.mu.Unlock()
}

func (f *FlakyStore) fail(counter *int, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return fmt.Errorf("flaky: %s: %w", op, apperr.ErrStorageUnavailable)
	}
	if *counter > 0 {
		*counter--
		return fmt.Errorf("flaky: %s: %w", op, apperr.ErrStorageUnavailable)
	}
	return nil
}

func (f *FlakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.fail(&f.FailGets, "get"); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, key)
}

func (f *FlakyStore) Set(ctx context.Context, key string, value []byte) error {
	if err := f.fail(&f.FailSets, "set"); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value)
}

func (f *FlakyStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.Deletes++
	f.mu.Unlock()
	if err := f.fail(&f.FailDeletes, "delete"); err != nil {
		return err
	}
	return f.Store.Delete(ctx, key)
}

func (f *FlakyStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := f.fail(&f.FailLists, "list"); err != nil {
		return nil, err
	}
	return f.Store.ListKeys(ctx, prefix)
}
