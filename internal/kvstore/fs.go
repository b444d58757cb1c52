package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/designtrail/internal/apperr"
)

const fsExt = ".json"

// FS implements Store with one file per key under a root directory.
// Key names are path-escaped so any key maps to a single flat file.
type FS struct {
	root string // absolute path to store directory
}

// NewFS creates an FS store rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, fmt.Errorf("kvstore: fs: directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("kvstore: fs: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: fs: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("kvstore: fs: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kvstore: fs: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// keyPath maps a key to its file and rejects anything that would escape root.
func (f *FS) keyPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("kvstore: fs: empty key: %w", apperr.ErrInvalidInput)
	}
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") || strings.ContainsRune(name, os.PathSeparator) {
		return "", fmt.Errorf("kvstore: fs: invalid key %q: %w", key, apperr.ErrInvalidInput)
	}
	return filepath.Join(f.root, name+fsExt), nil
}

func (f *FS) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get", err)
	}
	p, err := f.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get "+key, err)
	}
	return data, nil
}

// Set atomically writes value: tmp file, fsync, rename.
func (f *FS) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set", err)
	}
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".designtrail-tmp-*")
	if err != nil {
		return unavailable("create temp", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return unavailable("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return unavailable("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("close temp", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return unavailable("rename", err)
	}
	success = true
	return nil
}

func (f *FS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", err)
	}
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return unavailable("delete "+key, err)
	}
	return nil
}

func (f *FS) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list keys", err)
	}
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, unavailable("list keys", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fsExt) || strings.HasPrefix(name, ".") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fsExt))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op; FS holds no handles between calls.
func (f *FS) Close() error { return nil }
