// Package kvstore defines the persistent key-value store the metadata and
// preferences services are built on, plus its backends.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/designtrail/internal/apperr"
)

// Store is an opaque namespaced key-value store. It has no transactions
// and no multi-key atomicity.
type Store interface {
	// Get returns the value for key, or apperr.ErrNotFound when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set creates or overwrites key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// ListKeys returns every key starting with prefix, sorted ascending.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverFS       = "fs"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver    string
	Path      string // sqlite file or fs directory
	DSN       string // postgres
	Namespace string // postgres key namespace
}

// Open constructs the backend named by opts.Driver.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return OpenSQLite(opts.Path)
	case DriverFS:
		return NewFS(opts.Path)
	case DriverPostgres:
		return OpenPostgres(opts.DSN, opts.Namespace)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown driver %q", opts.Driver)
	}
}

// unavailable wraps a backend failure so callers can match ErrStorageUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("kvstore: %s: %w: %w", op, apperr.ErrStorageUnavailable, err)
}

var errClosed = errors.New("store closed")
