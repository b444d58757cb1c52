// Package apperr defines the sentinel errors shared across DesignTrail packages.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable wraps every failure of the underlying key-value store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrElementNotResolvable means a stored element id no longer exists in the host document.
	ErrElementNotResolvable = errors.New("element not resolvable")
	// ErrNoActiveSelection guards per-element operations when nothing is selected.
	ErrNoActiveSelection = errors.New("no active selection")
)
