package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/kvstore"
	"github.com/starford/designtrail/internal/models"
)

// Default draft-deletion retry policy for Commit.
const (
	DefaultCommitRetries = 3
	DefaultCommitBackoff = 50 * time.Millisecond
)

// Repository reads and writes metadata records. It holds no per-element
// state; everything lives in the store.
type Repository struct {
	store   kvstore.Store
	logger  *slog.Logger
	now     func() time.Time
	retries int
	backoff time.Duration
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for corrupt-record warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithClock overrides time.Now for lastModified stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithCommitRetry sets how often Commit retries deleting a stale draft.
func WithCommitRetry(retries int, backoff time.Duration) Option {
	return func(r *Repository) {
		if retries >= 0 {
			r.retries = retries
		}
		if backoff >= 0 {
			r.backoff = backoff
		}
	}
}

// New creates a Repository over store.
func New(store kvstore.Store, opts ...Option) *Repository {
	r := &Repository{
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
		retries: DefaultCommitRetries,
		backoff: DefaultCommitBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadCurrent returns the current view of el. A draft always wins over a
// saved record; with neither, the view is None.
func (r *Repository) LoadCurrent(ctx context.Context, el models.Element) (CurrentView, error) {
	name := el.DisplayName()

	draft, err := r.Draft(ctx, el.ID)
	switch {
	case err == nil:
		return Draft{Record: draft, Name: name}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	saved, err := r.Saved(ctx, el.ID)
	switch {
	case err == nil:
		return Saved{Record: saved, Name: name}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	return None{Name: name}, nil
}

// Saved returns the saved record for elementID or apperr.ErrNotFound.
func (r *Repository) Saved(ctx context.Context, elementID string) (models.MetadataRecord, error) {
	return r.read(ctx, SavedKey(elementID))
}

// Draft returns the draft record for elementID or apperr.ErrNotFound.
func (r *Repository) Draft(ctx context.Context, elementID string) (models.MetadataRecord, error) {
	return r.read(ctx, DraftKey(elementID))
}

// SaveDraft overwrites the draft of elementID. Drafts carry no lastModified.
func (r *Repository) SaveDraft(ctx context.Context, elementID string, in models.RecordInput) error {
	if elementID == "" {
		return apperr.ErrNoActiveSelection
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return fmt.Errorf("metadata: save draft: %w: %w", apperr.ErrInvalidInput, err)
	}
	if err := r.write(ctx, DraftKey(elementID), in.Record(0)); err != nil {
		return fmt.Errorf("metadata: save draft %s: %w", elementID, err)
	}
	return nil
}

// Commit writes the saved record of elementID stamped with the current
// time, then removes its draft. The saved record is written first so an
// interruption never loses committed data. Draft deletion is retried; the
// commit only succeeds once the draft is gone, so LoadCurrent reports the
// saved record afterwards.
func (r *Repository) Commit(ctx context.Context, elementID string, in models.RecordInput) (models.MetadataRecord, error) {
	if elementID == "" {
		return models.MetadataRecord{}, apperr.ErrNoActiveSelection
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return models.MetadataRecord{}, fmt.Errorf("metadata: commit: %w: %w", apperr.ErrInvalidInput, err)
	}

	rec := in.Record(r.now().UnixMilli())
	if err := r.write(ctx, SavedKey(elementID), rec); err != nil {
		return models.MetadataRecord{}, fmt.Errorf("metadata: commit %s: %w", elementID, err)
	}
	if err := r.deleteDraft(ctx, elementID); err != nil {
		return models.MetadataRecord{}, fmt.Errorf("metadata: commit %s: remove draft: %w", elementID, err)
	}
	return rec, nil
}

// Discard removes the draft of elementID, leaving any saved record as the
// current view.
func (r *Repository) Discard(ctx context.Context, elementID string) error {
	if elementID == "" {
		return apperr.ErrNoActiveSelection
	}
	if err := r.store.Delete(ctx, DraftKey(elementID)); err != nil {
		return fmt.Errorf("metadata: discard %s: %w", elementID, err)
	}
	return nil
}

// SavedIDs returns the element ids of every saved record in key order.
func (r *Repository) SavedIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.ListKeys(ctx, SavedPrefix)
	if err != nil {
		return nil, fmt.Errorf("metadata: list saved: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := ElementIDFromSavedKey(k); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Repository) deleteDraft(ctx context.Context, elementID string) error {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("metadata: retrying draft removal",
				slog.String("element_id", elementID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
		if err = r.store.Delete(ctx, DraftKey(elementID)); err == nil {
			return nil
		}
	}
	return err
}

func (r *Repository) read(ctx context.Context, key string) (models.MetadataRecord, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return models.MetadataRecord{}, err
	}
	var rec models.MetadataRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		r.logger.Warn("metadata: corrupt record ignored",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return models.MetadataRecord{}, apperr.ErrNotFound
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return rec, nil
}

func (r *Repository) write(ctx context.Context, key string, rec models.MetadataRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.store.Set(ctx, key, data)
}
