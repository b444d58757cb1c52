// Package recordservice exposes metadata records by element id for the
// REST and MCP surfaces. Unlike the bridge it never consults the host
// selection.
package recordservice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/checksum"
	"github.com/starford/designtrail/internal/index"
	"github.com/starford/designtrail/internal/metadata"
	"github.com/starford/designtrail/internal/models"
)

// Record change kinds reported to Events.
const (
	EventCommitted      = "committed"
	EventDraftSaved     = "draft.saved"
	EventDraftDiscarded = "draft.discarded"
)

// Events is notified after each successful write.
type Events interface {
	PublishRecordEvent(kind, elementID string)
}

// RecordDetail is the current view of one element.
type RecordDetail struct {
	Kind     models.Kind            `json:"kind"`
	Record   *models.MetadataRecord `json:"record,omitempty"`
	NodeID   string                 `json:"nodeId"`
	NodeName string                 `json:"nodeName"`
	// Checksum of the saved record, for If-Match on the next commit.
	Checksum string `json:"checksum,omitempty"`
}

// Service coordinates the repository, the index and the host resolver.
type Service struct {
	repo     *metadata.Repository
	idx      index.ElementIndex
	resolver index.Resolver
	events   Events

	// commitMu makes the If-Match check and the write one step.
	commitMu sync.Mutex
}

// NewService creates a record service. events may be nil.
func NewService(repo *metadata.Repository, idx index.ElementIndex, resolver index.Resolver, events Events) *Service {
	return &Service{repo: repo, idx: idx, resolver: resolver, events: events}
}

// Get returns the current view of elementID.
func (s *Service) Get(ctx context.Context, elementID string) (*RecordDetail, error) {
	el, err := s.resolve(ctx, elementID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, el)
}

// SaveDraft overwrites the draft of elementID.
func (s *Service) SaveDraft(ctx context.Context, elementID string, in models.RecordInput) error {
	if _, err := s.resolve(ctx, elementID); err != nil {
		return err
	}
	if err := s.repo.SaveDraft(ctx, elementID, in); err != nil {
		return err
	}
	s.publish(EventDraftSaved, elementID)
	return nil
}

// DiscardDraft drops the draft of elementID. Missing drafts are fine.
func (s *Service) DiscardDraft(ctx context.Context, elementID string) error {
	if err := s.repo.Discard(ctx, elementID); err != nil {
		return err
	}
	s.publish(EventDraftDiscarded, elementID)
	return nil
}

// Commit saves the record of elementID. A non-empty ifMatch must equal
// the checksum of the saved record being replaced, otherwise the commit
// fails with apperr.ErrConflict.
func (s *Service) Commit(ctx context.Context, elementID string, in models.RecordInput, ifMatch string) (*RecordDetail, error) {
	el, err := s.resolve(ctx, elementID)
	if err != nil {
		return nil, err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if ifMatch != "" {
		current, err := s.repo.Saved(ctx, elementID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return nil, fmt.Errorf("recordservice: commit %s: %w: no saved record", elementID, apperr.ErrConflict)
		case err != nil:
			return nil, err
		}
		if sum, err := Checksum(current); err != nil || sum != ifMatch {
			return nil, fmt.Errorf("recordservice: commit %s: %w: checksum mismatch", elementID, apperr.ErrConflict)
		}
	}

	rec, err := s.repo.Commit(ctx, elementID, in)
	if err != nil {
		return nil, err
	}
	s.publish(EventCommitted, elementID)

	sum, err := Checksum(rec)
	if err != nil {
		return nil, err
	}
	return &RecordDetail{
		Kind:     models.KindSaved,
		Record:   &rec,
		NodeID:   el.ID,
		NodeName: el.DisplayName(),
		Checksum: sum,
	}, nil
}

// List returns the saved elements matching q.
func (s *Service) List(ctx context.Context, q index.Query) ([]models.ElementSummary, error) {
	return s.idx.Search(ctx, q)
}

// Tags returns every saved tag.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	return s.idx.CollectTags(ctx)
}

// SuggestTags completes input from the saved tag set.
func (s *Service) SuggestTags(ctx context.Context, input string, exclude []string, limit int) ([]string, error) {
	return s.idx.Suggest(ctx, input, exclude, limit)
}

func (s *Service) resolve(ctx context.Context, elementID string) (models.Element, error) {
	if elementID == "" {
		return models.Element{}, apperr.ErrNoActiveSelection
	}
	el, ok := s.resolver.NodeByID(ctx, elementID)
	if !ok {
		return models.Element{}, fmt.Errorf("recordservice: %s: %w", elementID, apperr.ErrElementNotResolvable)
	}
	return el, nil
}

func (s *Service) detail(ctx context.Context, el models.Element) (*RecordDetail, error) {
	view, err := s.repo.LoadCurrent(ctx, el)
	if err != nil {
		return nil, err
	}
	d := &RecordDetail{Kind: view.Kind(), NodeID: el.ID, NodeName: view.NodeName()}
	if rec, ok := metadata.RecordOf(view); ok {
		d.Record = &rec
	}

	saved, err := s.repo.Saved(ctx, el.ID)
	switch {
	case err == nil:
		if d.Checksum, err = Checksum(saved); err != nil {
			return nil, err
		}
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}
	return d, nil
}

func (s *Service) publish(kind, elementID string) {
	if s.events != nil {
		s.events.PublishRecordEvent(kind, elementID)
	}
}

// Checksum returns the SHA-256 of the record's stored JSON form.
func Checksum(rec models.MetadataRecord) (string, error) {
	sum, err := checksum.JSON(rec)
	if err != nil {
		return "", fmt.Errorf("recordservice: %w", err)
	}
	return sum, nil
}
