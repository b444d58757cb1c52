// Package preferences persists the singleton settings record.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/kvstore"
	"github.com/starford/designtrail/internal/models"
)

// Key is the store key of the preferences record.
const Key = "designtrail-preferences"

// Change describes the outcome of an Update.
type Change struct {
	Previous      models.Preferences `json:"previous"`
	Current       models.Preferences `json:"current"`
	LayoutChanged bool               `json:"layoutChanged"`
}

// LayoutListener is told about layout switches after they are persisted.
type LayoutListener interface {
	LayoutChanged(layout models.Layout)
}

// LayoutListenerFunc adapts a function to LayoutListener.
type LayoutListenerFunc func(models.Layout)

func (f LayoutListenerFunc) LayoutChanged(l models.Layout) { f(l) }

// ChangeFunc is told about every persisted Update, layout or not.
type ChangeFunc func(Change)

// Service reads and writes preferences. Writes are serialised so Previous
// in a Change always reflects the record that was replaced.
type Service struct {
	store  kvstore.Store
	logger *slog.Logger

	mu        sync.Mutex
	listeners []LayoutListener
	changes   []ChangeFunc
}

// NewService creates a preferences service over store.
func NewService(store kvstore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// OnLayoutChange registers l for layout switches.
func (s *Service) OnLayoutChange(l LayoutListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// OnChange registers fn for every successful Update. It runs after the
// layout listeners, on the caller's goroutine.
func (s *Service) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.changes = append(s.changes, fn)
	s.mu.Unlock()
}

// Get returns the stored preferences. On first use the defaults are
// written back so later reads see the same record.
func (s *Service) Get(ctx context.Context) (models.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx)
}

// Update validates and persists p verbatim.
func (s *Service) Update(ctx context.Context, p models.Preferences) (Change, error) {
	if err := p.Validate(); err != nil {
		return Change{}, fmt.Errorf("preferences: update: %w: %w", apperr.ErrInvalidInput, err)
	}

	s.mu.Lock()
	prev, err := s.get(ctx)
	if err != nil {
		s.mu.Unlock()
		return Change{}, err
	}
	if err := s.write(ctx, p); err != nil {
		s.mu.Unlock()
		return Change{}, fmt.Errorf("preferences: update: %w", err)
	}
	listeners := append([]LayoutListener(nil), s.listeners...)
	changes := append([]ChangeFunc(nil), s.changes...)
	s.mu.Unlock()

	ch := Change{Previous: prev, Current: p, LayoutChanged: prev.Layout != p.Layout}
	if ch.LayoutChanged {
		for _, l := range listeners {
			l.LayoutChanged(p.Layout)
		}
	}
	for _, fn := range changes {
		fn(ch)
	}
	return ch, nil
}

func (s *Service) get(ctx context.Context) (models.Preferences, error) {
	data, err := s.store.Get(ctx, Key)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return s.materialize(ctx)
	case err != nil:
		return models.Preferences{}, fmt.Errorf("preferences: get: %w", err)
	}

	var p models.Preferences
	if err := json.Unmarshal(data, &p); err != nil || p.Validate() != nil {
		s.logger.Warn("preferences: stored record invalid, resetting to defaults", slog.String("key", Key))
		return s.materialize(ctx)
	}
	return p, nil
}

func (s *Service) materialize(ctx context.Context) (models.Preferences, error) {
	p := models.DefaultPreferences()
	if err := s.write(ctx, p); err != nil {
		return models.Preferences{}, fmt.Errorf("preferences: write defaults: %w", err)
	}
	return p, nil
}

func (s *Service) write(ctx context.Context, p models.Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, Key, data)
}
