package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/metadata"
	"github.com/starford/designtrail/internal/models"
)

// DefaultSuggestLimit caps tag suggestions when the caller passes no limit.
const DefaultSuggestLimit = 5

// Service joins saved records with live host elements.
type Service struct {
	repo     *metadata.Repository
	resolver Resolver
	logger   *slog.Logger
}

// NewService creates an index over repo, resolving ids through resolver.
func NewService(repo *metadata.Repository, resolver Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, logger: logger}
}

// ListAll returns a summary for every saved record whose element still
// exists, in store key order. Drafts are never listed.
func (s *Service) ListAll(ctx context.Context) ([]models.ElementSummary, error) {
	ids, err := s.repo.SavedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: list all: %w", err)
	}

	out := make([]models.ElementSummary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.repo.Saved(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("index: list all: %w", err)
		}
		el, ok := s.resolver.NodeByID(ctx, id)
		if !ok {
			s.logger.Debug("index: skipping unresolvable element", slog.String("element_id", id))
			continue
		}
		out = append(out, models.NewElementSummary(el, rec))
	}
	return out, nil
}

// CollectTags returns the sorted union of tags over all saved records.
// Records of deleted elements still contribute.
func (s *Service) CollectTags(ctx context.Context) ([]string, error) {
	ids, err := s.repo.SavedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: collect tags: %w", err)
	}

	set := make(map[string]struct{})
	for _, id := range ids {
		rec, err := s.repo.Saved(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("index: collect tags: %w", err)
		}
		for _, t := range rec.Tags {
			set[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// Search lists all elements and applies q.
func (s *Service) Search(ctx context.Context, q Query) ([]models.ElementSummary, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, q), nil
}

// Suggest returns known tags matching input. See SuggestFrom.
func (s *Service) Suggest(ctx context.Context, input string, exclude []string, limit int) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return []string{}, nil
	}
	tags, err := s.CollectTags(ctx)
	if err != nil {
		return nil, err
	}
	return SuggestFrom(tags, input, exclude, limit), nil
}

// SuggestFrom returns the tags containing input (case-insensitive), prefix
// matches first, skipping tags in exclude and keeping at most limit
// (DefaultSuggestLimit when limit <= 0). An empty input suggests nothing.
func SuggestFrom(tags []string, input string, exclude []string, limit int) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return []string{}
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, t := range exclude {
		skip[t] = struct{}{}
	}

	var prefix, contains []string
	for _, t := range tags {
		if _, ok := skip[t]; ok {
			continue
		}
		lt := strings.ToLower(t)
		switch {
		case strings.HasPrefix(lt, input):
			prefix = append(prefix, t)
		case strings.Contains(lt, input):
			contains = append(contains, t)
		}
	}
	out := append(prefix, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []string{}
	}
	return out
}
