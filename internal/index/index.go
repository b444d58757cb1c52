// Package index derives the element listing and tag set from saved
// metadata records and filters it. Nothing is cached: every call rescans
// the store.
package index

import (
	"context"

	"github.com/starford/designtrail/internal/models"
)

// ElementIndex defines the read side used by the bridge, API and MCP layers.
// Consumers should depend on this interface rather than *Service.
type ElementIndex interface {
	ListAll(ctx context.Context) ([]models.ElementSummary, error)
	CollectTags(ctx context.Context) ([]string, error)
	Search(ctx context.Context, q Query) ([]models.ElementSummary, error)
	Suggest(ctx context.Context, input string, exclude []string, limit int) ([]string, error)
}

// Resolver looks up live host elements by id.
type Resolver interface {
	NodeByID(ctx context.Context, id string) (models.Element, bool)
}

// Verify *Service satisfies ElementIndex at compile time.
var _ ElementIndex = (*Service)(nil)
