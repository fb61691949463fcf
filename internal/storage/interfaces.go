// Package storage provides the ContentStore abstraction for the Recall system.
//
// A ContentStore is a durable (or in-memory) collection of content entities
// keyed by SourceID, with exhaustive cosine similarity search. Backends are
// independent types satisfying this one interface and are selected at startup
// by configuration; callers never depend on a concrete backend.
package storage

import (
	"context"

	"github.com/scrypster/recall/pkg/types"
)

// ContentStore is the contract every backend satisfies.
//
// Duplicate policy (uniform across backends): AddContent upserts by SourceID;
// AddContents skips entities whose SourceID already exists and reports how
// many were actually stored.
type ContentStore interface {
	// AddContent inserts or updates a single entity by SourceID.
	// The store assigns ID on first insert.
	AddContent(ctx context.Context, c *types.Content) error

	// AddContents bulk-inserts entities, skipping any whose SourceID is
	// already present. Returns the number of entities actually stored.
	AddContents(ctx context.Context, cs []*types.Content) (int, error)

	// GetAllContents returns all stored entities. Order is unspecified
	// across backends but stable within one call.
	GetAllContents(ctx context.Context) ([]*types.Content, error)

	// GetContentsByType returns entities with the given content type.
	// Backends may use an index or a linear scan.
	GetContentsByType(ctx context.Context, t types.ContentType) ([]*types.Content, error)

	// SearchSimilar returns up to limit entities ranked by descending cosine
	// similarity to query. An empty query vector yields an empty result.
	// Entities without embeddings are excluded from ranking, never an error.
	SearchSimilar(ctx context.Context, query []float32, limit int) ([]*types.Content, error)

	// Clear removes all entities.
	Clear(ctx context.Context) error

	// Count returns the current entity count.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// DefaultSearchLimit is the number of results SearchSimilar returns when the
// caller passes a non-positive limit.
const DefaultSearchLimit = 5
