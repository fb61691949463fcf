// Package memory implements storage.ContentStore as a process-lifetime,
// in-memory collection. Nothing survives a restart; it exists for tests,
// ephemeral sessions, and as the reference implementation of the store
// contract.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Ensure *Store implements storage.ContentStore at compile time.
var _ storage.ContentStore = (*Store)(nil)

// Store is an in-memory ContentStore. Entities are held in insertion order
// with a SourceID index for duplicate filtering and upserts. All methods are
// safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	entities []*types.Content          // insertion order, the store's scan order
	bySource map[string]*types.Content // SourceID -> entity
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		bySource: make(map[string]*types.Content),
	}
}

// AddContent inserts or updates a single entity by SourceID.
func (s *Store) AddContent(ctx context.Context, c *types.Content) error {
	if c == nil || c.SourceID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.bySource[c.SourceID]; ok {
		// Upsert: replace payload in place, keep the assigned ID and slot.
		cp := c.Clone()
		cp.ID = existing.ID
		*existing = *cp
		return nil
	}

	cp := c.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.entities = append(s.entities, cp)
	s.bySource[cp.SourceID] = cp
	return nil
}

// AddContents bulk-inserts entities, skipping any whose SourceID already
// exists. Returns the number of entities actually stored.
func (s *Store) AddContents(ctx context.Context, cs []*types.Content) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	for _, c := range cs {
		if c == nil || c.SourceID == "" {
			return stored, storage.ErrInvalidInput
		}
		if _, ok := s.bySource[c.SourceID]; ok {
			continue
		}
		cp := c.Clone()
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		s.entities = append(s.entities, cp)
		s.bySource[cp.SourceID] = cp
		stored++
	}
	return stored, nil
}

// GetAllContents returns all stored entities in insertion order.
func (s *Store) GetAllContents(ctx context.Context) ([]*types.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*types.Content, 0, len(s.entities))
	for _, c := range s.entities {
		results = append(results, c.Clone())
	}
	return results, nil
}

// GetContentsByType returns entities of the given type via a linear scan.
func (s *Store) GetContentsByType(ctx context.Context, t types.ContentType) ([]*types.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*types.Content
	for _, c := range s.entities {
		if c.Type == t {
			results = append(results, c.Clone())
		}
	}
	return results, nil
}

// SearchSimilar ranks all embedded entities by cosine similarity to query.
// Ranking and cloning happen under the read lock: entities are shared with
// the upsert path, which rewrites them in place.
func (s *Store) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*types.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := storage.RankBySimilarity(s.entities, query, limit)
	results := make([]*types.Content, len(ranked))
	for i, c := range ranked {
		results[i] = c.Clone()
	}
	return results, nil
}

// Clear removes all entities.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities = nil
	s.bySource = make(map[string]*types.Content)
	return nil
}

// Count returns the current entity count.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
