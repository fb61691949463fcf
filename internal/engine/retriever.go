package engine

import (
	"context"
	"log"

	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// RetrieverConfig tunes retrieval behaviour.
type RetrieverConfig struct {
	// Limit is the number of candidates requested from similarity search
	// (default: 5).
	Limit int

	// HistoryLimit caps chat-history passages in the final results
	// (default: 2). Non-positive values fall back to the default.
	HistoryLimit int

	// OtherLimit caps non-history passages in the final results (default: 3).
	OtherLimit int

	// WindowSize is the relevance-window length in characters (default: 1500).
	WindowSize int

	// WindowStride is the slide step when scanning content for the most
	// query-relevant window (default: 100).
	WindowStride int
}

// Retriever turns a free-text query into ranked, context-window-sized
// supporting passages. Retrieval is strictly best-effort: every failure in
// the pipeline degrades to "no relevant content" so the assistant is never
// blocked from answering.
type Retriever struct {
	store    storage.ContentStore
	embedder llm.EmbeddingGenerator
	cfg      RetrieverConfig
}

// NewRetriever creates a retriever with defaults applied for any unset
// configuration field.
func NewRetriever(store storage.ContentStore, embedder llm.EmbeddingGenerator, cfg RetrieverConfig) *Retriever {
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 2
	}
	if cfg.OtherLimit <= 0 {
		cfg.OtherLimit = 3
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 1500
	}
	if cfg.WindowStride <= 0 {
		cfg.WindowStride = 100
	}
	return &Retriever{store: store, embedder: embedder, cfg: cfg}
}

// Retrieve embeds the query, ranks stored entities by cosine similarity,
// interleaves conversational history with other matches, and trims each
// passage to its most query-relevant window. An empty slice means "no
// relevant content found" — including every failure case.
func (r *Retriever) Retrieve(ctx context.Context, query string) []*types.Content {
	if query == "" {
		return []*types.Content{}
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("engine: query embedding failed, returning no results: %v", err)
		return []*types.Content{}
	}

	candidates, err := r.store.SearchSimilar(ctx, queryVector, r.cfg.Limit)
	if err != nil {
		log.Printf("engine: similarity search failed, returning no results: %v", err)
		return []*types.Content{}
	}

	selected := interleaveByType(candidates, r.cfg.HistoryLimit, r.cfg.OtherLimit)

	results := make([]*types.Content, 0, len(selected))
	for _, c := range selected {
		windowed := c.Clone()
		windowed.Content = RelevantWindow(c.Content, query, r.cfg.WindowSize, r.cfg.WindowStride)
		results = append(results, windowed)
	}
	return results
}

// interleaveByType partitions ranked candidates into conversational history
// and everything else, keeping up to historyLimit of the former and
// otherLimit of the latter, so recent dialogue is never crowded out by
// document matches. Relative ranking within each partition is preserved;
// history entries come first.
func interleaveByType(candidates []*types.Content, historyLimit, otherLimit int) []*types.Content {
	var history, other []*types.Content
	for _, c := range candidates {
		if c.Type == types.TypeChatHistory {
			if len(history) < historyLimit {
				history = append(history, c)
			}
		} else if len(other) < otherLimit {
			other = append(other, c)
		}
	}

	// Backfill from the other partition when one side came up short, so a
	// history-only or document-only corpus still fills the budget.
	budget := historyLimit + otherLimit
	selected := append(history, other...)
	if len(selected) < budget {
		seen := make(map[*types.Content]bool, len(selected))
		for _, c := range selected {
			seen[c] = true
		}
		for _, c := range candidates {
			if len(selected) >= budget {
				break
			}
			if !seen[c] {
				selected = append(selected, c)
			}
		}
	}
	return selected
}
