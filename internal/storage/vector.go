package storage

import (
	"math"
	"sort"

	"github.com/scrypster/recall/pkg/types"
)

// CosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 if either vector has zero magnitude or lengths differ,
// so the result is always a real number in [-1, 1] — never NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankBySimilarity ranks candidates by descending cosine similarity to query
// and returns up to limit results. Candidates without embeddings are skipped.
// Ties preserve the candidates' iteration order (the sort is stable).
//
// This is the exhaustive scan shared by backends that rank in Go rather than
// in the database. Similarity scores are deliberately discarded: callers only
// receive ranked entities.
func RankBySimilarity(candidates []*types.Content, query []float32, limit int) []*types.Content {
	if len(query) == 0 {
		return []*types.Content{}
	}
	limit = NormalizeLimit(limit)

	type scored struct {
		content *types.Content
		score   float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasEmbedding() {
			continue
		}
		ranked = append(ranked, scored{c, CosineSimilarity(query, c.Embedding)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	results := make([]*types.Content, len(ranked))
	for i, r := range ranked {
		results[i] = r.content
	}
	return results
}
