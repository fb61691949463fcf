// Package llm provides embedding provider clients for the Recall system.
// Providers are hand-rolled HTTP clients wrapped in a circuit breaker and a
// request-rate limiter; quota exhaustion is classified distinctly from
// transient failures so the batch scheduler can short-circuit.
package llm

import "context"

// EmbeddingGenerator is the interface for generating vector embeddings.
// Both calls are fallible; quota exhaustion is reported by wrapping
// ErrQuotaExceeded so callers can distinguish it with IsQuotaExceeded.
type EmbeddingGenerator interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for all texts in one bulk
	// call. The result is parallel to texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// GetModel returns the configured model name.
	GetModel() string
}
