// Package engine coordinates the Recall ingestion and retrieval flows:
// batch embedding generation under provider rate limits, the chunk→embed→
// store ingest pipeline, and query-time retrieval with relevance windowing.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/scrypster/recall/internal/llm"
)

// BatchSchedulerConfig tunes the embedding batch scheduler.
type BatchSchedulerConfig struct {
	// TokensPerMinute is the provider's token-rate ceiling per rolling
	// one-minute window (default: 100000).
	TokensPerMinute int

	// MaxBatchSize caps items per bulk embedding call, guarding the
	// provider's payload size limit (default: 64).
	MaxBatchSize int

	// FallbackConcurrency caps simultaneous individual calls when a bulk
	// call fails (default: 3).
	FallbackConcurrency int

	// FallbackDelay is the pause between successive groups of individual
	// fallback calls (default: 15s).
	FallbackDelay time.Duration

	// EstimateTokens estimates a text's token cost. The default is the
	// length/4 heuristic — a cheap proxy, not a tokenizer. Swap it per
	// provider without touching scheduler logic.
	EstimateTokens func(string) int
}

// EstimateTokens estimates the number of tokens in the given text using a
// heuristic of approximately 4 characters per token, a reasonable
// approximation for English text with GPT-style tokenizers.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// BatchReport summarises one GenerateEmbeddings invocation. Degradation is
// reported here, never as an error: callers inspect which result slots are
// nil to see what remains unembedded.
type BatchReport struct {
	// Requested is the number of input texts.
	Requested int

	// Embedded is the number of texts that received a vector.
	Embedded int

	// Failed is the number of texts left without a vector, whether from
	// per-item errors or from a quota abort.
	Failed int

	// QuotaExhausted is true when the provider signalled quota exhaustion
	// and the remaining items were abandoned without further calls.
	QuotaExhausted bool
}

// BatchScheduler converts lists of texts into vectors under a token-rate
// budget and a bounded fallback concurrency, degrading gracefully when the
// provider reports quota exhaustion.
//
// Throughput comes from bulk calls sized against a rolling one-minute token
// window; when a bulk call is rejected outright the same texts are re-issued
// as individual calls in small concurrent groups. A quota signal anywhere
// sets a sticky flag that stops all further calls in the invocation.
type BatchScheduler struct {
	generator llm.EmbeddingGenerator
	cfg       BatchSchedulerConfig

	// Clock indirection so the rolling window is testable with a fake clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatchScheduler creates a scheduler with defaults applied for any unset
// configuration field.
func NewBatchScheduler(generator llm.EmbeddingGenerator, cfg BatchSchedulerConfig) *BatchScheduler {
	if cfg.TokensPerMinute <= 0 {
		cfg.TokensPerMinute = 100000
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 64
	}
	if cfg.FallbackConcurrency <= 0 {
		cfg.FallbackConcurrency = 3
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = 15 * time.Second
	}
	if cfg.EstimateTokens == nil {
		cfg.EstimateTokens = EstimateTokens
	}
	return &BatchScheduler{
		generator: generator,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// tokenWindow tracks estimated token spend against a rolling one-minute window.
type tokenWindow struct {
	start  time.Time
	tokens int
}

// GenerateEmbeddings embeds texts and returns a result slice parallel to the
// input: results[i] is the vector for texts[i], or nil where embedding
// failed. The call returns after attempting every item or detecting quota
// exhaustion; in the latter case remaining slots stay nil and the report's
// QuotaExhausted flag is set. Partial failure is never an error.
func (s *BatchScheduler) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, BatchReport) {
	results := make([][]float32, len(texts))
	report := BatchReport{Requested: len(texts)}
	if len(texts) == 0 {
		return results, report
	}

	window := tokenWindow{start: s.now()}
	var batch []int // indices into texts, in input order
	batchTokens := 0
	quota := false

	flush := func() {
		if len(batch) == 0 || quota {
			batch, batchTokens = nil, 0
			return
		}
		quota = s.flushBatch(ctx, texts, batch, results)
		window.tokens += batchTokens
		batch, batchTokens = nil, 0
	}

	for i, text := range texts {
		if quota {
			break
		}
		cost := s.cfg.EstimateTokens(text)

		// Roll the window over once a minute has elapsed.
		if s.now().Sub(window.start) >= time.Minute {
			window = tokenWindow{start: s.now()}
		}

		// Flush before this item would push the window past the ceiling.
		if window.tokens+batchTokens+cost > s.cfg.TokensPerMinute && len(batch) > 0 {
			flush()
		}

		// If the item alone overflows the remaining window budget, wait for
		// the rollover. An item costing more than the whole ceiling is sent
		// alone after a fresh window; nothing smaller can precede it anyway.
		for !quota && window.tokens+cost > s.cfg.TokensPerMinute && cost <= s.cfg.TokensPerMinute {
			if err := s.sleep(ctx, window.start.Add(time.Minute).Sub(s.now())); err != nil {
				// Context cancelled: abandon remaining items.
				report.Embedded = len(texts) - countMissing(results)
				report.Failed = countMissing(results)
				return results, report
			}
			window = tokenWindow{start: s.now()}
		}

		batch = append(batch, i)
		batchTokens += cost

		if len(batch) >= s.cfg.MaxBatchSize {
			flush()
		}
	}
	flush()

	report.QuotaExhausted = quota
	report.Embedded = len(texts) - countMissing(results)
	report.Failed = countMissing(results)
	return results, report
}

// flushBatch issues one bulk embedding call for the given indices, falling
// back to individual calls when the bulk call fails outright. Returns true
// when the provider signalled quota exhaustion.
func (s *BatchScheduler) flushBatch(ctx context.Context, texts []string, batch []int, results [][]float32) bool {
	batchTexts := make([]string, len(batch))
	for i, idx := range batch {
		batchTexts[i] = texts[idx]
	}

	vectors, err := s.generator.EmbedBatch(ctx, batchTexts)
	if err == nil && len(vectors) == len(batch) {
		for i, idx := range batch {
			results[idx] = vectors[i]
		}
		return false
	}

	if llm.IsQuotaExceeded(err) {
		log.Printf("engine: bulk embedding call hit provider quota, aborting batch of %d", len(batch))
		return true
	}
	log.Printf("engine: bulk embedding call failed (%v), retrying %d items individually", err, len(batch))
	return s.fallbackIndividual(ctx, texts, batch, results)
}

// fallbackIndividual re-issues the batch as individual embedding calls in
// groups of at most FallbackConcurrency, pausing FallbackDelay between
// groups. A quota signal from any call aborts all remaining groups; other
// errors leave that item's slot nil and processing continues. Returns true
// when quota exhaustion was detected.
func (s *BatchScheduler) fallbackIndividual(ctx context.Context, texts []string, batch []int, results [][]float32) bool {
	for start := 0; start < len(batch); start += s.cfg.FallbackConcurrency {
		end := start + s.cfg.FallbackConcurrency
		if end > len(batch) {
			end = len(batch)
		}
		group := batch[start:end]

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			quota bool
		)
		for _, idx := range group {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				vec, err := s.generator.Embed(ctx, texts[idx])
				if err != nil {
					if llm.IsQuotaExceeded(err) {
						mu.Lock()
						quota = true
						mu.Unlock()
					} else {
						log.Printf("engine: individual embedding call failed: %v", err)
					}
					return
				}
				results[idx] = vec
			}(idx)
		}
		wg.Wait()

		if quota {
			log.Printf("engine: individual embedding call hit provider quota, aborting %d remaining", len(batch)-end)
			return true
		}

		if end < len(batch) {
			if err := s.sleep(ctx, s.cfg.FallbackDelay); err != nil {
				return false
			}
		}
	}
	return false
}

// countMissing counts nil result slots.
func countMissing(results [][]float32) int {
	n := 0
	for _, r := range results {
		if r == nil {
			n++
		}
	}
	return n
}
