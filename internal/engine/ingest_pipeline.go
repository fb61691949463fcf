package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/scrypster/recall/internal/chunker"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// IngestReport summarises one ingest run. Embedding degradation shows up in
// the counters; only storage failures are errors.
type IngestReport struct {
	// Chunked is the number of entities after chunking.
	Chunked int

	// Stored is the number of entities actually persisted (duplicates by
	// SourceID are skipped by the store).
	Stored int

	// Embedded is the number of entities that received a vector.
	Embedded int

	// Unembedded is the number of entities stored without a vector; they
	// can be re-submitted later.
	Unembedded int

	// QuotaExhausted is true when embedding stopped early on a provider
	// quota signal.
	QuotaExhausted bool
}

// IngestPipeline runs the chunk → embed → store flow for producer content.
type IngestPipeline struct {
	store        storage.ContentStore
	scheduler    *BatchScheduler
	maxChunkSize int
}

// NewIngestPipeline creates a pipeline writing to store, embedding through
// scheduler. A non-positive maxChunkSize uses the chunker default.
func NewIngestPipeline(store storage.ContentStore, scheduler *BatchScheduler, maxChunkSize int) *IngestPipeline {
	if maxChunkSize <= 0 {
		maxChunkSize = chunker.DefaultMaxChunkSize
	}
	return &IngestPipeline{
		store:        store,
		scheduler:    scheduler,
		maxChunkSize: maxChunkSize,
	}
}

// Ingest chunks oversized items, embeds every chunk best-effort, and
// bulk-stores the result. Entities whose embedding failed are stored
// unembedded — a valid state, retried on a later run, never an error.
// Storage failures propagate: losing content is not a degradation the
// pipeline may absorb.
func (p *IngestPipeline) Ingest(ctx context.Context, items []*types.Content) (IngestReport, error) {
	var report IngestReport

	var entities []*types.Content
	for _, item := range items {
		if item == nil {
			continue
		}
		if len([]rune(item.Content)) <= p.maxChunkSize {
			entities = append(entities, item)
			continue
		}
		entities = append(entities, chunker.ChunkEntities(item, item.Content, p.maxChunkSize)...)
	}
	report.Chunked = len(entities)
	if len(entities) == 0 {
		return report, nil
	}

	// Embed whatever still lacks a vector. Results come back as a parallel
	// list and are merged here, keeping entity mutation in one place.
	var pending []int
	var pendingTexts []string
	for i, e := range entities {
		if !e.HasEmbedding() {
			pending = append(pending, i)
			pendingTexts = append(pendingTexts, e.Content)
		}
	}
	if len(pending) > 0 {
		vectors, batchReport := p.scheduler.GenerateEmbeddings(ctx, pendingTexts)
		for j, idx := range pending {
			if vectors[j] != nil {
				entities[idx].Embedding = vectors[j]
			}
		}
		report.QuotaExhausted = batchReport.QuotaExhausted
		if batchReport.Failed > 0 {
			log.Printf("engine: %d of %d entities left unembedded (quota exhausted: %v)",
				batchReport.Failed, len(pending), batchReport.QuotaExhausted)
		}
	}

	for _, e := range entities {
		if e.HasEmbedding() {
			report.Embedded++
		} else {
			report.Unembedded++
		}
	}

	stored, err := p.store.AddContents(ctx, entities)
	if err != nil {
		return report, fmt.Errorf("engine: store ingested entities: %w", err)
	}
	report.Stored = stored
	return report, nil
}
