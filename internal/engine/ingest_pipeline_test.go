package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/storage/memory"
	"github.com/scrypster/recall/pkg/types"
)

// basisEmbedder assigns each distinct text the next standard basis vector,
// so identical texts are maximally similar and distinct texts orthogonal.
func basisEmbedder(dim int) *fakeEmbedder {
	assigned := make(map[string][]float32)
	vector := func(text string) []float32 {
		if v, ok := assigned[text]; ok {
			return v
		}
		v := make([]float32, dim)
		v[len(assigned)%dim] = 1
		assigned[text] = v
		return v
	}
	return &fakeEmbedder{
		batchFn: func(texts []string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i, text := range texts {
				vectors[i] = vector(text)
			}
			return vectors, nil
		},
		embedFn: func(text string) ([]float32, error) {
			return vector(text), nil
		},
	}
}

// numberedText builds deterministic, non-repeating text of exactly n runes so
// every chunk of it has distinct content.
func numberedText(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "%07d ", i)
	}
	return b.String()[:n]
}

func newTestPipeline(t *testing.T, embedder *fakeEmbedder, maxChunkSize int) (*IngestPipeline, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	scheduler := NewBatchScheduler(embedder, BatchSchedulerConfig{})
	newFakeClock().install(scheduler)
	return NewIngestPipeline(store, scheduler, maxChunkSize), store
}

// TestIngestLargeDocumentEndToEnd covers the full flow: a 50,000-character
// document is split into three chunks, every chunk is embedded and stored,
// and searching with one chunk's own vector returns that chunk first.
func TestIngestLargeDocumentEndToEnd(t *testing.T) {
	ctx := context.Background()
	pipeline, store := newTestPipeline(t, basisEmbedder(8), 20000)

	doc := &types.Content{
		SourceID:    "doc-1",
		Title:       "Annual report",
		Author:      "finance",
		Content:     numberedText(50000),
		CreatedDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Type:        types.TypeDocument,
	}

	report, err := pipeline.Ingest(ctx, []*types.Content{doc})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Chunked)
	assert.Equal(t, 3, report.Stored)
	assert.Equal(t, 3, report.Embedded)
	assert.Equal(t, 0, report.Unembedded)
	assert.False(t, report.QuotaExhausted)

	all, err := store.GetAllContents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	var reassembled strings.Builder
	for i, c := range all {
		assert.Equal(t, fmt.Sprintf("doc-1_chunk_%d", i), c.SourceID)
		assert.Equal(t, fmt.Sprintf("Annual report (Part %d/3)", i+1), c.Title)
		assert.Equal(t, types.TypeDocument, c.Type)
		assert.True(t, c.HasEmbedding())
		reassembled.WriteString(c.Content)
	}
	assert.Equal(t, doc.Content, reassembled.String(), "chunking must be lossless")

	// Searching with the middle chunk's own vector must return it first.
	results, err := store.SearchSimilar(ctx, all[1].Embedding, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1_chunk_1", results[0].SourceID)
}

// TestIngestSmallItemKeepsSourceID verifies content within the chunk limit
// is stored as-is with its original identity.
func TestIngestSmallItemKeepsSourceID(t *testing.T) {
	ctx := context.Background()
	pipeline, store := newTestPipeline(t, basisEmbedder(4), 20000)

	note := &types.Content{
		SourceID: "note-1",
		Title:    "Standup notes",
		Content:  "Short enough to store whole.",
		Type:     types.TypeNote,
	}

	report, err := pipeline.Ingest(ctx, []*types.Content{note})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Chunked)
	assert.Equal(t, 1, report.Stored)

	all, err := store.GetAllContents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "note-1", all[0].SourceID)
	assert.Equal(t, "Standup notes", all[0].Title)
}

// TestIngestQuotaDegradesToUnembedded verifies quota exhaustion stores the
// content without vectors instead of failing the ingest.
func TestIngestQuotaDegradesToUnembedded(t *testing.T) {
	ctx := context.Background()
	embedder := basisEmbedder(4)
	embedder.batchFn = func(texts []string) ([][]float32, error) {
		return nil, fmt.Errorf("openai returned status 429: %w", llm.ErrQuotaExceeded)
	}
	embedder.embedFn = func(text string) ([]float32, error) {
		return nil, llm.ErrQuotaExceeded
	}
	pipeline, store := newTestPipeline(t, embedder, 20000)

	items := []*types.Content{
		{SourceID: "a", Content: "first", Type: types.TypeNote},
		{SourceID: "b", Content: "second", Type: types.TypeNote},
	}

	report, err := pipeline.Ingest(ctx, items)
	require.NoError(t, err, "embedding degradation is never an ingest error")
	assert.True(t, report.QuotaExhausted)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 0, report.Embedded)
	assert.Equal(t, 2, report.Unembedded)

	all, err := store.GetAllContents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		assert.False(t, c.HasEmbedding())
	}
}

// TestIngestSkipsAlreadyEmbedded verifies pre-embedded entities are stored
// without another provider call.
func TestIngestSkipsAlreadyEmbedded(t *testing.T) {
	ctx := context.Background()
	embedder := basisEmbedder(4)
	pipeline, _ := newTestPipeline(t, embedder, 20000)

	item := &types.Content{
		SourceID:  "pre-1",
		Content:   "already has a vector",
		Type:      types.TypeNote,
		Embedding: []float32{0.5, 0.5},
	}

	report, err := pipeline.Ingest(ctx, []*types.Content{item})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
	assert.Empty(t, embedder.batchCalls)
	assert.Empty(t, embedder.embedCalls)
}

// TestIngestDuplicateChunksSkipped verifies re-ingesting the same source does
// not duplicate rows.
func TestIngestDuplicateChunksSkipped(t *testing.T) {
	ctx := context.Background()
	pipeline, store := newTestPipeline(t, basisEmbedder(8), 10)

	doc := &types.Content{SourceID: "doc-1", Content: numberedText(25), Type: types.TypeDocument}

	report, err := pipeline.Ingest(ctx, []*types.Content{doc.Clone()})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stored)

	report, err = pipeline.Ingest(ctx, []*types.Content{doc.Clone()})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Stored, "all chunks already exist")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngestStorageErrorPropagates(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{err: errors.New("disk full")}
	scheduler := NewBatchScheduler(basisEmbedder(4), BatchSchedulerConfig{})
	newFakeClock().install(scheduler)
	pipeline := NewIngestPipeline(store, scheduler, 20000)

	_, err := pipeline.Ingest(ctx, []*types.Content{
		{SourceID: "a", Content: "body", Type: types.TypeNote},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestIngestNoItems(t *testing.T) {
	pipeline, _ := newTestPipeline(t, basisEmbedder(4), 20000)

	report, err := pipeline.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, IngestReport{}, report)
}

// failingStore returns its error from every write.
type failingStore struct {
	fakeStore
	err error
}

func (f *failingStore) AddContents(ctx context.Context, cs []*types.Content) (int, error) {
	return 0, f.err
}
