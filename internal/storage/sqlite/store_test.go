package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "recall_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testContent(sourceID string, contentType types.ContentType, embedding []float32) *types.Content {
	return &types.Content{
		SourceID:    sourceID,
		Title:       "Title " + sourceID,
		Author:      "tester",
		Content:     "Body of " + sourceID,
		CreatedDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Type:        contentType,
		Embedding:   embedding,
	}
}

func TestAddAndGetContent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddContent(ctx, testContent("a", types.TypeEmail, []float32{0.25, -1.5, 3})))

	all, err := store.GetAllContents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	c := all[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "a", c.SourceID)
	assert.Equal(t, "Title a", c.Title)
	assert.Equal(t, types.TypeEmail, c.Type)
	assert.Equal(t, []float32{0.25, -1.5, 3}, c.Embedding, "embedding survives the BLOB round trip")
}

func TestAddContentUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddContent(ctx, testContent("a", types.TypeNote, nil)))

	updated := testContent("a", types.TypeNote, []float32{1, 0})
	updated.Content = "updated body"
	require.NoError(t, store.AddContent(ctx, updated))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "upsert must not create a second row")

	all, err := store.GetAllContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, "updated body", all[0].Content)
	assert.True(t, all[0].HasEmbedding())
}

// TestAddContentsSkipsDuplicates verifies the bulk path filters existing
// source_ids and reports only rows actually written.
func TestAddContentsSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddContent(ctx, testContent("a", types.TypeNote, nil)))

	existing := testContent("a", types.TypeNote, nil)
	existing.Content = "should not replace"
	stored, err := store.AddContents(ctx, []*types.Content{
		existing,
		testContent("b", types.TypeEmail, nil),
		testContent("c", types.TypeDocument, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	all, err := store.GetAllContents(ctx)
	require.NoError(t, err)
	bySource := make(map[string]*types.Content, len(all))
	for _, c := range all {
		bySource[c.SourceID] = c
	}
	assert.Equal(t, "Body of a", bySource["a"].Content, "duplicate must not overwrite")
}

func TestGetContentsByType(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.AddContents(ctx, []*types.Content{
		testContent("e1", types.TypeEmail, nil),
		testContent("n1", types.TypeNote, nil),
		testContent("e2", types.TypeEmail, nil),
	})
	require.NoError(t, err)

	emails, err := store.GetContentsByType(ctx, types.TypeEmail)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	for _, c := range emails {
		assert.Equal(t, types.TypeEmail, c.Type)
	}

	contacts, err := store.GetContentsByType(ctx, types.TypeContact)
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestSearchSimilarRanking(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.AddContents(ctx, []*types.Content{
		testContent("low", types.TypeNote, []float32{0.1, 0.995}),
		testContent("high", types.TypeNote, []float32{0.9, 0.436}),
		testContent("unembedded", types.TypeNote, nil),
		testContent("mid", types.TypeNote, []float32{0.5, 0.866}),
	})
	require.NoError(t, err)

	results, err := store.SearchSimilar(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].SourceID)
	assert.Equal(t, "mid", results[1].SourceID)
}

func TestSearchSimilarEmptyQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddContent(ctx, testContent("a", types.TypeNote, []float32{1, 0})))

	results, err := store.SearchSimilar(ctx, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClearAndCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.AddContents(ctx, []*types.Content{
		testContent("a", types.TypeNote, nil),
		testContent("b", types.TypeNote, nil),
	})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.AddContent(ctx, testContent("a", types.TypeNote, nil)))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestPersistenceAcrossReopen verifies rows written by one Store are visible
// after closing and reopening the same database file.
func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "recall_test.db")

	store, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.AddContent(ctx, testContent("a", types.TypeDocument, []float32{1, 2})))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	all, err := reopened.GetAllContents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].SourceID)
	assert.Equal(t, []float32{1, 2}, all[0].Embedding)
}

func TestEmbeddingSerializationRoundTrip(t *testing.T) {
	original := []float32{0, -0.5, 1.25, 3.1415927, -2e-7}

	blob := serializeEmbedding(original)
	decoded, err := deserializeEmbedding(blob, len(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEmbeddingSerializationEdgeCases(t *testing.T) {
	assert.Nil(t, serializeEmbedding(nil))
	assert.Nil(t, serializeEmbedding([]float32{}))

	decoded, err := deserializeEmbedding(nil, 0)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = deserializeEmbedding([]byte{1, 2, 3}, 2)
	assert.ErrorIs(t, err, errDimensionMismatch)
}
