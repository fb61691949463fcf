package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/pkg/types"
)

// TestChunkTextSmallContent verifies content within the limit passes through
// as a single unchanged chunk.
func TestChunkTextSmallContent(t *testing.T) {
	content := "This is a small piece of content. It should not be split."

	chunks := ChunkText(content, 20000)

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0])
}

// TestChunkTextRoundTrip verifies the lossless property: concatenating the
// chunks in order reproduces the original, and no chunk exceeds maxLen.
func TestChunkTextRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		maxLen int
	}{
		{"empty", "", 10},
		{"exact fit", strings.Repeat("x", 10), 10},
		{"one over", strings.Repeat("x", 11), 10},
		{"large", strings.Repeat("The quick brown fox jumps over the lazy dog. ", 2000), 1000},
		{"tiny max", "hello world", 1},
		{"multibyte runes", strings.Repeat("héllo wörld 世界 ", 500), 64},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := ChunkText(tc.text, tc.maxLen)

			assert.Equal(t, tc.text, strings.Join(chunks, ""), "concatenation must reproduce the input")
			for i, chunk := range chunks {
				assert.LessOrEqual(t, len([]rune(chunk)), tc.maxLen, "chunk %d exceeds max length", i)
			}
		})
	}
}

// TestChunkTextNeverSplitsRunes verifies split points fall on rune boundaries.
func TestChunkTextNeverSplitsRunes(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 100)

	for _, chunk := range ChunkText(text, 7) {
		assert.True(t, strings.Contains(text, chunk), "chunk must be a valid substring: %q", chunk)
	}
}

// TestChunkEntitiesSingleChunk verifies a small entity keeps its title and
// still gets the chunk suffix on SourceID.
func TestChunkEntitiesSingleChunk(t *testing.T) {
	original := &types.Content{
		SourceID: "msg-42",
		Title:    "Quarterly report",
		Author:   "sam@example.com",
		Type:     types.TypeEmail,
	}

	entities := ChunkEntities(original, "short body", 20000)

	require.Len(t, entities, 1)
	assert.Equal(t, "msg-42_chunk_0", entities[0].SourceID)
	assert.Equal(t, "Quarterly report", entities[0].Title, "single chunk keeps the original title")
	assert.Equal(t, "short body", entities[0].Content)
	assert.False(t, entities[0].HasEmbedding())
}

// TestChunkEntitiesMetadata verifies chunk entities copy metadata and carry
// part-numbered titles and suffixed source IDs.
func TestChunkEntitiesMetadata(t *testing.T) {
	original := &types.Content{
		SourceID: "doc-7",
		Title:    "Design notes",
		Author:   "alex",
		Type:     types.TypeDocument,
	}
	fullText := strings.Repeat("a", 25)

	entities := ChunkEntities(original, fullText, 10)

	require.Len(t, entities, 3)
	for i, e := range entities {
		assert.Equal(t, fmt.Sprintf("doc-7_chunk_%d", i), e.SourceID)
		assert.Equal(t, fmt.Sprintf("Design notes (Part %d/3)", i+1), e.Title)
		assert.Equal(t, "alex", e.Author)
		assert.Equal(t, types.TypeDocument, e.Type)
		assert.Nil(t, e.Embedding, "chunk entities start unembedded")
	}
}
