// Package chunker splits oversized content into bounded-size, reassemblable
// pieces before embedding and storage. Splitting is lossless: concatenating
// the chunks in order reproduces the original text exactly.
package chunker

import (
	"fmt"

	"github.com/scrypster/recall/pkg/types"
)

// DefaultMaxChunkSize is the default maximum chunk length in characters.
// It keeps a single chunk comfortably within embedding provider input limits.
const DefaultMaxChunkSize = 20000

// ChunkText splits text into contiguous, non-overlapping substrings of at
// most maxLen characters. The split is order-preserving and lossless, and
// split points always fall on rune boundaries so multi-byte characters are
// never broken. Text that already fits is returned as a single-element slice,
// unchanged.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkSize
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+maxLen-1)/maxLen)
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// ChunkEntities applies ChunkText to fullText and produces one Content per
// chunk. Every chunk copies the original's metadata; SourceID gets a
// "_chunk_{i}" suffix and, when more than one chunk exists, Title gets a
// "(Part i/N)" suffix so the pieces stay traceable to the original.
// Chunk entities start unembedded.
func ChunkEntities(original *types.Content, fullText string, maxLen int) []*types.Content {
	pieces := ChunkText(fullText, maxLen)

	entities := make([]*types.Content, 0, len(pieces))
	for i, piece := range pieces {
		c := &types.Content{
			SourceID:    fmt.Sprintf("%s_chunk_%d", original.SourceID, i),
			Title:       original.Title,
			Author:      original.Author,
			Content:     piece,
			CreatedDate: original.CreatedDate,
			Type:        original.Type,
		}
		if len(pieces) > 1 {
			c.Title = fmt.Sprintf("%s (Part %d/%d)", original.Title, i+1, len(pieces))
		}
		entities = append(entities, c)
	}
	return entities
}
