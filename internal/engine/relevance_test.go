package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevantWindowShortContentUnchanged(t *testing.T) {
	content := "A short note about the zebra migration."
	assert.Equal(t, content, RelevantWindow(content, "zebra", 1500, 100))
}

// TestRelevantWindowFindsMatch verifies the window slides to the portion of
// the content containing the query words.
func TestRelevantWindowFindsMatch(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor sit amet ", 100) // ~2700 chars
	content := filler + "the zebra migration happens in spring " + filler

	window := RelevantWindow(content, "zebra migration", 200, 50)

	assert.LessOrEqual(t, len([]rune(window)), 200)
	assert.Contains(t, strings.ToLower(window), "zebra")
	assert.Contains(t, strings.ToLower(window), "migration")
}

// TestRelevantWindowMatchAtEnd verifies the final clamped window is scanned
// so matches in the tail are not missed.
func TestRelevantWindowMatchAtEnd(t *testing.T) {
	content := strings.Repeat("padding text ", 200) + "quarterly revenue numbers"

	window := RelevantWindow(content, "quarterly revenue", 100, 64)

	assert.Contains(t, window, "quarterly revenue")
	assert.LessOrEqual(t, len([]rune(window)), 100)
}

// TestRelevantWindowNoMatchReturnsPrefix verifies content with no query hits
// falls back to the leading window.
func TestRelevantWindowNoMatchReturnsPrefix(t *testing.T) {
	content := strings.Repeat("abcdefghij", 100)

	window := RelevantWindow(content, "zzz nothing matches", 50, 25)

	assert.Equal(t, content[:50], window)
}

// TestRelevantWindowIgnoresShortWords verifies one- and two-character query
// words do not influence scoring.
func TestRelevantWindowIgnoresShortWords(t *testing.T) {
	content := strings.Repeat("x", 500) + " it is an ok day " + strings.Repeat("y", 500)

	// Every query word is under three characters, so no window can score and
	// the prefix wins.
	window := RelevantWindow(content, "it is an ok", 100, 50)
	assert.Equal(t, strings.Repeat("x", 100), window)
}

func TestRelevantWindowCaseInsensitive(t *testing.T) {
	content := strings.Repeat("z", 300) + " IMPORTANT MEETING NOTES " + strings.Repeat("z", 300)

	window := RelevantWindow(content, "important meeting", 100, 50)
	assert.Contains(t, window, "IMPORTANT MEETING")
}

func TestRelevantWindowMultibyte(t *testing.T) {
	content := strings.Repeat("あいうえお", 200) + "会議の議事録" + strings.Repeat("かきくけこ", 200)

	window := RelevantWindow(content, "会議の議事録", 100, 50)
	require.LessOrEqual(t, len([]rune(window)), 100)
	assert.Contains(t, window, "会議の議事録")
}

func TestRelevantWindowDegenerateParameters(t *testing.T) {
	content := strings.Repeat("a", 100)
	assert.Equal(t, content, RelevantWindow(content, "query", 0, 10))
	assert.Equal(t, content, RelevantWindow(content, "query", 10, 0))
}

func TestQueryWords(t *testing.T) {
	assert.Equal(t, []string{"zebra", "migration"}, queryWords("a Zebra IS migration"))
	assert.Nil(t, queryWords("a is to"))
	assert.Nil(t, queryWords(""))
}
