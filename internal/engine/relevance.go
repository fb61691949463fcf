package engine

import "strings"

// minQueryWordLength filters out short stop-ish words ("a", "is", "to")
// before window scoring.
const minQueryWordLength = 3

// RelevantWindow returns the most query-relevant substring of content, at
// most size characters long. The query is tokenized into words of at least
// three characters; a window of the given size slides across the content in
// stride-sized steps and each window is scored by how many query words it
// contains (case-insensitive substring match). The first highest-scoring
// window wins ties. Content that already fits is returned unchanged.
func RelevantWindow(content, query string, size, stride int) string {
	if size <= 0 || stride <= 0 {
		return content
	}

	runes := []rune(content)
	if len(runes) <= size {
		return content
	}

	words := queryWords(query)

	bestStart := 0
	bestScore := -1
	for start := 0; ; start += stride {
		last := false
		if start >= len(runes)-size {
			start = len(runes) - size
			last = true
		}

		window := strings.ToLower(string(runes[start : start+size]))
		score := 0
		for _, w := range words {
			if strings.Contains(window, w) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestStart = start
		}

		if last {
			break
		}
	}

	return string(runes[bestStart : bestStart+size])
}

// queryWords lowercases the query and keeps words long enough to be
// meaningful match signals.
func queryWords(query string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(w)) >= minQueryWordLength {
			words = append(words, w)
		}
	}
	return words
}
