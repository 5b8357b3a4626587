package text

import (
	"strings"
)

const (
	DefaultTargetSize = 500
	DefaultOverlap    = 50

	// Chunks at or below this trimmed length carry no retrievable signal
	// and are dropped after splitting.
	minChunkLength = 10

	// The overlap parameter is a character budget, but the seed carried into
	// the next chunk is word-based: overlap/overlapDivisor trailing words.
	overlapDivisor = 5
)

// Chunk splits raw extracted text into overlapping, bounded-size segments
// suitable for embedding. Sentences are accumulated into a buffer until
// appending the next one would push it past targetSize; the closed chunk's
// trailing words seed the next buffer so neighbouring chunks share context.
//
// Chunking is a pure function of its inputs: identical arguments always
// produce the identical ordered sequence. An empty or whitespace-only input
// yields nil, which callers must treat as an ingestion failure.
func Chunk(text string, targetSize, overlap int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	overlapWords := overlap / overlapDivisor

	var chunks []string
	current := ""

	for _, sentence := range sentences {
		if current != "" && len(current)+len(sentence)+1 > targetSize {
			chunks = append(chunks, current)
			current = tailWords(current, overlapWords)
		}
		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, current)
	}

	filtered := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if len(strings.TrimSpace(c)) > minChunkLength {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

// splitSentences cuts text on sentence-terminal punctuation, discarding
// empty and whitespace-only candidates.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// tailWords returns the last n words of s, used to seed the overlap region
// of the following chunk.
func tailWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
