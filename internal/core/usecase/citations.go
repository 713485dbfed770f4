package usecase

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

var citationPattern = regexp.MustCompile(`\[Source (\d+)\]`)

const snippetMaxChars = 150

// resolveCitations maps every [Source N] marker in the answer back to its
// source chunk. Markers are deduplicated and resolved in ascending order;
// numbers outside [1, len(contextHits)] are dropped without error. The
// resolution never fails: malformed answers simply yield fewer citations.
func resolveCitations(answerText string, contextHits []domain.RetrievedChunk) []domain.Citation {
	numbers := extractCitationNumbers(answerText)

	citations := make([]domain.Citation, 0, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > len(contextHits) {
			continue
		}
		hit := contextHits[n-1]
		citations = append(citations, domain.Citation{
			DocumentID:     hit.Chunk.DocumentID,
			DocumentName:   hit.Chunk.DocumentName,
			Page:           hit.Chunk.PageNumber,
			ChunkID:        hit.Chunk.ID,
			Snippet:        extractRelevantSnippet(hit.Chunk.Content, answerText, snippetMaxChars),
			RelevanceScore: hit.Score,
		})
	}
	return citations
}

// extractCitationNumbers returns the distinct citation numbers found in the
// text, sorted ascending.
func extractCitationNumbers(text string) []int {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[int]struct{}, len(matches))
	numbers := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// extractRelevantSnippet picks the sentence of the chunk sharing the most
// vocabulary with the answer, falling back to the first sentence, bounded at
// maxChars.
func extractRelevantSnippet(chunkContent, answerText string, maxChars int) string {
	answerWords := toWordSet(answerText)

	sentences := strings.Split(chunkContent, ".")
	best := ""
	maxOverlap := 0
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		overlap := 0
		for word := range toWordSet(sentence) {
			if _, ok := answerWords[word]; ok {
				overlap++
			}
		}
		if overlap > maxOverlap {
			maxOverlap = overlap
			best = sentence
		}
	}

	if best == "" && len(sentences) > 0 {
		best = strings.TrimSpace(sentences[0])
	}

	if runes := []rune(best); len(runes) > maxChars {
		return string(runes[:maxChars]) + "..."
	}
	return best
}

func toWordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
