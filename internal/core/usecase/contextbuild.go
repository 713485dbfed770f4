package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

// Context assembly budgets with a fast word-count heuristic rather than the
// exact tokenizer the chunker uses. The two counts disagree slightly by
// design: the heuristic keeps assembly cheap, and the budget has enough slack
// that the discrepancy does not matter in practice.
const (
	tokensPerWord = 1.3
	// Blocks are truncated into the remaining budget only while it can still
	// hold something useful.
	contextTruncationFloor = 100
)

func estimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * tokensPerWord)
}

// truncateToTokens trims text to approximately maxTokens using the same
// word-count heuristic.
func truncateToTokens(text string, maxTokens int) string {
	if estimateTokens(text) <= maxTokens {
		return text
	}
	words := strings.Fields(text)
	keep := int(float64(maxTokens) / tokensPerWord)
	if keep > len(words) {
		keep = len(words)
	}
	return strings.Join(words[:keep], " ") + "..."
}

// formatSourceBlock renders one numbered source block for the prompt context.
// index is 1-based: the generator cites sources as [Source N].
func formatSourceBlock(hit domain.RetrievedChunk, index int, content string) string {
	page := "N/A"
	if hit.Chunk.PageNumber > 0 {
		page = strconv.Itoa(hit.Chunk.PageNumber)
	}
	return fmt.Sprintf("[Source %d]\nDocument: %s\nPage: %s\nContent: %s\n---\n",
		index, hit.Chunk.DocumentName, page, content)
}

// assembleContext packs the selected hits into a token-bounded context block.
// When the next block would overflow the budget it is either truncated into
// the remaining space (if more than contextTruncationFloor tokens remain) or
// dropped, and assembly stops either way.
func assembleContext(hits []domain.RetrievedChunk, maxTokens int) string {
	var parts []string
	totalTokens := 0

	for i, hit := range hits {
		block := formatSourceBlock(hit, i+1, hit.Chunk.Content)
		blockTokens := estimateTokens(block)

		if totalTokens+blockTokens > maxTokens {
			remaining := maxTokens - totalTokens
			if remaining > contextTruncationFloor {
				truncated := truncateToTokens(hit.Chunk.Content, remaining)
				parts = append(parts, formatSourceBlock(hit, i+1, truncated))
			}
			break
		}

		parts = append(parts, block)
		totalTokens += blockTokens
	}

	return strings.Join(parts, "\n")
}
