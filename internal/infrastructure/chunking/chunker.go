package chunking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

// tokenCapFactor caps the token count recorded on a chunk at 120% of the
// target size. A reporting tolerance, not an enforced limit: overlap seeding
// plus one oversized sentence can push the real count past the target.
const tokenCapFactor = 1.2

// TokenChunker splits text into token-bounded, sentence-aligned chunks with
// configurable overlap. Chunks carry character offsets into the joined
// sentence stream and the page number they came from.
type TokenChunker struct {
	targetTokens  int
	overlapTokens int
	minTokens     int
	counter       TokenCounter
}

func NewTokenChunker(targetTokens, overlapTokens, minTokens int, counter TokenCounter) (*TokenChunker, error) {
	if targetTokens <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunker",
			fmt.Errorf("chunk size must be positive, got %d", targetTokens))
	}
	if overlapTokens < 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunker",
			fmt.Errorf("chunk overlap must be non-negative, got %d", overlapTokens))
	}
	if overlapTokens >= targetTokens {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunker",
			fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlapTokens, targetTokens))
	}
	if counter == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunker", errors.New("token counter is required"))
	}
	if minTokens < 0 {
		minTokens = 0
	}
	return &TokenChunker{
		targetTokens:  targetTokens,
		overlapTokens: overlapTokens,
		minTokens:     minTokens,
		counter:       counter,
	}, nil
}

type sentenceSpan struct {
	text      string
	startChar int
	endChar   int
	tokens    int
}

// ChunkText chunks a single block of text. pageNumber is recorded on each
// chunk; pass 0 for unpaginated sources. Empty or whitespace-only text yields
// no chunks.
func (c *TokenChunker) ChunkText(text string, pageNumber int) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	sentences := splitSentences(text)
	return c.packSentences(sentences, pageNumber), nil
}

// ChunkPages chunks every page independently so page numbers stay accurate,
// then re-numbers the combined chunks sequentially across the document.
func (c *TokenChunker) ChunkPages(pages []domain.Page) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for _, page := range pages {
		chunks, err := c.ChunkText(page.Text, page.Number)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	for i := range all {
		all[i].Index = i
	}
	return all, nil
}

func (c *TokenChunker) packSentences(sentences []string, pageNumber int) []domain.Chunk {
	spans := make([]sentenceSpan, 0, len(sentences))
	charPos := 0
	for _, sentence := range sentences {
		length := len([]rune(sentence))
		spans = append(spans, sentenceSpan{
			text:      sentence,
			startChar: charPos,
			endChar:   charPos + length,
			tokens:    c.counter.Count(sentence),
		})
		charPos += length + 1 // joining space
	}
	textLength := charPos - 1

	tokenCap := int(float64(c.targetTokens) * tokenCapFactor)

	var chunks []domain.Chunk
	var current []string
	currentTokens := 0
	currentStart := 0

	for i := 0; i < len(spans); i++ {
		span := spans[i]

		if currentTokens+span.tokens > c.targetTokens && len(current) > 0 {
			endChar := min(span.startChar, textLength)
			chunks = append(chunks, domain.Chunk{
				Index:      len(chunks),
				Content:    strings.Join(current, " "),
				TokenCount: min(currentTokens, tokenCap),
				StartChar:  currentStart,
				EndChar:    endChar,
				PageNumber: pageNumber,
			})

			// Walk backwards through consumed sentences to seed the next
			// chunk with at most overlapTokens worth of trailing context.
			overlapTokens := 0
			var overlap []string
			j := i - 1
			for j >= 0 && overlapTokens <= c.overlapTokens {
				if overlapTokens+spans[j].tokens <= c.overlapTokens {
					overlapTokens += spans[j].tokens
					overlap = append([]string{spans[j].text}, overlap...)
				}
				j--
			}

			current = overlap
			currentTokens = overlapTokens
			if j >= 0 {
				currentStart = spans[j+1].startChar
			} else {
				currentStart = 0
			}
		}

		current = append(current, span.text)
		currentTokens += span.tokens
	}

	if len(current) > 0 {
		// The final chunk must clear minTokens unless it is the only one.
		if currentTokens >= c.minTokens || len(chunks) == 0 {
			chunks = append(chunks, domain.Chunk{
				Index:      len(chunks),
				Content:    strings.Join(current, " "),
				TokenCount: min(currentTokens, tokenCap),
				StartChar:  currentStart,
				EndChar:    textLength,
				PageNumber: pageNumber,
			})
		}
	}

	return chunks
}
