package chunking

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

// wordCounter counts one token per whitespace-separated word.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func newTestChunker(t *testing.T, target, overlap, minTokens int) *TokenChunker {
	t.Helper()
	chunker, err := NewTokenChunker(target, overlap, minTokens, wordCounter{})
	if err != nil {
		t.Fatalf("NewTokenChunker() error = %v", err)
	}
	return chunker
}

func manySentences(n, wordsEach int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(fmt.Sprintf("Sentence number %d has", i))
		for w := 0; w < wordsEach-4; w++ {
			b.WriteString(" filler")
		}
		b.WriteString(". ")
	}
	return strings.TrimSpace(b.String())
}

func TestNewTokenChunkerRejectsInvalidParameters(t *testing.T) {
	cases := []struct {
		name            string
		target, overlap int
	}{
		{"zero target", 0, 0},
		{"negative target", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals target", 100, 100},
		{"overlap above target", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTokenChunker(tc.target, tc.overlap, 0, wordCounter{})
			if err == nil {
				t.Fatalf("expected configuration error")
			}
			if !domain.IsKind(err, domain.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestChunkTextEmptyInputYieldsNoChunks(t *testing.T) {
	chunker := newTestChunker(t, 50, 10, 0)
	for _, text := range []string{"", "   ", "\n\t "} {
		chunks, err := chunker.ChunkText(text, 0)
		if err != nil {
			t.Fatalf("ChunkText(%q) error = %v", text, err)
		}
		if len(chunks) != 0 {
			t.Fatalf("expected no chunks for %q, got %d", text, len(chunks))
		}
	}
}

func TestChunkTextPacksWithOverlap(t *testing.T) {
	text := manySentences(20, 8)
	chunker := newTestChunker(t, 50, 10, 100)

	chunks, err := chunker.ChunkText(text, 0)
	if err != nil {
		t.Fatalf("ChunkText() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := strings.Split(chunks[i-1].Content, ". ")
		lastSentence := prev[len(prev)-1]
		if !strings.HasPrefix(chunks[i].Content, strings.TrimSuffix(lastSentence, ".")) {
			t.Fatalf("chunk %d does not start with overlap from chunk %d:\nprev tail: %q\nnext head: %q",
				i, i-1, lastSentence, chunks[i].Content[:40])
		}
	}
}

func TestChunkTextZeroOverlapCoversAllWords(t *testing.T) {
	text := manySentences(15, 7)
	chunker := newTestChunker(t, 20, 0, 0)

	chunks, err := chunker.ChunkText(text, 0)
	if err != nil {
		t.Fatalf("ChunkText() error = %v", err)
	}

	var joined []string
	for _, chunk := range chunks {
		joined = append(joined, chunk.Content)
	}
	got := strings.Fields(strings.Join(joined, " "))
	want := strings.Fields(text)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("zero-overlap chunks do not reproduce source words: got %d words, want %d", len(got), len(want))
	}
}

func TestChunkInvariants(t *testing.T) {
	text := manySentences(30, 9)
	chunker := newTestChunker(t, 40, 8, 5)

	chunks, err := chunker.ChunkText(text, 3)
	if err != nil {
		t.Fatalf("ChunkText() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Fatalf("chunk %d has index %d", i, chunk.Index)
		}
		if chunk.EndChar <= chunk.StartChar {
			t.Fatalf("chunk %d offsets invalid: start=%d end=%d", i, chunk.StartChar, chunk.EndChar)
		}
		if chunk.TokenCount <= 0 {
			t.Fatalf("chunk %d has token count %d", i, chunk.TokenCount)
		}
		if chunk.PageNumber != 3 {
			t.Fatalf("chunk %d lost page number: %d", i, chunk.PageNumber)
		}
	}
}

func TestChunkTextIdempotent(t *testing.T) {
	text := manySentences(12, 6)
	chunker := newTestChunker(t, 25, 5, 0)

	first, err := chunker.ChunkText(text, 1)
	if err != nil {
		t.Fatalf("first ChunkText() error = %v", err)
	}
	second, err := chunker.ChunkText(text, 1)
	if err != nil {
		t.Fatalf("second ChunkText() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("chunking is not deterministic")
	}
}

func TestShortFinalChunkKeptOnlyWhenAlone(t *testing.T) {
	chunker := newTestChunker(t, 50, 0, 100)

	// A single short text stays below minTokens but is the only chunk.
	only, err := chunker.ChunkText("Just one tiny sentence.", 0)
	if err != nil {
		t.Fatalf("ChunkText() error = %v", err)
	}
	if len(only) != 1 {
		t.Fatalf("expected the sole short chunk to be kept, got %d chunks", len(only))
	}

	// With earlier chunks present, a short remainder is dropped.
	text := manySentences(14, 8) + " Tail."
	chunks, err := chunker.ChunkText(text, 0)
	if err != nil {
		t.Fatalf("ChunkText() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if strings.Contains(chunk.Content, "Tail.") {
			t.Fatalf("short final remainder below minTokens was emitted: %q", chunk.Content)
		}
	}
}

func TestTokenCountCappedAtTwentyPercentAllowance(t *testing.T) {
	// One giant sentence cannot be split, so the real count exceeds the
	// target; the recorded count is capped at 1.2x.
	words := strings.Repeat("word ", 100)
	chunker := newTestChunker(t, 50, 10, 0)

	chunks, err := chunker.ChunkText(strings.TrimSpace(words), 0)
	if err != nil {
		t.Fatalf("ChunkText() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].TokenCount != 60 {
		t.Fatalf("expected capped token count 60, got %d", chunks[0].TokenCount)
	}
}

func TestChunkPagesRenumbersSequentially(t *testing.T) {
	chunker := newTestChunker(t, 20, 0, 0)
	pages := []domain.Page{
		{Number: 1, Text: manySentences(8, 6)},
		{Number: 2, Text: "   "},
		{Number: 3, Text: manySentences(8, 6)},
	}

	chunks, err := chunker.ChunkPages(pages)
	if err != nil {
		t.Fatalf("ChunkPages() error = %v", err)
	}
	if len(chunks) < 4 {
		t.Fatalf("expected chunks from both non-empty pages, got %d", len(chunks))
	}
	sawPage3 := false
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Fatalf("chunk %d has index %d after re-numbering", i, chunk.Index)
		}
		if chunk.PageNumber == 2 {
			t.Fatalf("whitespace-only page produced a chunk")
		}
		if chunk.PageNumber == 3 {
			sawPage3 = true
		}
	}
	if !sawPage3 {
		t.Fatalf("page 3 chunks missing")
	}
}
