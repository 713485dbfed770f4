package chunking

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in text. The chunker accepts any implementation
// so tests can run with a cheap word counter.
type TokenCounter interface {
	Count(text string) int
}

// TikTokenCounter counts tokens with the same BPE encodings used by OpenAI
// models. cl100k_base matches GPT-4/3.5 tokenization.
type TikTokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTikTokenCounter(encodingName string) (*TikTokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikTokenCounter{encoding: encoding}, nil
}

func (c *TikTokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// HeuristicTokenCounter approximates one token per four characters. Used as a
// fallback when the BPE encoding cannot be loaded.
type HeuristicTokenCounter struct{}

func (HeuristicTokenCounter) Count(text string) int {
	return len(text) / 4
}
