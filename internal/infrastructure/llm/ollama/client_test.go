package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

func TestEmbedderEmbed(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings":        [][]float32{{0.1, 0.2}, {0.3, 0.4}},
			"prompt_eval_count": 17,
		})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model"))
	result, err := embedder.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if gotPath != "/api/embed" {
		t.Fatalf("expected /api/embed, got %s", gotPath)
	}
	if gotBody["model"] != "embed-model" {
		t.Fatalf("expected embed model in request, got %v", gotBody["model"])
	}
	if len(result.Vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(result.Vectors))
	}
	if result.TokensUsed != 17 {
		t.Fatalf("expected token usage 17, got %d", result.TokensUsed)
	}
}

func TestEmbedderEmptyInput(t *testing.T) {
	embedder := NewEmbedder(New("http://unused", "gen", "embed"))
	result, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(result.Vectors) != 0 {
		t.Fatalf("expected no vectors, got %d", len(result.Vectors))
	}
}

func TestEmbedQueryEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	if _, err := embedder.EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatalf("expected error for empty embedding result")
	}
}

func TestGeneratorGenerateAnswer(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected /api/generate, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  answered [Source 1]  \n"})
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "gen-model", "embed"))
	answer, err := generator.GenerateAnswer(context.Background(), "why?", "[Source 1]\nContent: because\n---\n")
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "answered [Source 1]" {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
	if gotBody["model"] != "gen-model" {
		t.Fatalf("expected gen model in request, got %v", gotBody["model"])
	}
	prompt, _ := gotBody["prompt"].(string)
	if !strings.Contains(prompt, "USER QUESTION: why?") {
		t.Fatalf("expected question embedded in prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Content: because") {
		t.Fatalf("expected context embedded in prompt:\n%s", prompt)
	}
	if stream, ok := gotBody["stream"].(bool); !ok || stream {
		t.Fatalf("expected stream=false, got %v", gotBody["stream"])
	}
}

func TestClientHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "gen", "embed"))
	_, err := generator.GenerateAnswer(context.Background(), "q", "ctx")
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", statusErr.StatusCode)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected non-retryable status not marked temporary: %v", err)
	}
}

func TestClientRetryableStatusMarkedTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "gen", "embed"))
	_, err := generator.GenerateAnswer(context.Background(), "q", "ctx")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 503 wrapped as temporary, got %v", err)
	}
}
