package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkorchagin/ragquery/internal/config"
	"github.com/mkorchagin/ragquery/internal/core/domain"
	"github.com/mkorchagin/ragquery/internal/core/ports"
)

type ingestorFake struct {
	filenames []string
	bodies    []string
	upload    *domain.Upload
	docs      []domain.Document
	err       error
}

func (f *ingestorFake) Upload(_ context.Context, files []ports.UploadFile) (*domain.Upload, []domain.Document, error) {
	for _, file := range files {
		f.filenames = append(f.filenames, file.Filename)
		raw, _ := io.ReadAll(file.Body)
		f.bodies = append(f.bodies, string(raw))
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.upload, f.docs, nil
}

type queryServiceFake struct {
	answer   *domain.Answer
	err      error
	question string
	topK     int
	scope    domain.RetrievalScope
	calls    int
}

func (f *queryServiceFake) Answer(_ context.Context, question string, topK int, scope domain.RetrievalScope) (*domain.Answer, error) {
	f.calls++
	f.question = question
	f.topK = topK
	f.scope = scope
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type docReaderFake struct {
	docs map[string]*domain.Document
}

func (f *docReaderFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return doc, nil
}

type testRouterDeps struct {
	ingest *ingestorFake
	hybrid *queryServiceFake
	kw     *queryServiceFake
	docs   *docReaderFake
}

func newTestHandler(cfg config.Config) (http.Handler, *testRouterDeps) {
	if cfg.RAGRetrievalMode == "" {
		cfg.RAGRetrievalMode = "hybrid"
	}
	deps := &testRouterDeps{
		ingest: &ingestorFake{
			upload: &domain.Upload{ID: "u1", DocumentCount: 1},
			docs:   []domain.Document{{ID: "d1", UploadID: "u1", Status: domain.StatusUploaded}},
		},
		hybrid: &queryServiceFake{answer: &domain.Answer{QueryID: "q1", Text: "answer"}},
		kw:     &queryServiceFake{answer: &domain.Answer{QueryID: "q2", Text: "keyword answer"}},
		docs:   &docReaderFake{docs: map[string]*domain.Document{}},
	}
	rt := NewRouter(cfg,
		deps.ingest,
		map[string]ports.QueryService{"hybrid": deps.hybrid, "keyword": deps.kw},
		deps.docs,
		slog.New(slog.DiscardHandler),
		nil,
	)
	return rt.Handler(), deps
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestUploadDocuments(t *testing.T) {
	handler, deps := newTestHandler(config.Config{})

	body, contentType := multipartBody(t, map[string]string{
		"report.pdf": "pdf bytes",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(deps.ingest.filenames) != 1 || deps.ingest.filenames[0] != "report.pdf" {
		t.Fatalf("unexpected ingested files: %v", deps.ingest.filenames)
	}
	if deps.ingest.bodies[0] != "pdf bytes" {
		t.Fatalf("file body not passed through: %q", deps.ingest.bodies[0])
	}

	var resp struct {
		Upload    domain.Upload     `json:"upload"`
		Documents []domain.Document `json:"documents"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Upload.ID != "u1" || len(resp.Documents) != 1 {
		t.Fatalf("unexpected response payload: %+v", resp)
	}
}

func TestUploadDocumentsMissingFilesField(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("note", "no files here")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentsIngestErrorMapped(t *testing.T) {
	handler, deps := newTestHandler(config.Config{})
	deps.ingest.err = domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("too many files"))

	body, contentType := multipartBody(t, map[string]string{"a.txt": "x"})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid input, got %d", res.Code)
	}
}

func TestUploadDocumentsMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestGetDocumentByID(t *testing.T) {
	handler, deps := newTestHandler(config.Config{})
	deps.docs.docs["d1"] = &domain.Document{ID: "d1", Filename: "report.pdf", Status: domain.StatusReady}

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/d1", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var doc domain.Document
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.ID != "d1" || doc.Status != domain.StatusReady {
		t.Fatalf("unexpected document payload: %+v", doc)
	}
}

func TestGetDocumentByIDNotFound(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil))

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestQueryDefaultsToConfiguredMode(t *testing.T) {
	handler, deps := newTestHandler(config.Config{RAGRetrievalMode: "hybrid"})

	body := strings.NewReader(`{"question":"what failed?","top_k":3,"upload_id":"u9"}`)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/query", body))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if deps.hybrid.calls != 1 || deps.kw.calls != 0 {
		t.Fatalf("expected hybrid service to answer, got hybrid=%d keyword=%d",
			deps.hybrid.calls, deps.kw.calls)
	}
	if deps.hybrid.question != "what failed?" || deps.hybrid.topK != 3 {
		t.Fatalf("request fields not passed through: %q/%d", deps.hybrid.question, deps.hybrid.topK)
	}
	if deps.hybrid.scope.UploadID != "u9" {
		t.Fatalf("upload scope not passed through: %+v", deps.hybrid.scope)
	}

	var answer domain.Answer
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text != "answer" {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
}

func TestQueryExplicitMode(t *testing.T) {
	handler, deps := newTestHandler(config.Config{RAGRetrievalMode: "hybrid"})

	body := strings.NewReader(`{"question":"why?","mode":"keyword"}`)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/query", body))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if deps.kw.calls != 1 || deps.hybrid.calls != 0 {
		t.Fatalf("expected keyword service to answer, got hybrid=%d keyword=%d",
			deps.hybrid.calls, deps.kw.calls)
	}
}

func TestQueryUnknownMode(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})

	body := strings.NewReader(`{"question":"why?","mode":"bm42"}`)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/query", body))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", res.Code)
	}
}

func TestQueryValidation(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("{not json")))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"  "}`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank question, got %d", res.Code)
	}
}

func TestQueryErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"retrieval", domain.WrapError(domain.ErrRetrieval, "search", errors.New("qdrant down")), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrTemporary, "generate", errors.New("timeout")), http.StatusServiceUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, deps := newTestHandler(config.Config{})
			deps.hybrid.err = tc.err

			body := strings.NewReader(`{"question":"why?"}`)
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/query", body))

			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp["error"] == "" {
				t.Fatalf("expected error message in response body")
			}
		})
	}
}

func TestRequestIDPropagated(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}
