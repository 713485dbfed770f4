package httpadapter

import (
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/mkorchagin/ragquery/internal/config"
	"github.com/mkorchagin/ragquery/internal/core/domain"
	"github.com/mkorchagin/ragquery/internal/core/ports"
	"github.com/mkorchagin/ragquery/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	ingest      ports.DocumentIngestor
	queries     map[string]ports.QueryService
	defaultMode string
	docs        ports.DocumentReader
	cfg         config.Config
	logger      *slog.Logger
	metrics     *metrics.HTTPServerMetrics
}

// NewRouter wires the HTTP surface. queries holds one query service per
// retrieval mode; cfg.RAGRetrievalMode names the one used when a request
// does not ask for a specific mode.
func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	queries map[string]ports.QueryService,
	docs ports.DocumentReader,
	logger *slog.Logger,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ingest:      ingest,
		queries:     queries,
		defaultMode: cfg.RAGRetrievalMode,
		docs:        docs,
		cfg:         cfg,
		logger:      logger,
		metrics:     serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocuments)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/query", rt.query)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	if rt.cfg.APIMaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, rt.cfg.OverloadTimeout())
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if maxMB := rt.cfg.MaxUploadSizeMB; maxMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(maxMB)<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}

	files := make([]ports.UploadFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable multipart file")
			return
		}
		opened = append(opened, file)
		files = append(files, ports.UploadFile{
			Filename: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Body:     file,
		})
	}

	upload, docs, err := rt.ingest.Upload(r.Context(), files)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{Upload: upload, Documents: docs})
}

type uploadResponse struct {
	Upload    *domain.Upload    `json:"upload"`
	Documents []domain.Document `json:"documents"`
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	UploadID string `json:"upload_id"`
	Mode     string `json:"mode"`
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = rt.defaultMode
	}
	service, ok := rt.queries[mode]
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported retrieval mode: "+mode)
		return
	}

	start := time.Now()
	answer, err := service.Answer(r.Context(), req.Question, req.TopK, domain.RetrievalScope{
		UploadID: req.UploadID,
	})
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordQuery(serviceName, mode, answer.Stats.ChunksRetrieved, time.Since(start))
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
