package ports

import (
	"context"
	"io"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetCounts(ctx context.Context, id string, pageCount, chunkCount int) error
}

// UploadRepository persists upload batches and enumerates their namespaces.
type UploadRepository interface {
	Create(ctx context.Context, upload *domain.Upload) error
	ListIDs(ctx context.Context) ([]string, error)
}

// ChunkRepository persists chunks and serves them back to retrieval.
type ChunkRepository interface {
	CreateBatch(ctx context.Context, chunks []domain.Chunk) error
	FindByEmbeddingID(ctx context.Context, embeddingID string) (*domain.Chunk, error)
	ListCandidates(ctx context.Context, scope domain.RetrievalScope) ([]domain.Chunk, error)
}

// QueryLogRepository records answered queries. Best effort: callers must not
// fail a query because its log row could not be written.
type QueryLogRepository interface {
	Insert(ctx context.Context, log *domain.QueryLog) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts text from a stored document, page by page where the
// format supports pagination.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.Page, error)
}

// Chunker splits extracted pages into token-bounded chunks.
type Chunker interface {
	ChunkPages(pages []domain.Page) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk content and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores and queries vectors, partitioned by namespace.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, points []domain.VectorPoint) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.VectorMatch, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// AnswerGenerator produces the final answer text from the assembled context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error)
}
