package ports

import (
	"context"
	"io"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

// UploadFile is one file in an ingestion batch.
type UploadFile struct {
	Filename string
	MimeType string
	Body     io.Reader
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, files []UploadFile) (*domain.Upload, []domain.Document, error)
}

// QueryService is the inbound contract for answering questions over the
// ingested corpus.
type QueryService interface {
	Answer(ctx context.Context, question string, topK int, scope domain.RetrievalScope) (*domain.Answer, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
