package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/ragquery/internal/core/domain"
	"github.com/mkorchagin/ragquery/internal/core/ports"
)

const maxFilesPerUpload = 20

type IngestUseCase struct {
	uploads ports.UploadRepository
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestUseCase(
	uploads ports.UploadRepository,
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestUseCase {
	return &IngestUseCase{
		uploads: uploads,
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload stores a batch of files, records their metadata, and publishes one
// processing event per document. The batch becomes one upload row whose id
// scopes the documents' vector namespace.
func (uc *IngestUseCase) Upload(
	ctx context.Context,
	files []ports.UploadFile,
) (*domain.Upload, []domain.Document, error) {
	if len(files) == 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("no files provided"))
	}
	if len(files) > maxFilesPerUpload {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "upload",
			fmt.Errorf("too many files: %d > %d", len(files), maxFilesPerUpload))
	}

	now := time.Now().UTC()
	upload := &domain.Upload{
		ID:            uuid.NewString(),
		DocumentCount: len(files),
		CreatedAt:     now,
	}
	if err := uc.uploads.Create(ctx, upload); err != nil {
		return nil, nil, fmt.Errorf("create upload batch: %w", err)
	}

	docs := make([]domain.Document, 0, len(files))
	for _, file := range files {
		id := uuid.NewString()
		storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(file.Filename))

		if err := uc.storage.Save(ctx, storageKey, file.Body); err != nil {
			return nil, nil, fmt.Errorf("save to object storage: %w", err)
		}

		doc := domain.Document{
			ID:          id,
			UploadID:    upload.ID,
			Filename:    file.Filename,
			MimeType:    file.MimeType,
			StoragePath: storageKey,
			Status:      domain.StatusUploaded,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := uc.repo.Create(ctx, &doc); err != nil {
			return nil, nil, fmt.Errorf("create document metadata: %w", err)
		}

		if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
			return nil, nil, fmt.Errorf("publish ingestion event: %w", err)
		}
		docs = append(docs, doc)
	}

	return upload, docs, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
