package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkorchagin/ragquery/internal/core/domain"
	"github.com/mkorchagin/ragquery/internal/core/ports"
)

const defaultEmbedBatchSize = 64

type ProcessUseCase struct {
	repo           ports.DocumentRepository
	chunkRepo      ports.ChunkRepository
	extractor      ports.TextExtractor
	chunker        ports.Chunker
	embedder       ports.Embedder
	index          ports.VectorIndex
	embedBatchSize int
	onEmbedTokens  func(tokens int)
}

// ObserveEmbedTokens registers a callback invoked with the token usage the
// embedding backend reports for each batch.
func (uc *ProcessUseCase) ObserveEmbedTokens(fn func(tokens int)) {
	uc.onEmbedTokens = fn
}

func NewProcessUseCase(
	repo ports.DocumentRepository,
	chunkRepo ports.ChunkRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	embedBatchSize int,
) *ProcessUseCase {
	if embedBatchSize <= 0 {
		embedBatchSize = defaultEmbedBatchSize
	}
	return &ProcessUseCase{
		repo:           repo,
		chunkRepo:      chunkRepo,
		extractor:      extractor,
		chunker:        chunker,
		embedder:       embedder,
		index:          index,
		embedBatchSize: embedBatchSize,
	}
}

// ProcessByID runs the full indexing pipeline for one document: extract,
// chunk, embed, index, persist. Chunk rows are written only after the vector
// upsert succeeds, so every persisted chunk already carries its embedding id.
func (uc *ProcessUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	pages, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if len(pages) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunks, err := uc.chunker.ChunkPages(pages)
	if err != nil {
		return fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].DocumentID = doc.ID
		chunks[i].DocumentName = doc.Filename
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	points := make([]domain.VectorPoint, len(chunks))
	for i := range chunks {
		embeddingID := uuid.NewString()
		chunks[i].EmbeddingID = embeddingID
		points[i] = domain.VectorPoint{
			ID:      embeddingID,
			Vector:  vectors[i],
			ChunkID: chunks[i].ID,
		}
	}

	namespace := domain.UploadNamespace(doc.UploadID)
	if err := uc.index.Upsert(ctx, namespace, points); err != nil {
		return fmt.Errorf("index vectors in namespace %s: %w", namespace, err)
	}

	if err := uc.chunkRepo.CreateBatch(ctx, chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	if err := uc.repo.SetCounts(ctx, doc.ID, len(pages), len(chunks)); err != nil {
		return fmt.Errorf("save document counts: %w", err)
	}
	return nil
}

func (uc *ProcessUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += uc.embedBatchSize {
		end := start + uc.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}

		result, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(result.Vectors) != len(texts) {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(result.Vectors), len(texts)),
			)
		}
		if uc.onEmbedTokens != nil && result.TokensUsed > 0 {
			uc.onEmbedTokens(result.TokensUsed)
		}
		vectors = append(vectors, result.Vectors...)
	}
	return vectors, nil
}
