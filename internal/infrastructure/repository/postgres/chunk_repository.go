package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO chunks (
	id, document_id, chunk_index, content, token_count, start_char, end_char, page_number, embedding_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content, chunk.TokenCount,
			chunk.StartChar, chunk.EndChar, chunk.PageNumber, chunk.EmbeddingID,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

// FindByEmbeddingID resolves a vector index hit back to its chunk. A missing
// row returns (nil, nil): stale vectors are the caller's problem to skip, not
// an error.
func (r *ChunkRepository) FindByEmbeddingID(ctx context.Context, embeddingID string) (*domain.Chunk, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT c.id, c.document_id, d.filename, c.chunk_index, c.content, c.token_count, c.start_char, c.end_char, c.page_number, c.embedding_id
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.embedding_id = $1
`, embeddingID)

	chunk, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	return chunk, nil
}

// ListCandidates returns the keyword-ranking corpus: every chunk of every
// ready document, optionally restricted to one upload batch.
func (r *ChunkRepository) ListCandidates(ctx context.Context, scope domain.RetrievalScope) ([]domain.Chunk, error) {
	const base = `
SELECT c.id, c.document_id, d.filename, c.chunk_index, c.content, c.token_count, c.start_char, c.end_char, c.page_number, c.embedding_id
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE d.status = $1`

	var rows *sql.Rows
	var err error
	if scope.IsGlobal() {
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY d.created_at, c.chunk_index`,
			string(domain.StatusReady))
	} else {
		rows, err = r.db.QueryContext(ctx, base+` AND d.upload_id = $2 ORDER BY d.created_at, c.chunk_index`,
			string(domain.StatusReady), scope.UploadID)
	}
	if err != nil {
		return nil, fmt.Errorf("list candidate chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	err := row.Scan(
		&chunk.ID, &chunk.DocumentID, &chunk.DocumentName, &chunk.Index, &chunk.Content,
		&chunk.TokenCount, &chunk.StartChar, &chunk.EndChar, &chunk.PageNumber, &chunk.EmbeddingID,
	)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}
