package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) Insert(ctx context.Context, log *domain.QueryLog) error {
	chunkIDs, err := json.Marshal(log.ChunkIDs)
	if err != nil {
		return fmt.Errorf("marshal chunk ids: %w", err)
	}

	var uploadID sql.NullString
	if log.UploadID != "" {
		uploadID = sql.NullString{String: log.UploadID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_logs (id, question, upload_id, top_k, answer, chunk_ids, latency_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, log.ID, log.Question, uploadID, log.TopK, log.Answer, chunkIDs, log.LatencyMs, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}
