package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

func TestQueryLogInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &QueryLogRepository{db: db}

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO query_logs").
		WithArgs("q-1", "how does failover work?", sqlmock.AnyArg(), 10,
			"It fails over [Source 1].", []byte(`["ch-1","ch-2"]`), int64(321), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Insert(context.Background(), &domain.QueryLog{
		ID:        "q-1",
		Question:  "how does failover work?",
		UploadID:  "u1",
		TopK:      10,
		Answer:    "It fails over [Source 1].",
		ChunkIDs:  []string{"ch-1", "ch-2"},
		LatencyMs: 321,
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryLogInsertGlobalScopeNullUpload(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &QueryLogRepository{db: db}

	mock.ExpectExec("INSERT INTO query_logs").
		WithArgs("q-2", "q", nil, 5, "a", []byte(`null`), int64(10), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Insert(context.Background(), &domain.QueryLog{
		ID: "q-2", Question: "q", TopK: 5, Answer: "a", LatencyMs: 10,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
