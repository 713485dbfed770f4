package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkorchagin/ragquery/internal/config"
	"github.com/mkorchagin/ragquery/internal/core/ports"
	"github.com/mkorchagin/ragquery/internal/core/usecase"
	"github.com/mkorchagin/ragquery/internal/infrastructure/chunking"
	"github.com/mkorchagin/ragquery/internal/infrastructure/extractor"
	"github.com/mkorchagin/ragquery/internal/infrastructure/extractor/pdf"
	"github.com/mkorchagin/ragquery/internal/infrastructure/extractor/plaintext"
	"github.com/mkorchagin/ragquery/internal/infrastructure/extractor/xlsx"
	"github.com/mkorchagin/ragquery/internal/infrastructure/llm/ollama"
	natsqueue "github.com/mkorchagin/ragquery/internal/infrastructure/queue/nats"
	"github.com/mkorchagin/ragquery/internal/infrastructure/repository/postgres"
	"github.com/mkorchagin/ragquery/internal/infrastructure/resilience"
	"github.com/mkorchagin/ragquery/internal/infrastructure/storage/localfs"
	"github.com/mkorchagin/ragquery/internal/infrastructure/vector/qdrant"
)

// retrievalModes is the closed set of query services built at startup. The
// configured default must be one of these; a request may name any of them.
var retrievalModes = []string{"keyword", "semantic", "hybrid"}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Documents ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC *usecase.ProcessUseCase
	Queries   map[string]ports.QueryService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	documents := postgres.NewDocumentRepository(db)
	uploads := postgres.NewUploadRepository(db)
	chunks := postgres.NewChunkRepository(db)
	queryLog := postgres.NewQueryLogRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig()).WithLogger(logger)

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).
		WithExecutor(executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix)

	var counter chunking.TokenCounter
	tikToken, err := chunking.NewTikTokenCounter(cfg.ChunkEncoding)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using heuristic token counter",
			"encoding", cfg.ChunkEncoding, "error", err)
		counter = chunking.HeuristicTokenCounter{}
	} else {
		counter = tikToken
	}
	chunker, err := chunking.NewTokenChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize, counter)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("build chunker: %w", err)
	}

	docExtractor := extractor.NewDispatcher(
		pdf.NewExtractor(storage),
		xlsx.NewExtractor(storage),
		plaintext.NewExtractor(storage),
	)

	ingestUC := usecase.NewIngestUseCase(uploads, documents, storage, queue)
	processUC := usecase.NewProcessUseCase(
		documents, chunks, docExtractor, chunker, embedder, index, cfg.EmbedBatchSize)

	queries := make(map[string]ports.QueryService, len(retrievalModes))
	for _, mode := range retrievalModes {
		queryUC, err := usecase.NewQueryUseCase(
			usecase.QueryConfig{
				Mode:             mode,
				TopK:             cfg.RAGTopK,
				RRFK:             cfg.RAGFusionRRFK,
				MMRLambda:        cfg.RAGMMRLambda,
				MaxContextTokens: cfg.RAGMaxContextTokens,
				Timeout:          cfg.QueryTimeout(),
			},
			embedder, index, chunks, uploads, generator, queryLog, logger,
		)
		if err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("build %s query service: %w", mode, err)
		}
		queries[mode] = queryUC
	}
	if _, ok := queries[cfg.RAGRetrievalMode]; !ok {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("unsupported default retrieval mode %q", cfg.RAGRetrievalMode)
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:     queue,
		Documents: documents,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
		Queries:   queries,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
