package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkorchagin/ragquery/internal/core/domain"
	"github.com/mkorchagin/ragquery/internal/core/ports"
)

// NoInformationAnswer is returned when retrieval produced zero candidates.
// The caller always receives a complete, well-formed answer object in this
// case, never an error and never a generator call over empty context.
const NoInformationAnswer = "I don't have enough information to answer this question based on the provided documents."

// retrievalStrategy is the closed set of retrieval variants selected at
// construction time: keyword, semantic, or hybrid.
type retrievalStrategy interface {
	retrieve(ctx context.Context, query string, topK int, scope domain.RetrievalScope) ([]domain.RetrievedChunk, error)
}

type QueryConfig struct {
	Mode             string
	TopK             int
	RRFK             int
	MMRLambda        float64
	MaxContextTokens int
	Timeout          time.Duration
}

type QueryUseCase struct {
	strategy  retrievalStrategy
	generator ports.AnswerGenerator
	queryLog  ports.QueryLogRepository
	cfg       QueryConfig
	logger    *slog.Logger
}

func NewQueryUseCase(
	cfg QueryConfig,
	embedder ports.Embedder,
	index ports.VectorIndex,
	chunks ports.ChunkRepository,
	uploads ports.UploadRepository,
	generator ports.AnswerGenerator,
	queryLog ports.QueryLogRepository,
	logger *slog.Logger,
) (*QueryUseCase, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 6000
	}
	if cfg.MMRLambda < 0 || cfg.MMRLambda > 1 {
		return nil, domain.WrapError(domain.ErrConfiguration, "query use case",
			fmt.Errorf("mmr lambda must be in [0,1], got %v", cfg.MMRLambda))
	}

	semantic := newSemanticRetriever(embedder, index, chunks, uploads, logger)

	var strategy retrievalStrategy
	switch cfg.Mode {
	case "keyword":
		strategy = &keywordStrategy{chunks: chunks}
	case "semantic":
		strategy = semantic
	case "hybrid", "":
		cfg.Mode = "hybrid"
		strategy = &hybridStrategy{
			keyword:  &keywordStrategy{chunks: chunks},
			semantic: semantic,
			rrfK:     cfg.RRFK,
		}
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "query use case",
			fmt.Errorf("unsupported retrieval mode %q", cfg.Mode))
	}

	return &QueryUseCase{
		strategy:  strategy,
		generator: generator,
		queryLog:  queryLog,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

func (uc *QueryUseCase) Answer(
	ctx context.Context,
	question string,
	topK int,
	scope domain.RetrievalScope,
) (*domain.Answer, error) {
	if topK <= 0 {
		topK = uc.cfg.TopK
	}
	if uc.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.Timeout)
		defer cancel()
	}

	queryID := uuid.NewString()
	start := time.Now()

	// Over-fetch so the diversity pass has something to choose between.
	retrieved, err := uc.strategy.retrieve(ctx, question, topK*2, scope)
	retrievalMs := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	if len(retrieved) == 0 {
		uc.logger.Warn("no chunks retrieved for query", "query_id", queryID)
		return &domain.Answer{
			QueryID:   queryID,
			Question:  question,
			Text:      NoInformationAnswer,
			Citations: []domain.Citation{},
			Used:      []domain.ChunkUsage{},
			Stats: domain.QueryStats{
				RetrievalMs: retrievalMs,
				TotalMs:     retrievalMs,
			},
			CreatedAt: time.Now().UTC(),
		}, nil
	}

	selected := selectDiverse(retrieved, uc.cfg.MMRLambda, topK)
	contextBlock := assembleContext(selected, uc.cfg.MaxContextTokens)

	generationStart := time.Now()
	answerText, err := uc.generator.GenerateAnswer(ctx, question, contextBlock)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	generationMs := time.Since(generationStart).Milliseconds()

	citations := resolveCitations(answerText, selected)

	used := make([]domain.ChunkUsage, 0, len(selected))
	chunkIDs := make([]string, 0, len(selected))
	for _, hit := range selected {
		used = append(used, domain.ChunkUsage{
			ChunkID:        hit.Chunk.ID,
			RelevanceScore: hit.Score,
			Method:         hit.Method,
		})
		chunkIDs = append(chunkIDs, hit.Chunk.ID)
	}

	totalMs := time.Since(start).Milliseconds()
	answer := &domain.Answer{
		QueryID:   queryID,
		Question:  question,
		Text:      answerText,
		Citations: citations,
		Used:      used,
		Stats: domain.QueryStats{
			RetrievalMs:     retrievalMs,
			GenerationMs:    generationMs,
			TotalMs:         totalMs,
			ChunksRetrieved: len(retrieved),
			ChunksUsed:      len(selected),
		},
		CreatedAt: time.Now().UTC(),
	}

	uc.logQuery(ctx, queryID, question, topK, scope, answer, chunkIDs, totalMs)

	return answer, nil
}

// logQuery is best effort: a failed log write never fails the query.
func (uc *QueryUseCase) logQuery(
	ctx context.Context,
	queryID, question string,
	topK int,
	scope domain.RetrievalScope,
	answer *domain.Answer,
	chunkIDs []string,
	latencyMs int64,
) {
	if uc.queryLog == nil {
		return
	}
	err := uc.queryLog.Insert(ctx, &domain.QueryLog{
		ID:        queryID,
		Question:  question,
		UploadID:  scope.UploadID,
		TopK:      topK,
		Answer:    answer.Text,
		ChunkIDs:  chunkIDs,
		LatencyMs: latencyMs,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		uc.logger.Warn("query log write failed", "query_id", queryID, "error", err)
	}
}

// keywordStrategy ranks the scoped candidate pool with BM25.
type keywordStrategy struct {
	chunks ports.ChunkRepository
}

func (s *keywordStrategy) retrieve(
	ctx context.Context,
	query string,
	topK int,
	scope domain.RetrievalScope,
) ([]domain.RetrievedChunk, error) {
	candidates, err := s.chunks.ListCandidates(ctx, scope)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "list candidates", err)
	}
	return rankKeyword(query, candidates, topK), nil
}

// hybridStrategy runs the keyword and semantic branches concurrently, joins
// them, and fuses the two rankings with RRF. Each branch over-fetches so the
// fusion has enough overlap to be meaningful.
type hybridStrategy struct {
	keyword  *keywordStrategy
	semantic *semanticRetriever
	rrfK     int
}

func (s *hybridStrategy) retrieve(
	ctx context.Context,
	query string,
	topK int,
	scope domain.RetrievalScope,
) ([]domain.RetrievedChunk, error) {
	branchK := topK * 2

	var keywordHits, semanticHits []domain.RetrievedChunk
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hits, err := s.semantic.retrieve(groupCtx, query, branchK, scope)
		if err != nil {
			return err
		}
		semanticHits = hits
		return nil
	})
	group.Go(func() error {
		hits, err := s.keyword.retrieve(groupCtx, query, branchK, scope)
		if err != nil {
			return err
		}
		keywordHits = hits
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	fused := fuseCandidatesRRF(semanticHits, keywordHits, s.rrfK)
	return trimCandidates(fused, topK), nil
}
