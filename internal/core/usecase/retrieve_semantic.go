package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/mkorchagin/ragquery/internal/core/domain"
	"github.com/mkorchagin/ragquery/internal/core/ports"
)

// semanticRetriever queries the vector index with a fresh query embedding.
// With a scoped call it queries one namespace and any failure fails the call;
// without a scope it fans out across every known upload namespace
// concurrently, and a failing namespace is logged and skipped rather than
// failing the siblings.
type semanticRetriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	chunks   ports.ChunkRepository
	uploads  ports.UploadRepository
	logger   *slog.Logger
}

func newSemanticRetriever(
	embedder ports.Embedder,
	index ports.VectorIndex,
	chunks ports.ChunkRepository,
	uploads ports.UploadRepository,
	logger *slog.Logger,
) *semanticRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &semanticRetriever{
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		uploads:  uploads,
		logger:   logger,
	}
}

func (r *semanticRetriever) retrieve(
	ctx context.Context,
	query string,
	topK int,
	scope domain.RetrievalScope,
) ([]domain.RetrievedChunk, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	var matches []domain.VectorMatch
	if !scope.IsGlobal() {
		matches, err = r.index.Query(ctx, domain.UploadNamespace(scope.UploadID), queryVector, topK)
		if err != nil {
			return nil, domain.WrapError(domain.ErrRetrieval, "vector query", err)
		}
	} else {
		matches, err = r.queryAllNamespaces(ctx, queryVector, topK)
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.RetrievedChunk, 0, len(matches))
	for _, match := range matches {
		chunk, err := r.chunks.FindByEmbeddingID(ctx, match.ID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrRetrieval, "resolve vector id", err)
		}
		if chunk == nil {
			// Vector ids without a matching chunk are dropped silently.
			continue
		}
		out = append(out, domain.RetrievedChunk{
			Chunk:     *chunk,
			Score:     match.Score,
			Method:    domain.MethodSemantic,
			Embedding: match.Vector,
		})
	}
	return out, nil
}

// queryAllNamespaces runs one topK query per known namespace concurrently and
// merges the survivors into a single list re-sorted by score.
func (r *semanticRetriever) queryAllNamespaces(
	ctx context.Context,
	queryVector []float32,
	topK int,
) ([]domain.VectorMatch, error) {
	uploadIDs, err := r.uploads.ListIDs(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "list namespaces", err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var all []domain.VectorMatch

	for _, uploadID := range uploadIDs {
		namespace := domain.UploadNamespace(uploadID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			matches, err := r.index.Query(ctx, namespace, queryVector, topK)
			if err != nil {
				r.logger.Warn("namespace query failed, skipping",
					"namespace", namespace, "error", err)
				return
			}
			mu.Lock()
			all = append(all, matches...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}
