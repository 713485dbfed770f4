package usecase

import (
	"fmt"
	"sort"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

type fusedCandidate struct {
	hit   domain.RetrievedChunk
	score float64
}

// fuseCandidatesRRF merges two ranked lists with Reciprocal Rank Fusion.
// Each entry contributes 1/(rrfK+rank+1) with rank starting at 0 in list
// order; a chunk present in both lists sums both contributions. Larger rrfK
// flattens the influence of rank position.
func fuseCandidatesRRF(semantic, keyword []domain.RetrievedChunk, rrfK int) []domain.RetrievedChunk {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(semantic)+len(keyword))
	addList := func(hits []domain.RetrievedChunk) {
		for rank, hit := range hits {
			key := retrievalChunkKey(hit.Chunk)
			candidate := acc[key]
			candidate.hit = preferRicherHit(candidate.hit, hit)
			candidate.score += 1.0 / float64(rrfK+rank+1)
			acc[key] = candidate
		}
	}

	addList(semantic)
	addList(keyword)

	out := make([]domain.RetrievedChunk, 0, len(acc))
	for _, c := range acc {
		hit := c.hit
		hit.Score = c.score
		hit.Method = domain.MethodHybrid
		out = append(out, hit)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Chunk.DocumentID != out[j].Chunk.DocumentID {
			return out[i].Chunk.DocumentID < out[j].Chunk.DocumentID
		}
		return out[i].Chunk.Index < out[j].Chunk.Index
	})

	return out
}

func trimCandidates(hits []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(hits) <= limit {
		return hits
	}
	return hits[:limit]
}

func retrievalChunkKey(chunk domain.Chunk) string {
	if chunk.ID != "" {
		return chunk.ID
	}
	return fmt.Sprintf("%s:%d", chunk.DocumentID, chunk.Index)
}

// preferRicherHit keeps whichever side carries more data, most importantly
// the embedding returned by the vector index: the diversity selector needs it
// even when the keyword list ranked the chunk higher.
func preferRicherHit(current, candidate domain.RetrievedChunk) domain.RetrievedChunk {
	if current.Chunk.ID == "" && current.Chunk.Content == "" {
		return candidate
	}
	if len(current.Embedding) == 0 && len(candidate.Embedding) > 0 {
		current.Embedding = candidate.Embedding
	}
	if current.Chunk.DocumentName == "" && candidate.Chunk.DocumentName != "" {
		current.Chunk.DocumentName = candidate.Chunk.DocumentName
	}
	return current
}
