package usecase

import (
	"math"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

// selectDiverse re-ranks candidates with Maximal Marginal Relevance:
// mmr = lambda*relevance - (1-lambda)*maxSimilarity, where maxSimilarity is
// the highest cosine similarity between the candidate and any already
// selected item, or zero when either side carries no embedding. Keyword-only
// hits therefore compete on relevance alone instead of being excluded.
// lambda=1 degenerates to pure relevance ranking, lambda=0 to pure diversity.
func selectDiverse(hits []domain.RetrievedChunk, lambda float64, topK int) []domain.RetrievedChunk {
	if len(hits) <= topK {
		return hits
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}

	remaining := make([]domain.RetrievedChunk, len(hits))
	copy(remaining, hits)

	// Seed with the highest-relevance candidate.
	best := 0
	for i := 1; i < len(remaining); i++ {
		if remaining[i].Score > remaining[best].Score {
			best = i
		}
	}
	selected := []domain.RetrievedChunk{remaining[best]}
	remaining = append(remaining[:best], remaining[best+1:]...)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, candidate := range remaining {
			maxSimilarity := 0.0
			if len(candidate.Embedding) > 0 {
				for _, picked := range selected {
					if len(picked.Embedding) == 0 {
						continue
					}
					if sim := cosineSimilarity(candidate.Embedding, picked.Embedding); sim > maxSimilarity {
						maxSimilarity = sim
					}
				}
			}

			mmrScore := lambda*candidate.Score - (1-lambda)*maxSimilarity
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
