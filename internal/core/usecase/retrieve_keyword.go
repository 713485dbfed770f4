package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/mkorchagin/ragquery/internal/core/domain"
)

// BM25 parameters. The corpus for a query is exactly the filtered candidate
// pool, rebuilt per call, so document frequencies shift with the scope.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// rankKeyword scores every candidate against the query with BM25 (Okapi
// variant: negative idf values are floored at epsilon times the average idf).
// Candidates with non-positive scores are dropped; ties break by candidate
// position so results stay deterministic.
func rankKeyword(query string, candidates []domain.Chunk, topK int) []domain.RetrievedChunk {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}

	corpus := make([][]string, len(candidates))
	docFreq := make(map[string]int)
	totalLength := 0
	for i, chunk := range candidates {
		terms := strings.Fields(chunk.Content)
		corpus[i] = terms
		totalLength += len(terms)

		seen := make(map[string]struct{}, len(terms))
		for _, term := range terms {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			docFreq[term]++
		}
	}
	avgDocLength := float64(totalLength) / float64(len(candidates))

	idf := computeIDF(docFreq, len(candidates))

	type scored struct {
		position int
		score    float64
	}
	queryTerms := strings.Fields(query)
	results := make([]scored, 0, len(candidates))
	for i, terms := range corpus {
		termFreq := make(map[string]int, len(terms))
		for _, term := range terms {
			termFreq[term]++
		}

		var score float64
		docLength := float64(len(terms))
		for _, term := range queryTerms {
			tf := float64(termFreq[term])
			if tf == 0 {
				continue
			}
			denominator := tf + bm25K1*(1-bm25B+bm25B*docLength/avgDocLength)
			score += idf[term] * tf * (bm25K1 + 1) / denominator
		}
		if score > 0 {
			results = append(results, scored{position: i, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].position < results[j].position
	})
	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		out = append(out, domain.RetrievedChunk{
			Chunk:  candidates[r.position],
			Score:  r.score,
			Method: domain.MethodKeyword,
		})
	}
	return out
}

// computeIDF calculates ln((N-df+0.5)/(df+0.5)) per term. Terms appearing in
// more than half the corpus get a negative value, which is floored at
// epsilon times the average idf to keep frequent terms from subtracting
// relevance.
func computeIDF(docFreq map[string]int, totalDocs int) map[string]float64 {
	idf := make(map[string]float64, len(docFreq))
	var sum float64
	var negative []string
	for term, df := range docFreq {
		v := math.Log((float64(totalDocs) - float64(df) + 0.5) / (float64(df) + 0.5))
		idf[term] = v
		sum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	if len(idf) == 0 {
		return idf
	}
	floor := bm25Epsilon * (sum / float64(len(idf)))
	for _, term := range negative {
		idf[term] = floor
	}
	return idf
}
