package domain

import "time"

// Citation maps one [Source N] marker in a generated answer back to its
// source chunk.
type Citation struct {
	DocumentID     string  `json:"document_id"`
	DocumentName   string  `json:"document_name"`
	Page           int     `json:"page,omitempty"`
	ChunkID        string  `json:"chunk_id"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float64 `json:"relevance_score"`
}

type ChunkUsage struct {
	ChunkID        string          `json:"chunk_id"`
	RelevanceScore float64         `json:"relevance_score"`
	Method         RetrievalMethod `json:"retrieval_method"`
}

type QueryStats struct {
	RetrievalMs     int64 `json:"retrieval_time_ms"`
	GenerationMs    int64 `json:"generation_time_ms"`
	TotalMs         int64 `json:"total_time_ms"`
	ChunksRetrieved int   `json:"chunks_retrieved"`
	ChunksUsed      int   `json:"chunks_used"`
}

type Answer struct {
	QueryID   string       `json:"query_id"`
	Question  string       `json:"question"`
	Text      string       `json:"answer"`
	Citations []Citation   `json:"citations"`
	Used      []ChunkUsage `json:"used_chunks"`
	Stats     QueryStats   `json:"metadata"`
	CreatedAt time.Time    `json:"created_at"`
}

// QueryLog is the persisted record of one answered query.
type QueryLog struct {
	ID        string
	Question  string
	UploadID  string
	TopK      int
	Answer    string
	ChunkIDs  []string
	LatencyMs int64
	CreatedAt time.Time
}
