package domain

type RetrievalMethod string

const (
	MethodKeyword  RetrievalMethod = "keyword"
	MethodSemantic RetrievalMethod = "semantic"
	MethodHybrid   RetrievalMethod = "hybrid"
)

// RetrievalScope restricts retrieval to a single upload batch. The zero value
// means "all known namespaces".
type RetrievalScope struct {
	UploadID string
}

func (s RetrievalScope) IsGlobal() bool {
	return s.UploadID == ""
}

// RetrievedChunk pairs a chunk with a retrieval score. It lives for the
// duration of a single query and is never persisted. Embedding is carried
// along when the vector index returned it, so the diversity selector has a
// real similarity signal to work with.
type RetrievedChunk struct {
	Chunk     Chunk           `json:"chunk"`
	Score     float64         `json:"score"`
	Method    RetrievalMethod `json:"method"`
	Embedding []float32       `json:"-"`
}

// VectorPoint is one vector queued for indexing.
type VectorPoint struct {
	ID      string
	Vector  []float32
	ChunkID string
}

// VectorMatch is one nearest-neighbour hit from the vector index.
type VectorMatch struct {
	ID     string
	Score  float64
	Vector []float32
}

// EmbeddingResult carries the vectors for a batch of texts plus the token
// usage reported by the provider.
type EmbeddingResult struct {
	Vectors    [][]float32
	TokensUsed int
}
