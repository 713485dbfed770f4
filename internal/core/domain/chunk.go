package domain

// Chunk is the atomic retrievable unit of a document. Chunks are created once
// during processing and are read-only afterwards; EmbeddingID is the only
// field written later, exactly once, when the chunk's vector is indexed.
type Chunk struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name,omitempty"`
	Index        int    `json:"chunk_index"`
	Content      string `json:"content"`
	TokenCount   int    `json:"token_count"`
	StartChar    int    `json:"start_char"`
	EndChar      int    `json:"end_char"`
	PageNumber   int    `json:"page_number,omitempty"` // 0 when the source has no pagination
	EmbeddingID  string `json:"embedding_id,omitempty"`
}
