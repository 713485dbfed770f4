package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID          string         `json:"id"`
	UploadID    string         `json:"upload_id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	PageCount   int            `json:"page_count,omitempty"`
	ChunkCount  int            `json:"chunk_count,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Upload is a batch of documents ingested together. Each upload owns one
// vector namespace, so retrieval can be scoped to a single batch or fanned
// out across all known batches.
type Upload struct {
	ID            string    `json:"id"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Namespace returns the vector namespace owned by this upload batch.
func (u Upload) Namespace() string {
	return UploadNamespace(u.ID)
}

func UploadNamespace(uploadID string) string {
	return "upload_" + uploadID
}

// Page is one unit of extracted text. Number is 1-based; 0 means the source
// format has no pagination.
type Page struct {
	Number int
	Text   string
}
