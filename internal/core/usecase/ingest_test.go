package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mkorchagin/ragquery/internal/core/domain"
	"github.com/mkorchagin/ragquery/internal/core/ports"
)

type documentRepoFake struct {
	docs      map[string]*domain.Document
	createErr error
	statuses  []domain.DocumentStatus
	counts    [2]int
}

func newDocumentRepoFake() *documentRepoFake {
	return &documentRepoFake{docs: map[string]*domain.Document{}}
}

func (f *documentRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *documentRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *documentRepoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.statuses = append(f.statuses, status)
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (f *documentRepoFake) SetCounts(_ context.Context, id string, pageCount, chunkCount int) error {
	f.counts = [2]int{pageCount, chunkCount}
	if doc, ok := f.docs[id]; ok {
		doc.PageCount = pageCount
		doc.ChunkCount = chunkCount
	}
	return nil
}

type storageFake struct {
	saved   map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = buf
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	buf, ok := f.saved[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func uploadFiles(names ...string) []ports.UploadFile {
	files := make([]ports.UploadFile, len(names))
	for i, name := range names {
		files[i] = ports.UploadFile{
			Filename: name,
			MimeType: "text/plain",
			Body:     strings.NewReader("content of " + name),
		}
	}
	return files
}

func TestIngestUploadBatch(t *testing.T) {
	uploads := &uploadRepoFake{}
	repo := newDocumentRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestUseCase(uploads, repo, storage, queue)

	upload, docs, err := uc.Upload(context.Background(), uploadFiles("a.txt", "b.txt"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if upload.DocumentCount != 2 {
		t.Fatalf("expected document count 2, got %d", upload.DocumentCount)
	}
	if len(uploads.created) != 1 {
		t.Fatalf("expected one upload row, got %d", len(uploads.created))
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.UploadID != upload.ID {
			t.Fatalf("expected documents scoped to the upload, got upload id %s", doc.UploadID)
		}
		if doc.Status != domain.StatusUploaded {
			t.Fatalf("expected uploaded status, got %s", doc.Status)
		}
		if _, ok := storage.saved[doc.StoragePath]; !ok {
			t.Fatalf("expected file stored under %s", doc.StoragePath)
		}
	}
	if len(queue.published) != 2 {
		t.Fatalf("expected 2 processing events, got %d", len(queue.published))
	}
}

func TestIngestUploadRejectsEmptyBatch(t *testing.T) {
	uc := NewIngestUseCase(&uploadRepoFake{}, newDocumentRepoFake(), newStorageFake(), &queueFake{})
	_, _, err := uc.Upload(context.Background(), nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIngestUploadRejectsOversizedBatch(t *testing.T) {
	names := make([]string, maxFilesPerUpload+1)
	for i := range names {
		names[i] = "f.txt"
	}
	uc := NewIngestUseCase(&uploadRepoFake{}, newDocumentRepoFake(), newStorageFake(), &queueFake{})
	_, _, err := uc.Upload(context.Background(), uploadFiles(names...))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIngestUploadStorageFailure(t *testing.T) {
	storage := newStorageFake()
	storage.saveErr = errors.New("disk full")
	uc := NewIngestUseCase(&uploadRepoFake{}, newDocumentRepoFake(), storage, &queueFake{})
	_, _, err := uc.Upload(context.Background(), uploadFiles("a.txt"))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected storage error surfaced, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"quarterly report.pdf": "quarterly_report.pdf",
		"../../etc/passwd":     "passwd",
		"ça va?.txt":           "_a_va_.txt",
		"":                     "document.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
