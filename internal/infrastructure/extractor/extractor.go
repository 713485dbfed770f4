// Package extractor routes stored documents to a format-specific text
// extractor based on extension and mime type.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mkorchagin/ragquery/internal/core/domain"
	"github.com/mkorchagin/ragquery/internal/core/ports"
)

type Dispatcher struct {
	pdf       ports.TextExtractor
	xlsx      ports.TextExtractor
	plaintext ports.TextExtractor
}

func NewDispatcher(pdf, xlsx, plaintext ports.TextExtractor) *Dispatcher {
	return &Dispatcher{pdf: pdf, xlsx: xlsx, plaintext: plaintext}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	switch {
	case ext == ".pdf" || doc.MimeType == "application/pdf":
		return d.pdf.Extract(ctx, doc)
	case ext == ".xlsx" || ext == ".xlsm" ||
		strings.HasPrefix(doc.MimeType, "application/vnd.openxmlformats-officedocument.spreadsheetml"):
		return d.xlsx.Extract(ctx, doc)
	case ext == ".txt" || ext == ".md" || ext == ".csv" ||
		strings.HasPrefix(doc.MimeType, "text/"):
		return d.plaintext.Extract(ctx, doc)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text",
			fmt.Errorf("unsupported document format: %s (%s)", doc.Filename, doc.MimeType))
	}
}
