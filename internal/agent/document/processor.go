package document

import (
	"context"
	"image"

	"github.com/feichai0017/document-chat/internal/models"
)

// Processor extracts raw text from one family of document formats.
type Processor interface {
	// CanProcess reports whether the processor handles documents of format f.
	CanProcess(f models.Format) bool

	// Extract returns the document's text content.
	Extract(ctx context.Context, path string) (string, error)

	// Close releases resources held by the processor.
	Close() error
}

// Renderer rasterizes document pages. visit is called once per page, in
// page order, with a zero-based page index. maxPages <= 0 renders every page.
type Renderer interface {
	Render(ctx context.Context, path string, maxPages int, visit func(page int, img image.Image) error) error
}
