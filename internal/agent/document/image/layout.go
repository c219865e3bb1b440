package image

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/document-chat/internal/agent/document"
	"github.com/feichai0017/document-chat/internal/agent/ocr"
	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// MinLayoutConfidence is the exclusive lower bound on OCR confidence for a
// word to become a layout token.
const MinLayoutConfidence = 60.0

// LayoutPreparer turns an image-bearing document into the word and box
// sequences a layout-aware classifier consumes.
type LayoutPreparer struct {
	engine   ocr.Engine
	renderer document.Renderer
	logger   logger.Logger
}

func NewLayoutPreparer(engine ocr.Engine, renderer document.Renderer, log logger.Logger) *LayoutPreparer {
	return &LayoutPreparer{engine: engine, renderer: renderer, logger: log}
}

// Prepare OCRs the document's image (the first page for PDFs) and keeps
// words whose confidence exceeds MinLayoutConfidence. Boxes are
// [left, top, left+width, top+height] in source pixels.
func (p *LayoutPreparer) Prepare(ctx context.Context, doc *models.DocumentHandle) (*models.LayoutInput, error) {
	img, err := p.load(ctx, doc)
	if err != nil {
		return nil, err
	}

	words, err := p.engine.Words(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("word-level ocr: %w", err)
	}

	in := &models.LayoutInput{
		Image: img,
		Words: make([]string, 0, len(words)),
		Boxes: make([]models.Box, 0, len(words)),
	}
	for _, w := range words {
		if w.Confidence <= MinLayoutConfidence {
			continue
		}
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		in.Words = append(in.Words, text)
		in.Boxes = append(in.Boxes, models.BoxFromRect(w.Box))
	}

	p.logger.Debug("Prepared layout tokens",
		logger.String("documentId", doc.ID),
		logger.Int("detected", len(words)),
		logger.Int("kept", in.Len()),
	)
	return in, nil
}

// load returns an RGB image with its origin at (0, 0).
func (p *LayoutPreparer) load(ctx context.Context, doc *models.DocumentHandle) (image.Image, error) {
	switch {
	case doc.Format == models.FormatPDF:
		var page image.Image
		err := p.renderer.Render(ctx, doc.Path, 1, func(_ int, img image.Image) error {
			page = img
			return nil
		})
		if err != nil {
			return nil, err
		}
		if page == nil {
			return nil, fmt.Errorf("pdf has no pages")
		}
		return imaging.Clone(page), nil
	case doc.Format.IsImage():
		img, err := openImage(doc.Path)
		if err != nil {
			return nil, err
		}
		return imaging.Clone(img), nil
	default:
		return nil, fmt.Errorf("%w: layout preparation needs an image-bearing document, got %s", models.ErrUnsupportedFormat, doc.Format)
	}
}
