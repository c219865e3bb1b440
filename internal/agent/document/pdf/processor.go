package pdf

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/document-chat/internal/agent/document"
	"github.com/feichai0017/document-chat/internal/agent/ocr"
	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// Processor reads the embedded text layer of a PDF and falls back to
// rendering and OCR when the layer is blank, as it is for scans.
type Processor struct {
	logger      logger.Logger
	engine      ocr.Engine
	renderer    document.Renderer
	concurrency int
	textLayer   func(path string) (string, error)
}

func NewProcessor(engine ocr.Engine, renderer document.Renderer, concurrency int, log logger.Logger) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{
		logger:      log,
		engine:      engine,
		renderer:    renderer,
		concurrency: concurrency,
		textLayer:   readTextLayer,
	}
}

func (p *Processor) CanProcess(f models.Format) bool {
	return f == models.FormatPDF
}

func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	text, err := p.textLayer(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	p.logger.Info("PDF has no text layer, running OCR", logger.String("path", path))
	return p.ocrPages(ctx, path)
}

// ocrPages renders pages one by one and OCRs them concurrently. Output is
// assembled in page order regardless of completion order.
func (p *Processor) ocrPages(ctx context.Context, path string) (string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	var mu sync.Mutex
	pages := make(map[int]string)
	count := 0

	renderErr := p.renderer.Render(gctx, path, 0, func(page int, img image.Image) error {
		count = page + 1
		g.Go(func() error {
			text, err := p.engine.Text(gctx, img)
			if err != nil {
				return fmt.Errorf("ocr page %d: %w", page+1, err)
			}
			mu.Lock()
			pages[page] = text
			mu.Unlock()
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	if renderErr != nil {
		return "", renderErr
	}

	var b strings.Builder
	for i := 0; i < count; i++ {
		b.WriteString(pages[i])
	}
	return b.String(), nil
}

// readTextLayer concatenates the plain text of every page in page order.
func readTextLayer(path string) (text string, err error) {
	// ledongthuc/pdf panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to get text from page %d: %w", i, err)
		}
		b.WriteString(content)
	}
	return b.String(), nil
}

func (p *Processor) Close() error { return nil }
