package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/feichai0017/document-chat/internal/agent/document"
	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// Extractor dispatches a document to the processor registered for its format.
type Extractor struct {
	processors map[models.Format]document.Processor
	logger     logger.Logger
}

// NewExtractor registers each processor for every format it can process.
// Later processors win when two claim the same format.
func NewExtractor(log logger.Logger, processors ...document.Processor) *Extractor {
	e := &Extractor{
		processors: make(map[models.Format]document.Processor),
		logger:     log,
	}
	for _, p := range processors {
		for _, f := range models.Formats() {
			if p.CanProcess(f) {
				e.processors[f] = p
			}
		}
	}
	return e
}

// Extract returns the raw text of doc. Formats without a processor fail with
// models.ErrUnsupportedFormat; processor failures are wrapped in a
// *models.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, doc *models.DocumentHandle) (string, error) {
	processor, ok := e.processors[doc.Format]
	if !ok {
		e.logger.Warn("Unsupported file type",
			logger.String("documentId", doc.ID),
			logger.String("filename", doc.Filename),
		)
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, doc.Filename)
	}

	start := time.Now()
	text, err := processor.Extract(ctx, doc.Path)
	if err != nil {
		return "", &models.ExtractionError{DocumentID: doc.ID, Format: doc.Format, Err: err}
	}

	e.logger.Debug("Extracted document text",
		logger.String("documentId", doc.ID),
		logger.String("format", doc.Format.String()),
		logger.Int("chars", len(text)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

// Close closes every distinct registered processor.
func (e *Extractor) Close() error {
	seen := make(map[document.Processor]bool)
	var firstErr error
	for _, p := range e.processors {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
