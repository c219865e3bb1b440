package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for document extensions without an extraction strategy.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrDecode is returned when a plain-text document is not valid UTF-8.
	ErrDecode = errors.New("document is not valid utf-8")
	// ErrModelNotReady is returned when inference is requested before the models were loaded.
	ErrModelNotReady = errors.New("model not ready")
)

// ExtractionError wraps OCR, parsing and classifier failures with the
// identity of the document being processed.
type ExtractionError struct {
	DocumentID string
	Format     Format
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s document %s: %v", e.Format, e.DocumentID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PipelineError is raised by the foreground run of the ingestion pipeline.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// PublicMessage returns the client-facing message for err. Internal detail
// never leaves the process.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported file format"
	case errors.Is(err, ErrModelNotReady):
		return "service is not ready"
	default:
		return "failed to process chat request"
	}
}
