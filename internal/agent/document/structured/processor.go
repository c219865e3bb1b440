// Package structured re-serializes JSON documents onto a single line.
package structured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/feichai0017/document-chat/internal/models"
)

type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

func (p *Processor) CanProcess(f models.Format) bool {
	return f == models.FormatJSON
}

// Extract compacts the document. Object keys and array elements keep the
// order they have in the file.
func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("invalid json document")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return "", fmt.Errorf("failed to compact json: %w", err)
	}
	return buf.String(), nil
}

func (p *Processor) Close() error { return nil }
