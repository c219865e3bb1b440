package text

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/feichai0017/document-chat/internal/models"
)

// Processor returns plain-text documents verbatim.
type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

func (p *Processor) CanProcess(f models.Format) bool {
	return f == models.FormatText
}

func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", models.ErrDecode
	}
	return string(data), nil
}

func (p *Processor) Close() error { return nil }
