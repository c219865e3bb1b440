// Package ocr wraps the OCR backends used for image text, scanned PDF pages
// and layout tokens.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Word is one recognized word with its pixel box and a 0-100 confidence.
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Engine recognizes text in images. Implementations must be safe for
// concurrent use.
type Engine interface {
	Name() string
	Text(ctx context.Context, img image.Image) (string, error)
	Words(ctx context.Context, img image.Image) ([]Word, error)
	Close() error
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
