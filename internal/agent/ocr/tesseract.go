package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/document-chat/pkg/logger"
)

type TesseractOptions struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode
}

// TesseractEngine runs the local tesseract library. gosseract clients are
// not goroutine-safe, so every call gets its own client.
type TesseractEngine struct {
	opts   TesseractOptions
	logger logger.Logger
}

func NewTesseractEngine(opts TesseractOptions, log logger.Logger) *TesseractEngine {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	if opts.PageSegMode == 0 {
		opts.PageSegMode = gosseract.PSM_AUTO
	}
	return &TesseractEngine{opts: opts, logger: log}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Load verifies that libtesseract is linked and answers.
func (e *TesseractEngine) Load(ctx context.Context) error {
	version := gosseract.Version()
	if version == "" {
		return fmt.Errorf("tesseract is not available")
	}
	e.logger.Info("OCR engine ready",
		logger.String("engine", e.Name()),
		logger.String("version", version),
		logger.String("languages", strings.Join(e.opts.Languages, "+")),
	)
	return nil
}

func (e *TesseractEngine) newClient(img image.Image) (*gosseract.Client, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(e.opts.Languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(e.opts.PageSegMode); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return client, nil
}

func (e *TesseractEngine) Text(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client, err := e.newClient(img)
	if err != nil {
		return "", err
	}
	defer client.Close()

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}
	return text, nil
}

func (e *TesseractEngine) Words(ctx context.Context, img image.Image) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := e.newClient(img)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get bounding boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{Text: b.Word, Box: b.Box, Confidence: b.Confidence})
	}
	return words, nil
}

func (e *TesseractEngine) Close() error { return nil }
