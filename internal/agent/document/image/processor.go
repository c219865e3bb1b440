package image

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/document-chat/internal/agent/ocr"
	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// Processor OCRs JPEG and PNG documents.
type Processor struct {
	logger        logger.Logger
	engine        ocr.Engine
	preprocessors []ImagePreprocessor
}

type ProcessOptions struct {
	// Preprocess enables the cleanup chain ahead of OCR.
	Preprocess       bool
	PreprocessConfig *PreprocessConfig
}

func NewProcessor(engine ocr.Engine, opts *ProcessOptions, log logger.Logger) (*Processor, error) {
	if engine == nil {
		return nil, fmt.Errorf("ocr engine is required")
	}
	if opts == nil {
		opts = &ProcessOptions{Preprocess: true}
	}

	var chain []ImagePreprocessor
	if opts.Preprocess {
		chain = NewPipeline(opts.PreprocessConfig)
	}
	return &Processor{
		logger:        log,
		engine:        engine,
		preprocessors: chain,
	}, nil
}

func (p *Processor) CanProcess(f models.Format) bool {
	return f.IsImage()
}

func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	img, err := openImage(path)
	if err != nil {
		return "", err
	}

	processed, err := p.applyPreprocessing(img)
	if err != nil {
		return "", err
	}
	return p.engine.Text(ctx, processed)
}

func (p *Processor) applyPreprocessing(img image.Image) (image.Image, error) {
	var err error
	result := img
	for _, processor := range p.preprocessors {
		result, err = processor.Process(result)
		if err != nil {
			p.logger.Error("Preprocessing failed", logger.Error(err))
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
		if result == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
	}
	return result, nil
}

func (p *Processor) Close() error {
	return p.engine.Close()
}

// openImage decodes path honoring the EXIF orientation tag.
func openImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
