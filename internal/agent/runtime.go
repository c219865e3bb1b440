// Package agent wires the extraction, NLP, layout and language-model
// components into a runtime that is initialized once per process.
package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/internal/agent/document/image"
	"github.com/feichai0017/document-chat/internal/agent/document/pdf"
	"github.com/feichai0017/document-chat/internal/agent/document/structured"
	"github.com/feichai0017/document-chat/internal/agent/document/tabular"
	"github.com/feichai0017/document-chat/internal/agent/document/text"
	"github.com/feichai0017/document-chat/internal/agent/layout"
	"github.com/feichai0017/document-chat/internal/agent/llm"
	"github.com/feichai0017/document-chat/internal/agent/nlp"
	"github.com/feichai0017/document-chat/internal/agent/ocr"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// Loader is a component that must load a model before serving.
type Loader interface {
	Load(ctx context.Context) error
}

type namedLoader struct {
	name string
	Loader
}

// Runtime holds the process-wide, read-only inference components.
type Runtime struct {
	Engine     ocr.Engine
	Extractor  *Extractor
	Normalizer *nlp.Normalizer
	Recognizer *nlp.ProseRecognizer
	Layout     *image.LayoutPreparer
	Classifier *layout.Adapter
	LLM        *llm.Service

	loaders []namedLoader
	ready   atomic.Bool
	logger  logger.Logger
}

// NewRuntime builds every component from cfg. Nothing is loaded until Init.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	r := &Runtime{logger: log.Named("runtime")}

	switch cfg.OCR.Engine {
	case config.OCREngineTextract:
		engine, err := ocr.NewTextractEngine(ctx, &cfg.Textract, log.Named("ocr"))
		if err != nil {
			return nil, fmt.Errorf("failed to create textract engine: %w", err)
		}
		r.Engine = engine
	default:
		engine := ocr.NewTesseractEngine(ocr.TesseractOptions{Languages: cfg.OCR.Languages}, log.Named("ocr"))
		r.Engine = engine
		r.loaders = append(r.loaders, namedLoader{"ocr", engine})
	}

	renderer := pdf.NewFitzRenderer(cfg.OCR.DPI)
	imageProcessor, err := image.NewProcessor(r.Engine, &image.ProcessOptions{Preprocess: cfg.OCR.Preprocess}, log.Named("image"))
	if err != nil {
		return nil, fmt.Errorf("failed to create image processor: %w", err)
	}
	r.Extractor = NewExtractor(log.Named("extractor"),
		text.NewProcessor(),
		pdf.NewProcessor(r.Engine, renderer, cfg.OCR.PageConcurrency, log.Named("pdf")),
		tabular.NewProcessor(),
		structured.NewProcessor(),
		imageProcessor,
	)

	r.Normalizer = nlp.NewNormalizer()
	r.Recognizer = nlp.NewProseRecognizer(cfg.NER.ModelPath, cfg.NER.ModelName, log.Named("ner"))
	r.Layout = image.NewLayoutPreparer(r.Engine, renderer, log.Named("layout"))
	r.Classifier = layout.NewAdapter(layout.NewHTTPClassifier(&cfg.Classifier), log.Named("classifier"))
	r.LLM = llm.NewService(&cfg.Ollama, log.Named("llm"))

	r.loaders = append(r.loaders,
		namedLoader{"ner", r.Recognizer},
		namedLoader{"classifier", r.Classifier},
		namedLoader{"llm", r.LLM},
	)
	return r, nil
}

// Init loads every model in order. The runtime reports ready only after all
// of them succeeded.
func (r *Runtime) Init(ctx context.Context) error {
	for _, l := range r.loaders {
		start := time.Now()
		if err := l.Load(ctx); err != nil {
			r.logger.Error("Model failed to load", logger.String("component", l.name), logger.Error(err))
			return fmt.Errorf("init %s: %w", l.name, err)
		}
		r.logger.Info("Model loaded",
			logger.String("component", l.name),
			logger.Duration("elapsed", time.Since(start)),
		)
	}
	r.ready.Store(true)
	return nil
}

func (r *Runtime) Ready() bool { return r.ready.Load() }

func (r *Runtime) Close() error {
	r.ready.Store(false)
	var firstErr error
	for _, closer := range []interface{ Close() error }{r.Extractor, r.LLM} {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
