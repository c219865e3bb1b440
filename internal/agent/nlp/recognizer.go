package nlp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jdkato/prose/v2"

	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

const probeText = "Ada Lovelace worked with Charles Babbage in London."

// ProseRecognizer extracts named entities with a prose model loaded once
// per process.
type ProseRecognizer struct {
	modelPath string
	modelName string
	logger    logger.Logger

	// prose models are not documented as goroutine-safe
	mu    sync.Mutex
	model *prose.Model
	ready atomic.Bool
}

func NewProseRecognizer(modelPath, modelName string, log logger.Logger) *ProseRecognizer {
	return &ProseRecognizer{modelPath: modelPath, modelName: modelName, logger: log}
}

// Load reads the model from disk, or warms up the bundled one, and marks
// the recognizer ready.
func (r *ProseRecognizer) Load(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("load ner model: %v", rec)
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	var opts []prose.DocOpt
	if r.modelPath != "" {
		opts = append(opts, prose.UsingModel(prose.ModelFromDisk(r.modelPath)))
	}
	doc, err := prose.NewDocument(probeText, append(opts, prose.WithSegmentation(false))...)
	if err != nil {
		return fmt.Errorf("load ner model: %w", err)
	}
	r.model = doc.Model
	r.ready.Store(true)

	r.logger.Info("NER model ready",
		logger.String("model", r.describe()),
		logger.Int("probeEntities", len(doc.Entities())),
	)
	return nil
}

func (r *ProseRecognizer) describe() string {
	switch {
	case r.modelName != "":
		return r.modelName
	case r.modelPath != "":
		return r.modelPath
	default:
		return "prose-default"
	}
}

func (r *ProseRecognizer) Ready() bool { return r.ready.Load() }

// Recognize returns entity spans in order of occurrence, repeats included.
func (r *ProseRecognizer) Recognize(ctx context.Context, text string) ([]models.Entity, error) {
	if !r.ready.Load() {
		return nil, models.ErrModelNotReady
	}
	if strings.TrimSpace(text) == "" {
		return []models.Entity{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	doc, err := prose.NewDocument(text,
		prose.UsingModel(r.model),
		prose.WithSegmentation(false),
	)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("recognize entities: %w", err)
	}

	ents := doc.Entities()
	out := make([]models.Entity, 0, len(ents))
	for _, e := range ents {
		out = append(out, models.Entity{Text: e.Text, Label: e.Label})
	}
	return out, nil
}
