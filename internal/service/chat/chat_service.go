package chat

import (
	"context"
	"io"

	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/queue"
)

// ChatProcessor answers questions, optionally grounded on an uploaded document.
type ChatProcessor interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	HandleCleanup(ctx context.Context, p *queue.CleanupPayload) error
}

// Upload is a document received with a chat request.
type Upload struct {
	Filename string
	Size     int64
	File     io.ReadSeeker
}

type ChatRequest struct {
	Question string
	Upload   *Upload
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

type TextExtractor interface {
	Extract(ctx context.Context, doc *models.DocumentHandle) (string, error)
}

type Normalizer interface {
	Normalize(text string) string
}

type EntityRecognizer interface {
	Recognize(ctx context.Context, text string) ([]models.Entity, error)
}

type LayoutPreparer interface {
	Prepare(ctx context.Context, doc *models.DocumentHandle) (*models.LayoutInput, error)
}

type LayoutClassifier interface {
	Classify(ctx context.Context, in *models.LayoutInput) ([]models.StructuredLabel, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Scheduler runs the background pass for a staged document after the
// response has been produced.
type Scheduler interface {
	Schedule(ctx context.Context, p *queue.CleanupPayload) error
}

// Dependencies are the inference components a Service drives.
type Dependencies struct {
	Extractor  TextExtractor
	Normalizer Normalizer
	Recognizer EntityRecognizer
	Layout     LayoutPreparer
	Classifier LayoutClassifier
	LLM        Completer
}
