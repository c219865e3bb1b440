// Package ocrtest provides a scripted OCR engine for tests.
package ocrtest

import (
	"context"
	"image"
	"sync"

	"github.com/feichai0017/document-chat/internal/agent/ocr"
)

// Engine returns canned results and counts calls.
type Engine struct {
	TextFunc  func(img image.Image) (string, error)
	WordsFunc func(img image.Image) ([]ocr.Word, error)

	mu         sync.Mutex
	textCalls  int
	wordsCalls int
}

func (e *Engine) Name() string { return "fake" }

func (e *Engine) Text(ctx context.Context, img image.Image) (string, error) {
	e.mu.Lock()
	e.textCalls++
	e.mu.Unlock()
	if e.TextFunc == nil {
		return "", nil
	}
	return e.TextFunc(img)
}

func (e *Engine) Words(ctx context.Context, img image.Image) ([]ocr.Word, error) {
	e.mu.Lock()
	e.wordsCalls++
	e.mu.Unlock()
	if e.WordsFunc == nil {
		return nil, nil
	}
	return e.WordsFunc(img)
}

func (e *Engine) Close() error { return nil }

func (e *Engine) TextCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.textCalls
}

func (e *Engine) WordsCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wordsCalls
}
