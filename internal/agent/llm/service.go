// Package llm talks to the local language model that answers chat prompts.
package llm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// Service completes prompts through a pool of Ollama clients.
type Service struct {
	pool   *OllamaClientPool
	probe  *OllamaClient
	model  string
	logger logger.Logger
	ready  atomic.Bool
}

func NewService(cfg *config.OllamaConfig, log logger.Logger) *Service {
	return &Service{
		pool:   NewOllamaClientPool(cfg),
		probe:  NewOllamaClient(cfg),
		model:  cfg.Model,
		logger: log,
	}
}

// Load verifies the model server is reachable and marks the service ready.
func (s *Service) Load(ctx context.Context) error {
	if err := s.probe.Ping(ctx); err != nil {
		return fmt.Errorf("load language model: %w", err)
	}
	s.ready.Store(true)
	s.logger.Info("Language model ready", logger.String("model", s.model))
	return nil
}

func (s *Service) Ready() bool { return s.ready.Load() }

// Complete returns the model's answer for prompt.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	if !s.ready.Load() {
		return "", models.ErrModelNotReady
	}

	client, err := s.pool.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire ollama client: %w", err)
	}
	defer s.pool.Put(client)

	start := time.Now()
	answer, err := client.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	s.logger.Debug("Completion finished",
		logger.Int("promptChars", len(prompt)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return answer, nil
}

func (s *Service) Close() error {
	s.probe.Close()
	return s.pool.Close()
}
