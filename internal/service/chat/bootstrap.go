package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/internal/agent"
	"github.com/feichai0017/document-chat/internal/utils/validator"
	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/queue"
	"github.com/feichai0017/document-chat/pkg/storage"
	"github.com/feichai0017/document-chat/pkg/worker"
)

// Components is everything a process needs to serve chat requests or run
// background passes.
type Components struct {
	Service *ChatService
	Runtime *agent.Runtime
	Storage storage.Storage
	// Queue is nil when background passes run in-process.
	Queue *queue.AsynqQueue
}

// GetService builds the runtime, storage, pool and scheduler from cfg. The
// runtime is not initialized; call Runtime.Init before serving.
func GetService(ctx context.Context, cfg *config.Config, log logger.Logger) (*Components, error) {
	store, err := storage.NewStorage(ctx, cfg, log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	rt, err := agent.NewRuntime(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runtime: %w", err)
	}

	svc := NewService(
		Dependencies{
			Extractor:  rt.Extractor,
			Normalizer: rt.Normalizer,
			Recognizer: rt.Recognizer,
			Layout:     rt.Layout,
			Classifier: rt.Classifier,
			LLM:        rt.LLM,
		},
		store,
		worker.NewPool(cfg.Pipeline.Workers, log.Named("pool")),
		validator.NewDocumentValidator(log.Named("validator"), &validator.ValidatorConfig{MaxFileSize: cfg.Server.MaxUploadBytes}),
		log.Named("chat"),
		&ServiceConfig{
			SummaryLength:       cfg.Pipeline.SummaryLength,
			BackgroundReextract: cfg.Pipeline.BackgroundReextract,
			StoragePrefix:       cfg.Storage.Prefix,
		},
	)

	c := &Components{Service: svc, Runtime: rt, Storage: store}

	if cfg.Queue.Backend == config.QueueAsynq {
		q, err := queue.NewAsynqQueue(&cfg.Queue)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to initialize queue: %w", err)
		}
		c.Queue = q
		svc.UseScheduler(NewQueueScheduler(q, log.Named("scheduler")))
	}
	return c, nil
}

// Close drains in-flight work, then releases the runtime and queue.
func (c *Components) Close(ctx context.Context) error {
	errs := []error{c.Service.Drain(ctx), c.Runtime.Close()}
	if c.Queue != nil {
		errs = append(errs, c.Queue.Close())
	}
	return errors.Join(errs...)
}
