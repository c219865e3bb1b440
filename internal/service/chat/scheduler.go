package chat

import (
	"context"
	"sync"

	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/queue"
)

// CleanupHandler executes a background pass.
type CleanupHandler interface {
	HandleCleanup(ctx context.Context, p *queue.CleanupPayload) error
}

// InlineScheduler runs background passes on goroutines of this process.
// Failures are logged and never reach the caller.
type InlineScheduler struct {
	handler CleanupHandler
	logger  logger.Logger
	wg      sync.WaitGroup
}

func NewInlineScheduler(handler CleanupHandler, log logger.Logger) *InlineScheduler {
	return &InlineScheduler{handler: handler, logger: log}
}

func (s *InlineScheduler) Schedule(ctx context.Context, p *queue.CleanupPayload) error {
	jobCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.handler.HandleCleanup(jobCtx, p); err != nil {
			s.logger.Error("Background pass failed",
				logger.String("documentId", p.DocumentID),
				logger.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until every scheduled pass has finished or ctx is done.
func (s *InlineScheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueScheduler hands background passes to the task queue, where a cleanup
// worker picks them up.
type QueueScheduler struct {
	queue  queue.Queue
	logger logger.Logger
}

func NewQueueScheduler(q queue.Queue, log logger.Logger) *QueueScheduler {
	return &QueueScheduler{queue: q, logger: log}
}

func (s *QueueScheduler) Schedule(ctx context.Context, p *queue.CleanupPayload) error {
	task, err := queue.NewCleanupTask(p)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return err
	}
	s.logger.Debug("Background pass enqueued",
		logger.String("taskId", task.ID),
		logger.String("documentId", p.DocumentID),
	)
	return nil
}
