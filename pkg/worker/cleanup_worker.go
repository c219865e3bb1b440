package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/queue"
)

// CleanupHandler runs the background pass for one staged document.
type CleanupHandler interface {
	HandleCleanup(ctx context.Context, p *queue.CleanupPayload) error
}

// StatusSaver records the outcome of a task.
type StatusSaver interface {
	SaveFinalStatus(ctx context.Context, status *queue.TaskStatus) error
}

type CleanupWorker struct {
	BaseWorker
	handler CleanupHandler
	status  StatusSaver
}

func NewCleanupWorker(cfg *config.QueueConfig, handler CleanupHandler, status StatusSaver, log logger.Logger) *CleanupWorker {
	server := asynq.NewServer(
		queue.RedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queue.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &CleanupWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		handler: handler,
		status:  status,
	}
	w.registerHandlers()
	return w
}

func (w *CleanupWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeDocumentCleanup, w.handleCleanup)
}

func (w *CleanupWorker) handleCleanup(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w: %w", err, asynq.SkipRetry)
	}
	return w.process(ctx, &task, t.ResultWriter())
}

// process runs one cleanup task and records its final status. rw may be nil.
func (w *CleanupWorker) process(ctx context.Context, task *queue.Task, rw *asynq.ResultWriter) error {
	log := w.logger.With(logger.String("taskId", task.ID))

	payload, err := queue.DecodeCleanupPayload(task)
	if err != nil {
		log.Error("Invalid task data", logger.Error(err), logger.Any("metadata", task.Metadata))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	started := time.Now()
	log.Info("Processing cleanup task",
		logger.String("documentId", payload.DocumentID),
		logger.String("filename", payload.Filename),
	)
	writeResult(rw, log, []byte(`{"status":"running","progress":0}`))

	status := &queue.TaskStatus{TaskID: task.ID, StartedAt: started}
	handleErr := w.handler.HandleCleanup(ctx, payload)
	status.FinishedAt = time.Now()
	if handleErr != nil {
		status.Status = queue.StatusFailed
		status.Error = handleErr.Error()
		writeResult(rw, log, []byte(fmt.Sprintf(`{"status":"failed","error":%q}`, handleErr.Error())))
	} else {
		status.Status = queue.StatusCompleted
		status.Progress = 1.0
		writeResult(rw, log, []byte(`{"status":"completed","progress":100}`))
	}

	if w.status != nil {
		if err := w.status.SaveFinalStatus(ctx, status); err != nil {
			log.Warn("Failed to save task status", logger.Error(err))
		}
	}
	return handleErr
}

func writeResult(rw *asynq.ResultWriter, log logger.Logger, data []byte) {
	if rw == nil {
		return
	}
	if _, err := rw.Write(data); err != nil {
		log.Error("Failed to write task status", logger.Error(err))
	}
}

func (w *CleanupWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}
	w.logger.Info("Cleanup worker started")

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}
