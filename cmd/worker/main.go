package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/internal/service/chat"
	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/worker"
)

func main() {
	cfg := config.Get()

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(workerOutputs(cfg.Log.OutputPaths)),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Queue.Backend != config.QueueAsynq {
		log.Error("Cleanup worker requires QUEUE_BACKEND=asynq", logger.String("backend", cfg.Queue.Backend))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := chat.GetService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create chat service", logger.Error(err))
		os.Exit(1)
	}
	if cfg.Pipeline.BackgroundReextract {
		if err := components.Runtime.Init(ctx); err != nil {
			log.Error("Failed to load models", logger.Error(err))
			os.Exit(1)
		}
	}

	cleanupWorker := worker.NewCleanupWorker(&cfg.Queue, components.Service, components.Queue, log.Named("worker"))
	if err := cleanupWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()

	log.Info("Shutting down worker...")
	cleanupWorker.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := components.Close(shutdownCtx); err != nil {
		log.Error("Failed to release components", logger.Error(err))
	}
	log.Info("Worker stopped")
}

// workerOutputs swaps the server's log file for the worker's own.
func workerOutputs(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.Base(p) == "app.log" {
			p = filepath.Join(filepath.Dir(p), "worker.log")
		}
		out[i] = p
	}
	return out
}
