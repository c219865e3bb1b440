package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-chat/api/handlers"
	"github.com/feichai0017/document-chat/api/routes"
	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/internal/service/chat"
	"github.com/feichai0017/document-chat/pkg/health"
	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/storage"
	"github.com/feichai0017/document-chat/pkg/worker"
)

func main() {
	cfg := config.Get()

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// health reports NOT_SERVING while models load
	var healthServer *health.Server
	if cfg.Server.HealthAddr != "" {
		healthServer = health.NewServer(log.Named("health"))
		if err := healthServer.Start(cfg.Server.HealthAddr); err != nil {
			log.Fatal("Failed to start health server", logger.Error(err))
		}
		defer healthServer.Stop()
	}

	components, err := chat.GetService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to get chat service", logger.Error(err))
	}
	if err := components.Runtime.Init(ctx); err != nil {
		log.Fatal("Failed to load models", logger.Error(err))
	}
	if healthServer != nil {
		healthServer.SetReady(true)
	}

	var cleanupWorker *worker.CleanupWorker
	if components.Queue != nil && cfg.Queue.EmbeddedWorker {
		cleanupWorker = worker.NewCleanupWorker(&cfg.Queue, components.Service, components.Queue, log.Named("worker"))
		if err := cleanupWorker.Start(ctx); err != nil {
			log.Fatal("Failed to start cleanup worker", logger.Error(err))
		}
	}

	sweeper := storage.NewSweeper(components.Storage, cfg.Storage.Retention, cfg.Storage.SweepInterval, log.Named("sweeper"))
	go sweeper.Run(ctx)

	// init handlers
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	var backlog handlers.BacklogFunc
	if components.Queue != nil {
		backlog = components.Queue.Backlog
	}
	h := handlers.NewHandlers(components.Service, components.Runtime.Ready, backlog, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, &cfg.Server, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
	if cleanupWorker != nil {
		cleanupWorker.Stop()
	}
	if err := components.Close(shutdownCtx); err != nil {
		log.Error("Failed to release components", logger.Error(err))
	}
	log.Info("Server stopped")
}
