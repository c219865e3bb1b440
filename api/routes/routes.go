package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-chat/api/handlers"
	"github.com/feichai0017/document-chat/api/middleware"
	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// multipartOverhead leaves room for form fields and part headers on top of
// the upload limit.
const multipartOverhead = 1 << 20

func SetupRoutes(r *gin.Engine, h *handlers.Handlers, cfg *config.ServerConfig, log logger.Logger) {
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/", h.Chat.Root)
	r.GET("/health", h.Health.Ready)

	chat := r.Group("/chat")
	chat.Use(middleware.MaxBodySize(cfg.MaxUploadBytes + multipartOverhead))
	{
		chat.POST("/", h.Chat.Chat)
	}
}
