package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/internal/service/chat"
	"github.com/feichai0017/document-chat/pkg/logger"
)

const RootMessage = "Enhanced LLM Chat API with async concurrency is live!"

var errMissingQuery = errors.New("missing form field: query")

type ChatHandler struct {
	service chat.ChatProcessor
	logger  logger.Logger
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewChatHandler(service chat.ChatProcessor, logger logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// Chat answers the multipart form field "query", grounded on the optional
// "file" upload.
func (h *ChatHandler) Chat(c *gin.Context) {
	query, ok := c.GetPostForm("query")
	if !ok {
		h.handleError(c, errMissingQuery)
		return
	}

	req := &chat.ChatRequest{Question: query}

	file, header, err := c.Request.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		h.handleError(c, err)
		return
	default:
		defer file.Close()
		req.Upload = &chat.Upload{
			Filename: header.Filename,
			Size:     header.Size,
			File:     file,
		}
	}

	resp, err := h.service.Chat(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Root reports that the service is up.
func (h *ChatHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": RootMessage})
}

func (h *ChatHandler) handleError(c *gin.Context, err error) {
	log := logger.FromContext(c.Request.Context(), h.logger)
	log.Error("Chat error", logger.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: models.PublicMessage(err)})
}
