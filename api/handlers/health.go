package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-chat/pkg/queue"
)

// ReadyFunc reports whether the models have finished loading.
type ReadyFunc func() bool

// BacklogFunc reports outstanding cleanup tasks. Nil when no queue is configured.
type BacklogFunc func() (*queue.Backlog, error)

type HealthHandler struct {
	ready   ReadyFunc
	backlog BacklogFunc
}

func NewHealthHandler(ready ReadyFunc, backlog BacklogFunc) *HealthHandler {
	return &HealthHandler{ready: ready, backlog: backlog}
}

// Ready answers 200 once the models are loaded and 503 before. The cleanup
// backlog is informational and never changes the status code.
func (h *HealthHandler) Ready(c *gin.Context) {
	body := gin.H{"status": "loading"}
	code := http.StatusServiceUnavailable
	if h.ready != nil && h.ready() {
		body["status"] = "ready"
		code = http.StatusOK
	}

	if h.backlog != nil {
		if b, err := h.backlog(); err != nil {
			body["cleanupQueue"] = "unavailable"
		} else {
			body["cleanupQueue"] = b
		}
	}
	c.JSON(code, body)
}
