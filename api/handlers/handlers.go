package handlers

import (
	"github.com/feichai0017/document-chat/internal/service/chat"
	"github.com/feichai0017/document-chat/pkg/logger"
)

type Handlers struct {
	Chat   *ChatHandler
	Health *HealthHandler
}

func NewHandlers(
	chatService chat.ChatProcessor,
	ready ReadyFunc,
	backlog BacklogFunc,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Chat:   NewChatHandler(chatService, logger),
		Health: NewHealthHandler(ready, backlog),
	}
}
