package extraction

import (
	"context"

	"spendlens/models"
)

// ChatHistory 聊天记录持久化
type ChatHistory interface {
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error)
	ClearMessages(ctx context.Context, userID string) error
}
