package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// 聊天角色
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage 记账聊天记录（每条为一轮中的单个发言）
type ChatMessage struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    string         `json:"user_id" gorm:"size:36;index;not null"`
	Role      string         `json:"role" gorm:"size:20;not null"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// ChangeKey 变更通知使用的主键与所属用户
func (m *ChatMessage) ChangeKey() (string, string) {
	return fmt.Sprint(m.ID), m.UserID
}
