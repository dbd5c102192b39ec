package database

import (
	"context"

	"spendlens/models"

	"gorm.io/gorm"
)

// Store 基于 gorm 的持久化，供抽取流水线和聊天记录使用
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateExpense 写入一条消费记录
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return s.db.WithContext(ctx).Create(expense).Error
}

// AppendMessage 追加一条聊天记录
func (s *Store) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// ListMessages 按时间正序返回用户最近 limit 条聊天记录
func (s *Store) ListMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	var list []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// ClearMessages 软删除用户全部聊天记录
func (s *Store) ClearMessages(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ChatMessage{}).Error
}
