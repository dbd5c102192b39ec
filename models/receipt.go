package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Receipt 小票索引，FilePath 为对象存储中的 key
type Receipt struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      string    `json:"user_id" gorm:"size:36;index;not null"`
	FilePath    string    `json:"file_path" gorm:"size:255;not null"`
	FileName    string    `json:"file_name" gorm:"size:255"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}

// TableName 设置表名
func (Receipt) TableName() string {
	return "receipts"
}

// BeforeCreate 生成 UUID 主键
func (r *Receipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ChangeKey 变更通知使用的主键与所属用户
func (r *Receipt) ChangeKey() (string, string) {
	return r.ID, r.UserID
}
