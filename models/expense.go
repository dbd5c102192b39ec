package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense 消费记录模型，创建后不再修改
type Expense struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	UserID        string          `json:"user_id" gorm:"size:36;index;not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null" swaggertype:"string" example:"250"`
	Currency      string          `json:"currency" gorm:"size:10;not null" example:"INR"`
	Category      string          `json:"category" gorm:"size:50;index;not null" example:"food"`
	Date          string          `json:"date" gorm:"size:32;index;not null" example:"2025-03-20"` // YYYY-MM-DD
	PaymentMethod string          `json:"payment_method" gorm:"size:30;not null" example:"cash"`
	Note          string          `json:"note,omitempty" gorm:"size:255"`
	CreatedAt     time.Time       `json:"created_at"`
	User          User            `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (Expense) TableName() string {
	return "expenses"
}

// BeforeCreate 生成 UUID 主键
func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ChangeKey 变更通知使用的主键与所属用户
func (e *Expense) ChangeKey() (string, string) {
	return e.ID, e.UserID
}
