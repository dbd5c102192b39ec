package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Budget 类别预算分配，只读取和原地更新
type Budget struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Category  string          `json:"category" gorm:"size:50;uniqueIndex;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null" swaggertype:"string" example:"5000"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName 设置表名
func (Budget) TableName() string {
	return "budgets"
}

// ChangeKey 预算不属于具体用户
func (b *Budget) ChangeKey() (string, string) {
	return fmt.Sprint(b.ID), ""
}

// DefaultBudgets 首次迁移时写入的预算分配
func DefaultBudgets() []Budget {
	defaults := map[string]int64{
		CategoryFood:           5000,
		CategoryHousing:        15000,
		CategoryTransportation: 3000,
		CategoryEntertainment:  2000,
		CategoryOther:          2000,
	}
	var list []Budget
	for _, name := range CategoryNames() {
		list = append(list, Budget{Category: name, Amount: decimal.NewFromInt(defaults[name])})
	}
	return list
}
