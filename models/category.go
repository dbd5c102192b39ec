package models

import "strings"

// 规范消费类别（入库使用小写）
const (
	CategoryFood           = "food"
	CategoryHousing        = "housing"
	CategoryTransportation = "transportation"
	CategoryEntertainment  = "entertainment"
	CategoryOther          = "other"
)

// CategoryInfo 类别展示信息（颜色与前端图表保持一致）
type CategoryInfo struct {
	Name  string `json:"name" example:"food"`
	Label string `json:"label" example:"Food"`
	Color string `json:"color" example:"#ef4444"`
}

var categoryInfos = []CategoryInfo{
	{Name: CategoryFood, Label: "Food", Color: "#ef4444"},
	{Name: CategoryHousing, Label: "Housing", Color: "#14b8a6"},
	{Name: CategoryTransportation, Label: "Transportation", Color: "#3b82f6"},
	{Name: CategoryEntertainment, Label: "Entertainment", Color: "#ec4899"},
	{Name: CategoryOther, Label: "Other", Color: "#64748b"},
}

// GetCategories 获取所有规范类别
func GetCategories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryInfos))
	copy(out, categoryInfos)
	return out
}

// CategoryNames 规范类别名列表
func CategoryNames() []string {
	names := make([]string, 0, len(categoryInfos))
	for _, c := range categoryInfos {
		names = append(names, c.Name)
	}
	return names
}

// IsCanonicalCategory 判断是否为规范类别（忽略大小写）
func IsCanonicalCategory(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range categoryInfos {
		if c.Name == name {
			return true
		}
	}
	return false
}

// 支付方式
const (
	PaymentCash       = "cash"
	PaymentBank       = "bank"
	PaymentCreditCard = "credit card"
	PaymentOther      = "other"
)

// GetPaymentMethods 获取所有支付方式
func GetPaymentMethods() []string {
	return []string{PaymentCash, PaymentBank, PaymentCreditCard, PaymentOther}
}
