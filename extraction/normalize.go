package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"spendlens/models"
)

// FallbackPolicy 查表未命中时的处理策略
type FallbackPolicy int

const (
	// FallbackPassThrough 原样返回输入
	FallbackPassThrough FallbackPolicy = iota
	// FallbackReject 返回错误
	FallbackReject
)

// categorySynonyms 类别同义词表（键为小写）
var categorySynonyms = map[string]string{
	"food":       models.CategoryFood,
	"groceries":  models.CategoryFood,
	"dining":     models.CategoryFood,
	"restaurant": models.CategoryFood,
	"snacks":     models.CategoryFood,
}

// CategoryPolicy 抽取链路的类别兜底策略
const CategoryPolicy = FallbackPassThrough

// NormalizeCategory 按同义词表折叠类别，未命中时原样返回
func NormalizeCategory(raw string) string {
	if canonical, ok := categorySynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return canonical
	}
	return raw
}

// paymentMethods 支付方式表（键为小写）
var paymentMethods = map[string]string{
	"cash":        models.PaymentCash,
	"bank":        models.PaymentBank,
	"credit card": models.PaymentCreditCard,
	"other":       models.PaymentOther,
}

// NormalizePaymentMethod 查支付方式枚举
// FallbackPassThrough 时未命中原样返回；FallbackReject 时返回错误
func NormalizePaymentMethod(raw string, policy FallbackPolicy) (string, error) {
	key := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if v, ok := paymentMethods[key]; ok {
		return v, nil
	}
	if policy == FallbackReject {
		return "", fmt.Errorf("unknown payment method %q", raw)
	}
	return raw, nil
}

var dmyPattern = regexp.MustCompile(`^(\d{2})[-/](\d{2})[-/](\d{4})$`)

// ToISODate 把 DD-MM-YYYY（或 DD/MM/YYYY）改写为 YYYY-MM-DD，其他格式原样返回
func ToISODate(raw string) string {
	m := dmyPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return raw
	}
	return m[3] + "-" + m[2] + "-" + m[1]
}

var flexibleLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2-Jan-2006",
	"02-Jan-2006",
}

// ParseFlexibleDate 识别数字或英文月份名格式的日期，返回 YYYY-MM-DD
func ParseFlexibleDate(raw string) (string, error) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	// 月份名不区分大小写
	s = titleMonth(s)
	for _, layout := range flexibleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

func titleMonth(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' || r == ',' })
	for _, w := range words {
		if len(w) < 3 || w[0] < 'A' || (w[0] > 'Z' && w[0] < 'a') {
			continue
		}
		fixed := strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		s = strings.Replace(s, w, fixed, 1)
	}
	return s
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCodeFence 去掉模型回复外层的 ``` 代码块标记
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
