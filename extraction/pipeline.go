// Package extraction 把自由文本记账描述转换为消费记录：
// 调用语言模型抽取 JSON、校验字段、规范化类别与日期，然后写入一条记录。
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"spendlens/logger"
	"spendlens/models"

	"github.com/shopspring/decimal"
)

// Message 一轮聊天发言
type Message struct {
	Role    string `json:"role" example:"user"`
	Content string `json:"content" example:"spent 20-03-2025 lunch 250 INR cash"`
}

// Request 抽取请求，最后一条消息的内容即记账描述
type Request struct {
	Messages []Message `json:"messages"`
	UserID   string    `json:"user_id" example:"u1"`
}

// LanguageModel 单次提示词进、文本出的语言模型
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ExpenseStore 消费记录写入
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
}

// requiredFields 模型输出必须包含的字段
var requiredFields = []string{"amount", "currency", "category", "date", "payment_method"}

// Pipeline 抽取流水线，无共享可变状态，可并发使用
type Pipeline struct {
	model LanguageModel
	store ExpenseStore
	log   *logger.Logger
	now   func() time.Time
}

// Option 流水线选项
type Option func(*Pipeline)

// WithLogger 指定日志器
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithClock 指定时钟（提示词中的“今天”）
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline 创建抽取流水线
func NewPipeline(model LanguageModel, store ExpenseStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		model: model,
		store: store,
		log:   logger.Named("extraction"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract 执行抽取并写入，任一阶段失败即返回 *Error
func (p *Pipeline) Extract(ctx context.Context, req Request) (*models.Expense, error) {
	if len(req.Messages) == 0 {
		return nil, newError(KindInvalidInput, "messages must not be empty", nil)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, newError(KindInvalidInput, "user_id is required", nil)
	}
	text := strings.TrimSpace(req.Messages[len(req.Messages)-1].Content)
	if text == "" {
		return nil, newError(KindInvalidInput, "the last message has no content", nil)
	}

	reply, err := p.model.Complete(ctx, BuildPrompt(text, p.now()))
	if err != nil {
		p.log.ErrorContext(ctx, "language model call failed", "stage", KindExtractionFailed, "error", err)
		return nil, newError(KindExtractionFailed, "failed to extract expense details", err)
	}

	fields, err := parseFields(reply)
	if err != nil {
		p.log.WarnContext(ctx, "unparseable model reply", "stage", KindExtractionFailed, "reply", reply)
		return nil, err
	}

	if missing := missingFields(fields); len(missing) > 0 {
		return nil, newError(KindIncompleteExtraction,
			"could not find "+strings.Join(missing, ", ")+" in your message, please include them", nil)
	}

	amount, err := parseAmount(fields["amount"])
	if err != nil {
		return nil, newError(KindExtractionFailed, "the extracted amount is not a number", err)
	}

	expense := &models.Expense{
		UserID:        strings.TrimSpace(req.UserID),
		Amount:        amount,
		Currency:      fields["currency"],
		Category:      NormalizeCategory(fields["category"]),
		Date:          ToISODate(fields["date"]),
		PaymentMethod: fields["payment_method"],
	}

	if err := p.store.CreateExpense(ctx, expense); err != nil {
		p.log.ErrorContext(ctx, "expense insert failed", "stage", KindPersistenceFailed, "user_id", expense.UserID, "error", err)
		return nil, newError(KindPersistenceFailed, err.Error(), err)
	}

	p.log.InfoContext(ctx, "expense extracted", "user_id", expense.UserID, "expense_id", expense.ID, "category", expense.Category)
	return expense, nil
}

// parseFields 解析模型回复，值统一转为去空白的字符串；null 与非标量视为缺失
func parseFields(reply string) (map[string]string, error) {
	cleaned := StripCodeFence(reply)
	if cleaned == "" {
		return nil, newError(KindExtractionFailed, "the language model returned an empty reply", nil)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, newError(KindExtractionFailed, "failed to parse extracted expense details", err)
	}
	if len(raw) == 0 {
		return nil, newError(KindExtractionFailed, "the language model returned no expense details", nil)
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = strings.TrimSpace(val)
		case json.Number:
			fields[k] = val.String()
		}
	}
	return fields, nil
}

func missingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range requiredFields {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(raw, ",", ""), " ", "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return amount, nil
}
