package api

import (
	"context"
	"errors"
	"net/http"

	"spendlens/extraction"
	"spendlens/logger"
	"spendlens/middleware"
	"spendlens/models"

	"github.com/gin-gonic/gin"
)

// Extractor 记账抽取
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (*models.Expense, error)
}

// ChatHandler 自由文本记账
type ChatHandler struct {
	extractor Extractor
}

// NewChatHandler 创建记账聊天处理器
func NewChatHandler(extractor Extractor) *ChatHandler {
	return &ChatHandler{extractor: extractor}
}

// ChatResponse 抽取成功响应
type ChatResponse struct {
	Success bool            `json:"success" example:"true"`
	Data    *models.Expense `json:"data"`
}

// Extract 从最后一条消息抽取并写入一条消费记录
// @Summary 自由文本记账
// @Description 取 messages 最后一条的内容交给语言模型抽取金额、币种、类别、日期和支付方式，规范化后写入一条消费记录。user_id 可省略，给出时必须与 token 一致。
// @Tags 消费记录
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer <token>"
// @Param request body extraction.Request true "聊天消息"
// @Success 200 {object} ChatResponse "写入的记录"
// @Failure 400 {object} ErrorResponse "请求体不是 JSON、messages 为空或抽取字段不全（请求体校验先于 token）"
// @Failure 401 {object} ErrorResponse "请求体合法但未授权"
// @Failure 403 {object} ErrorResponse "user_id 与 token 不一致"
// @Failure 500 {object} ErrorResponse "抽取或写入失败"
// @Router /api/chat [post]
func (h *ChatHandler) Extract(c *gin.Context) {
	// 请求体先于 token 校验：空消息一律 400，且不触达语言模型
	var req extraction.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, &extraction.Error{Kind: extraction.KindInvalidInput, Message: "request body must be JSON with a messages array", Err: err})
		return
	}
	if len(req.Messages) == 0 {
		h.fail(c, &extraction.Error{Kind: extraction.KindInvalidInput, Message: "messages must not be empty"})
		return
	}

	token, ok := middleware.BearerToken(c)
	if !ok {
		h.fail(c, &extraction.Error{Kind: extraction.KindAuthRequired, Message: "authentication required"})
		return
	}
	claims, err := middleware.ParseToken(token)
	if err != nil {
		h.fail(c, &extraction.Error{Kind: extraction.KindAuthRequired, Message: "authentication required", Err: err})
		return
	}

	if req.UserID == "" {
		req.UserID = claims.UserID
	} else if req.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "user_id does not match the signed-in user"})
		return
	}

	expense, err := h.extractor.Extract(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	middleware.ExtractionTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, ChatResponse{Success: true, Data: expense})
}

func (h *ChatHandler) fail(c *gin.Context, err error) {
	var e *extraction.Error
	if !errors.As(err, &e) {
		e = &extraction.Error{Kind: extraction.KindExtractionFailed, Message: "failed to process expense", Err: err}
	}
	middleware.ExtractionTotal.WithLabelValues(string(e.Kind)).Inc()
	logger.FromContext(c.Request.Context()).Warn("extraction request failed", "kind", e.Kind, "error", err)
	c.JSON(e.HTTPStatus(), ErrorResponse{Error: e.Message})
}
