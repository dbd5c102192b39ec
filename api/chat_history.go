package api

import (
	"strconv"
	"strings"

	"spendlens/extraction"
	"spendlens/middleware"
	"spendlens/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ChatHistoryHandler 记账聊天记录
type ChatHistoryHandler struct {
	history extraction.ChatHistory
}

// NewChatHistoryHandler 创建聊天记录处理器
func NewChatHistoryHandler(history extraction.ChatHistory) *ChatHistoryHandler {
	return &ChatHistoryHandler{history: history}
}

// AppendMessageRequest 追加聊天记录请求
type AppendMessageRequest struct {
	Role    string `json:"role" binding:"required,oneof=user assistant" example:"user"`
	Content string `json:"content" binding:"required,max=4000" example:"spent 20-03-2025 lunch 250 INR cash"`
}

// List 最近的聊天记录（按时间正序）
// @Summary 聊天记录
// @Tags 聊天记录
// @Produce json
// @Security BearerAuth
// @Param limit query int false "条数" default(50)
// @Success 200 {object} Response{data=[]models.ChatMessage} "获取成功"
// @Router /api/v1/chat/history [get]
func (h *ChatHistoryHandler) List(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	list, err := h.history.ListMessages(c.Request.Context(), middleware.GetCurrentUserID(c), limit)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	if list == nil {
		list = []models.ChatMessage{}
	}
	Success(c, list)
}

// Append 追加一条聊天记录
// @Summary 追加聊天记录
// @Tags 聊天记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AppendMessageRequest true "发言"
// @Success 200 {object} Response{data=models.ChatMessage} "保存成功"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/chat/history [post]
func (h *ChatHistoryHandler) Append(c *gin.Context) {
	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "role and content are required"))
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		BadRequest(c, "content must not be blank")
		return
	}

	msg := &models.ChatMessage{
		UserID:  middleware.GetCurrentUserID(c),
		Role:    req.Role,
		Content: content,
	}
	if err := h.history.AppendMessage(c.Request.Context(), msg); err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to save message"))
		return
	}
	SuccessWithMessage(c, "saved", msg)
}

// Clear 清空聊天记录
// @Summary 清空聊天记录
// @Tags 聊天记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "已清空"
// @Router /api/v1/chat/history [delete]
func (h *ChatHistoryHandler) Clear(c *gin.Context) {
	if err := h.history.ClearMessages(c.Request.Context(), middleware.GetCurrentUserID(c)); err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to clear history"))
		return
	}
	SuccessWithMessage(c, "cleared", nil)
}
