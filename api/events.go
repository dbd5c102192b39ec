package api

import (
	"io"
	"time"

	"spendlens/events"
	"spendlens/middleware"

	"github.com/gin-gonic/gin"
)

// EventsHandler 变更事件 SSE 推送
type EventsHandler struct {
	hub       *events.Hub
	heartbeat time.Duration
}

// NewEventsHandler 创建事件推送处理器
func NewEventsHandler(hub *events.Hub) *EventsHandler {
	return &EventsHandler{hub: hub, heartbeat: 25 * time.Second}
}

// Stream 订阅当前用户的变更事件
// @Summary 变更事件流
// @Description SSE，每条为 data: {table,type,record_id,user_id,at}；table 为空时接收全部表
// @Tags 事件
// @Produce text/event-stream
// @Security BearerAuth
// @Param table query string false "表名，例如 expenses"
// @Success 200 {string} string "SSE 流"
// @Router /api/v1/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	ch, cancel := h.hub.Subscribe(events.Filter{
		Table:  c.Query("table"),
		UserID: middleware.GetCurrentUserID(c),
	})
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	// 先发一条注释，客户端据此确认连接已建立
	_, _ = c.Writer.WriteString(": connected\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-ch:
			if !ok {
				return false
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(e.JSON())
			_, _ = w.Write([]byte("\n\n"))
			return true
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			return true
		}
	})
}
