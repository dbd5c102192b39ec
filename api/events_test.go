package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendlens/events"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsHandler_Stream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := events.NewHub(8)
	h := NewEventsHandler(hub)
	h.heartbeat = 20 * time.Millisecond

	router := gin.New()
	router.Use(setUserIDMiddleware("u1"))
	router.GET("/events", h.Stream)

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/events?table=expenses", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	// 其他用户、其他表的事件被过滤
	hub.Publish(events.Event{Table: "expenses", Type: events.TypeInsert, RecordID: "x", UserID: "u2"})
	hub.Publish(events.Event{Table: "receipts", Type: events.TypeInsert, RecordID: "r", UserID: "u1"})
	hub.Publish(events.Event{Table: "expenses", Type: events.TypeInsert, RecordID: "e1", UserID: "u1"})

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	var e events.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &e))
	assert.Equal(t, "e1", e.RecordID)
	assert.Equal(t, events.TypeInsert, e.Type)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
