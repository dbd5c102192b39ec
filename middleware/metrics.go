package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spendlens_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spendlens_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ExtractionTotal 抽取结果计数，result 为 ok 或错误类别
	ExtractionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spendlens_extraction_total",
		Help: "Expense extraction outcomes.",
	}, []string{"result"})

	// EventsPublished 发布的变更事件计数
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spendlens_events_published_total",
		Help: "Change events published to the hub.",
	}, []string{"table", "type"})
)

// Metrics 记录请求数与耗时，route 使用路由模板避免高基数
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
