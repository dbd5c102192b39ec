package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter 按 key（客户端 IP）计数的滑动窗口限流器
type RateLimiter struct {
	maxAttempts int
	window      time.Duration

	mu    sync.Mutex
	store map[string][]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter 创建限流器并启动过期数据清理
func NewRateLimiter(maxAttempts int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		store:       make(map[string][]time.Time),
		stop:        make(chan struct{}),
	}
	go rl.cleanupLoop(time.Minute)
	return rl
}

// Allow 记录一次尝试，超过窗口内上限时返回 false
func (rl *RateLimiter) Allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	ts := prune(rl.store[key], now.Add(-rl.window))
	if len(ts) >= rl.maxAttempts {
		rl.store[key] = ts
		return false
	}
	rl.store[key] = append(ts, now)
	return true
}

// Stop 停止清理协程
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := now.Add(-rl.window)
	for key, ts := range rl.store {
		ts = prune(ts, cutoff)
		if len(ts) == 0 {
			delete(rl.store, key)
		} else {
			rl.store[key] = ts
		}
	}
}

// prune 原地移除 cutoff 之前的时间戳
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Middleware 超限请求返回 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP(), time.Now()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many attempts, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoginRateLimit 认证接口限流中间件
// 每 IP 在 window 内最多 maxAttempts 次尝试，用于登录、注册和找回密码
func LoginRateLimit(maxAttempts int, window time.Duration) gin.HandlerFunc {
	return NewRateLimiter(maxAttempts, window).Middleware()
}
