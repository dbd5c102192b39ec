// Package events 分发数据变更通知，订阅方按表和用户过滤，与写入路径互不依赖
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// 变更类型
const (
	TypeInsert = "INSERT"
	TypeUpdate = "UPDATE"
	TypeDelete = "DELETE"
)

// 认证事件（表名为 auth）
const (
	TableAuth            = "auth"
	AuthSignedIn         = "SIGNED_IN"
	AuthSignedOut        = "SIGNED_OUT"
	AuthPasswordRecovery = "PASSWORD_RECOVERY"
	AuthUserUpdated      = "USER_UPDATED"
)

// Event 一条变更通知
type Event struct {
	Table    string    `json:"table"`
	Type     string    `json:"type"`
	RecordID string    `json:"record_id,omitempty"`
	UserID   string    `json:"user_id,omitempty"`
	At       time.Time `json:"at"`
}

// JSON 序列化事件
func (e Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Filter 订阅过滤条件，空字段表示不过滤
// UserID 非空时只接收该用户的事件以及不属于任何用户的事件（如预算）
type Filter struct {
	Table  string
	UserID string
}

// Match 判断事件是否满足过滤条件
func (f Filter) Match(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.UserID != "" && e.UserID != "" && f.UserID != e.UserID {
		return false
	}
	return true
}

// Sink 事件的额外去向（例如消息队列）
type Sink interface {
	Send(e Event) error
}

type subscriber struct {
	filter Filter
	ch     chan Event
}

// sinkQueueSize 额外去向的待发送队列长度
const sinkQueueSize = 256

// Hub 进程内事件中心
// 额外去向由单独的 goroutine 依次发送，Publish 不等待外部系统
type Hub struct {
	mu          sync.RWMutex
	subs        map[*subscriber]struct{}
	sinks       []Sink
	buffer      int
	onDrop      func(Event)
	onSinkError func(Event, error)

	sinkQueue chan Event
	startOnce sync.Once
	drained   chan struct{}
	closed    bool
}

// NewHub 创建事件中心，buffer 为每个订阅者的缓冲大小
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:      make(map[*subscriber]struct{}),
		buffer:    buffer,
		sinkQueue: make(chan Event, sinkQueueSize),
		drained:   make(chan struct{}),
	}
}

// AddSink 增加额外去向，第一次调用时启动发送 goroutine
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
	h.startOnce.Do(func() { go h.drainSinks() })
}

func (h *Hub) drainSinks() {
	defer close(h.drained)
	for e := range h.sinkQueue {
		h.mu.RLock()
		sinks := h.sinks
		onErr := h.onSinkError
		h.mu.RUnlock()

		for _, s := range sinks {
			if err := s.Send(e); err != nil && onErr != nil {
				onErr(e, err)
			}
		}
	}
}

// Close 停止接收新事件，等待已排队的事件发送完毕
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.sinkQueue)
	h.mu.Unlock()

	started := true
	h.startOnce.Do(func() { started = false })
	if started {
		<-h.drained
	}
}

// OnDrop 订阅者缓冲满时回调
func (h *Hub) OnDrop(fn func(Event)) {
	h.mu.Lock()
	h.onDrop = fn
	h.mu.Unlock()
}

// OnSinkError 额外去向发送失败时回调
func (h *Hub) OnSinkError(fn func(Event, error)) {
	h.mu.Lock()
	h.onSinkError = fn
	h.mu.Unlock()
}

// Subscribe 订阅事件，返回只读通道和取消函数；取消后通道关闭
func (h *Hub) Subscribe(filter Filter) (<-chan Event, func()) {
	sub := &subscriber{filter: filter, ch: make(chan Event, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish 发布事件，不阻塞：订阅者缓冲或发送队列满时丢弃该事件
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !sub.filter.Match(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			if h.onDrop != nil {
				h.onDrop(e)
			}
		}
	}
	if len(h.sinks) == 0 || h.closed {
		return
	}
	select {
	case h.sinkQueue <- e:
	default:
		if h.onDrop != nil {
			h.onDrop(e)
		}
	}
}

// Subscribers 当前订阅者数量
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
