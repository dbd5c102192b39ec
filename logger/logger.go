// Package logger 提供带组件名的结构化日志（基于 log/slog）
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger 在 slog.Logger 基础上附带组件名
type Logger struct {
	*slog.Logger
	root      *slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string
	Format    string // text | json
	Component string
	Output    io.Writer
}

// New 根据配置创建日志器
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	component := cfg.Component
	if component == "" {
		component = "app"
	}
	root := slog.New(handler)
	return &Logger{
		Logger:    root.With("component", component),
		root:      root,
		component: component,
	}
}

// ParseLevel 解析日志级别，无法识别时返回 Info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent 返回指定组件名的子日志器，不继承 With 附加的字段
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.root.With("component", component),
		root:      l.root,
		component: component,
	}
}

// With 返回附加字段的子日志器
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		root:      l.root,
		component: l.component,
	}
}

// Component 组件名
func (l *Logger) Component() string {
	return l.component
}

var std = New(Config{})

// SetDefault 设置全局日志器，同时替换 slog 默认实例
func SetDefault(l *Logger) {
	std = l
	slog.SetDefault(l.Logger)
}

// Default 全局日志器
func Default() *Logger {
	return std
}

// Named 从全局日志器派生组件日志器
func Named(component string) *Logger {
	return std.WithComponent(component)
}

// Discard 丢弃所有输出，测试用
func Discard() *Logger {
	return New(Config{Output: io.Discard})
}

type ctxKey struct{}

// IntoContext 把日志器放进 context
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext 取出 context 中的日志器，没有则返回全局日志器
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return std
}
