package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeErrorMessage(t *testing.T) {
	fallback := "操作失败"
	testErr := errors.New("internal database error")

	// nil err 返回 fallback
	assert.Equal(t, fallback, SafeErrorMessage(nil, fallback))

	// release 模式返回 fallback，不暴露错误详情
	GlobalConfig = &Config{Server: ServerConfig{Mode: "release"}}
	defer func() { GlobalConfig = nil }()
	assert.Equal(t, fallback, SafeErrorMessage(testErr, fallback))

	// debug 模式返回 err.Error()
	GlobalConfig = &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))

	// GlobalConfig 为 nil 时返回 err.Error()（视为开发环境）
	GlobalConfig = nil
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg, err := LoadConfig("")
	assert.NoError(t, err)
	assert.Same(t, cfg, GlobalConfig)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Empty(t, cfg.Server.AllowedRedirects)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "receipts", cfg.Storage.Bucket)
	assert.Equal(t, int64(10), cfg.Storage.MaxUploadMB)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	defer func() { GlobalConfig = nil }()
	t.Setenv("SPENDLENS_AI_MODEL", "test-model")
	t.Setenv("SPENDLENS_DATABASE_DRIVER", "sqlite")

	cfg, err := LoadConfig("")
	assert.NoError(t, err)
	assert.Equal(t, "test-model", cfg.AI.Model)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{AI: AIConfig{TimeoutSeconds: 5}, Server: ServerConfig{Port: ":9090"}}
	cfg.applyDefaults()

	assert.Equal(t, "http://localhost:9090", cfg.Server.BaseURL)

	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, time.Duration(24)*time.Hour, cfg.JWT.ExpireTime)
}
