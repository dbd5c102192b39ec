package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"spendlens/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatModel_Complete(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"amount\":250}"}}]}`))
	}))
	defer srv.Close()

	m := NewChatModel(&config.AIConfig{BaseURL: srv.URL + "/v1/", APIKey: "secret", Model: "test-model", Temperature: 0.1})
	out, err := m.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"amount":250}`, out)
	assert.Equal(t, "test-model", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0]["content"])
}

func TestChatModel_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`quota exceeded`))
	}))
	defer srv.Close()

	m := NewChatModel(&config.AIConfig{BaseURL: srv.URL})
	_, err := m.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestChatModel_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	m := NewChatModel(&config.AIConfig{BaseURL: srv.URL})
	_, err := m.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestChatModel_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	defer srv.Close()

	m := NewChatModel(&config.AIConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := m.Complete(context.Background(), "hi")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))

	// 不切断多字节字符
	assert.Equal(t, "错...", truncate("错误信息", 4))
	assert.Equal(t, "a...", truncate("a错误", 3))
	assert.True(t, utf8.ValidString(truncate("服务暂时不可用", 8)))
}
