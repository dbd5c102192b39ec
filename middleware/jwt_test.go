package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spendlens/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initJWTTestConfig() {
	config.GlobalConfig = &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		JWT:    config.JWTConfig{Secret: "test-jwt-secret-key"},
	}
}

func TestGenerateToken(t *testing.T) {
	initJWTTestConfig()
	defer func() { config.GlobalConfig = nil }()

	InitJWT(config.GlobalConfig)

	token, err := GenerateToken("u1", "ana@example.com", 24*time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Greater(t, len(token), 20)

	// 可解析
	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestParseToken(t *testing.T) {
	initJWTTestConfig()
	defer func() { config.GlobalConfig = nil }()

	InitJWT(config.GlobalConfig)

	// 合法 token
	token, _ := GenerateToken("u100", "admin@example.com", time.Hour)
	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u100", claims.UserID)

	// 空字符串
	_, err = ParseToken("")
	assert.Error(t, err)

	// 无效格式
	_, err = ParseToken("not.a.valid.jwt")
	assert.Error(t, err)
	_, err = ParseToken("eyJhbGciOiJmb29iIn0.xxxx.yyyy")
	assert.Error(t, err)

	// 过期
	expired, _ := GenerateToken("u1", "a@example.com", -time.Minute)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	// 其他密钥签发
	jwtSecret = []byte("another-secret")
	foreign, _ := GenerateToken("u1", "a@example.com", time.Hour)
	InitJWT(config.GlobalConfig)
	_, err = ParseToken(foreign)
	assert.Error(t, err)
}

func TestRevokeToken(t *testing.T) {
	initJWTTestConfig()
	defer func() { config.GlobalConfig = nil }()
	InitJWT(config.GlobalConfig)

	token, claims, err := GenerateTokenWithClaims("u1", "a@example.com", time.Hour)
	require.NoError(t, err)

	RevokeToken(claims)
	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// 其他 token 不受影响
	other, _ := GenerateToken("u1", "a@example.com", time.Hour)
	_, err = ParseToken(other)
	assert.NoError(t, err)

	RevokeToken(nil)
}

func TestRevocationList_Cleanup(t *testing.T) {
	r := newRevocationList()
	r.entries["old"] = time.Now().Add(-time.Second)
	r.entries["fresh"] = time.Now().Add(time.Hour)

	assert.False(t, r.contains("old"))
	assert.True(t, r.contains("fresh"))
	assert.False(t, r.contains(""))

	r.cleanup(time.Now())
	assert.Len(t, r.entries, 1)
}

func TestJWTAuth(t *testing.T) {
	initJWTTestConfig()
	defer func() { config.GlobalConfig = nil }()

	InitJWT(config.GlobalConfig)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(JWTAuth())
	router.GET("/protected", func(c *gin.Context) {
		id := GetCurrentUserID(c)
		c.String(200, "id:%s", id)
	})

	// 无 token
	req := httptest.NewRequest("GET", "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "401")

	// 格式错误（非 Bearer）
	req2 := httptest.NewRequest("GET", "/protected", nil)
	req2.Header.Set("Authorization", "Basic xyz")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)

	// 格式错误（仅 Bearer 无 token）
	req3 := httptest.NewRequest("GET", "/protected", nil)
	req3.Header.Set("Authorization", "Bearer ")
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)

	// 有效 token
	token, _ := GenerateToken("u42", "user42@example.com", time.Hour)
	req4 := httptest.NewRequest("GET", "/protected", nil)
	req4.Header.Set("Authorization", "Bearer "+token)
	w4 := httptest.NewRecorder()
	router.ServeHTTP(w4, req4)
	assert.Equal(t, 200, w4.Code)
	assert.Equal(t, "id:u42", w4.Body.String())
}

func TestGetCurrentUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetCurrentUserID(c))
	assert.Nil(t, GetCurrentClaims(c))

	c.Set(ContextUserID, "u99")
	assert.Equal(t, "u99", GetCurrentUserID(c))
}
