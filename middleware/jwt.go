package middleware

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"spendlens/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// ContextUserID gin 上下文中的当前用户 ID
	ContextUserID = "userID"
	// ContextEmail gin 上下文中的当前用户邮箱
	ContextEmail = "email"
	// ContextClaims gin 上下文中的完整 claims
	ContextClaims = "claims"
)

var (
	jwtSecret []byte

	// ErrTokenRevoked token 已注销
	ErrTokenRevoked = errors.New("token has been revoked")

	revoked = newRevocationList()
)

// Claims JWT 声明，Subject 为用户 ID
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// InitJWT 初始化 JWT 密钥
func InitJWT(cfg *config.Config) {
	jwtSecret = []byte(cfg.JWT.Secret)
}

// GenerateToken 生成访问 token，每个 token 带唯一 jti 以便注销
func GenerateToken(userID, email string, ttl time.Duration) (string, error) {
	tokenString, _, err := GenerateTokenWithClaims(userID, email, ttl)
	return tokenString, err
}

// GenerateTokenWithClaims 生成 token 并返回其 claims
func GenerateTokenWithClaims(userID, email string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "spendlens",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", nil, err
	}
	return s, claims, nil
}

// ParseToken 解析并校验 token，已注销的 token 返回 ErrTokenRevoked
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if revoked.contains(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// RevokeToken 注销 token，记录保留到 token 原本的过期时间
func RevokeToken(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	exp := time.Now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	revoked.add(claims.ID, exp)
}

// BearerToken 从 Authorization 头提取 Bearer token
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// JWTAuth JWT 认证中间件
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := BearerToken(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed Authorization header")
			return
		}

		claims, err := ParseToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
	c.Abort()
}

// GetCurrentUserID 获取当前用户 ID，未认证时为空串
func GetCurrentUserID(c *gin.Context) string {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetCurrentClaims 获取当前 token 的 claims
func GetCurrentClaims(c *gin.Context) *Claims {
	if v, ok := c.Get(ContextClaims); ok {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// revocationList 已注销 jti 列表，过期条目定期清理
type revocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	started sync.Once
}

func newRevocationList() *revocationList {
	return &revocationList{entries: make(map[string]time.Time)}
}

func (r *revocationList) add(jti string, exp time.Time) {
	r.started.Do(func() { go r.cleanupLoop(time.Minute) })
	r.mu.Lock()
	r.entries[jti] = exp
	r.mu.Unlock()
}

func (r *revocationList) contains(jti string) bool {
	if jti == "" {
		return false
	}
	r.mu.RLock()
	exp, ok := r.entries[jti]
	r.mu.RUnlock()
	return ok && time.Now().Before(exp)
}

func (r *revocationList) cleanup(now time.Time) {
	r.mu.Lock()
	for jti, exp := range r.entries {
		if !now.Before(exp) {
			delete(r.entries, jti)
		}
	}
	r.mu.Unlock()
}

func (r *revocationList) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for now := range ticker.C {
		r.cleanup(now)
	}
}
