package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendlens/config"
	"spendlens/events"
	"spendlens/logger"
	"spendlens/middleware"
	"spendlens/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newPasswordRouter(cfg *config.Config, hub *events.Hub, mailer *fakeMailer) *gin.Engine {
	h := NewPasswordResetHandler(cfg, hub)
	h.mailer = mailer
	h.log = logger.Discard()

	router := gin.New()
	router.POST("/api/auth/reset-password", h.ResetPassword)
	router.POST("/api/auth/update-password", h.UpdatePassword)
	return router
}

func createConfirmedUser(t *testing.T, db *gorm.DB, email, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{Email: email, Password: string(hash), Confirmed: true}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestResetPassword_DefaultRedirectUsesBaseURL(t *testing.T) {
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()
	db, cleanup := setupTestDB(t)
	defer cleanup()
	createConfirmedUser(t, db, "ana@example.com", "oldpassword")

	mailer := newFakeMailer()
	router := newPasswordRouter(cfg, nil, mailer)

	// Host 与 X-Forwarded-* 都不参与链接生成
	req := httptest.NewRequest("POST", "/api/auth/reset-password", strings.NewReader(`{"email":"ana@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "attacker.test"
	req.Header.Set("X-Forwarded-Host", "attacker.test")
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	assert.Equal(t, resetSentReply, resp["message"])
	assert.Contains(t, resp, "data")
	assert.True(t, strings.HasPrefix(mailer.links["ana@example.com"], "https://app.example.com/update-password?token="))
	assert.NotContains(t, mailer.links["ana@example.com"], "attacker.test")

	var reset models.PasswordReset
	require.NoError(t, db.Where("email = ?", "ana@example.com").First(&reset).Error)
	assert.Len(t, reset.Token, 64)
	assert.True(t, reset.IsValid())
	assert.Equal(t, "https://app.example.com/update-password", reset.Redirect)
}

func TestResetPassword_RejectsForeignRedirect(t *testing.T) {
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()
	db, cleanup := setupTestDB(t)
	defer cleanup()
	createConfirmedUser(t, db, "ana@example.com", "oldpassword")

	mailer := newFakeMailer()
	router := newPasswordRouter(cfg, nil, mailer)

	for _, redirect := range []string{
		"https://attacker.test/x",
		"http://x.test/cb",
		"https://x.test.attacker.test/cb",
		"https://user@x.test/cb",
		"javascript:alert(1)",
		"//x.test/cb",
	} {
		body := `{"email":"ana@example.com","redirectUrl":"` + redirect + `"}`
		w := doJSON(router, "POST", "/api/auth/reset-password", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, redirect)
		assert.Equal(t, "redirectUrl is not allowed", decodeBody(t, w)["error"], redirect)
	}

	assert.Empty(t, mailer.links)
	var count int64
	require.NoError(t, db.Model(&models.PasswordReset{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestResetPassword_ExplicitRedirectAndUnknownEmail(t *testing.T) {
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()
	db, cleanup := setupTestDB(t)
	defer cleanup()
	createConfirmedUser(t, db, "ana@example.com", "oldpassword")

	mailer := newFakeMailer()
	router := newPasswordRouter(cfg, nil, mailer)

	w := doJSON(router, "POST", "/api/auth/reset-password", `{"email":"ana@example.com","redirectUrl":"https://x.test/cb?lang=en"}`, "")
	require.Equal(t, 200, w.Code)
	assert.True(t, strings.HasPrefix(mailer.links["ana@example.com"], "https://x.test/cb?lang=en&token="))

	// 未注册邮箱返回同样的成功信息，不发邮件
	w = doJSON(router, "POST", "/api/auth/reset-password", `{"email":"ghost@example.com"}`, "")
	require.Equal(t, 200, w.Code)
	assert.Equal(t, resetSentReply, decodeBody(t, w)["message"])
	assert.NotContains(t, mailer.links, "ghost@example.com")
}

func TestResetPassword_InvalidEmail(t *testing.T) {
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()

	router := newPasswordRouter(cfg, nil, newFakeMailer())
	w := doJSON(router, "POST", "/api/auth/reset-password", `{"email":"nope"}`, "")
	assert.Equal(t, 400, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["error"])
}

func TestUpdatePassword_WithRecoveryToken(t *testing.T) {
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := createConfirmedUser(t, db, "ana@example.com", "oldpassword")

	hub := events.NewHub(4)
	ch, cancel := hub.Subscribe(events.Filter{Table: events.TableAuth})
	defer cancel()

	mailer := newFakeMailer()
	router := newPasswordRouter(cfg, hub, mailer)
	require.Equal(t, 200, doJSON(router, "POST", "/api/auth/reset-password", `{"email":"ana@example.com"}`, "").Code)
	link := mailer.links["ana@example.com"]
	token := link[strings.Index(link, "token=")+len("token="):]

	w := doJSON(router, "POST", "/api/auth/update-password", `{"password":"brandnew1"}`, token)
	require.Equal(t, 200, w.Code, w.Body.String())
	assert.Equal(t, "Password updated successfully", decodeBody(t, w)["message"])

	var updated models.User
	require.NoError(t, db.First(&updated, "id = ?", user.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.Password), []byte("brandnew1")))

	select {
	case e := <-ch:
		assert.Equal(t, events.AuthUserUpdated, e.Type)
		assert.Equal(t, user.ID, e.UserID)
	case <-time.After(time.Second):
		t.Fatal("expected USER_UPDATED event")
	}

	// 重置令牌只能用一次
	w = doJSON(router, "POST", "/api/auth/update-password", `{"password":"another1"}`, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdatePassword_WithSessionToken(t *testing.T) {
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := createConfirmedUser(t, db, "ana@example.com", "oldpassword")

	token, err := middleware.GenerateToken(user.ID, user.Email, time.Hour)
	require.NoError(t, err)

	router := newPasswordRouter(cfg, nil, newFakeMailer())

	// 密码太短
	w := doJSON(router, "POST", "/api/auth/update-password", `{"password":"123"}`, token)
	assert.Equal(t, 400, w.Code)

	w = doJSON(router, "POST", "/api/auth/update-password", `{"password":"brandnew1"}`, token)
	require.Equal(t, 200, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, user.ID, data["user"].(map[string]interface{})["id"])
}

func TestUpdatePassword_RequiresToken(t *testing.T) {
	cfg := testConfig()
	defer func() { config.GlobalConfig = nil }()
	_, cleanup := setupTestDB(t)
	defer cleanup()

	router := newPasswordRouter(cfg, nil, newFakeMailer())

	w := doJSON(router, "POST", "/api/auth/update-password", `{"password":"brandnew1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication required", decodeBody(t, w)["error"])

	w = doJSON(router, "POST", "/api/auth/update-password", `{"password":"brandnew1"}`, "bogus-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResetLink(t *testing.T) {
	assert.Equal(t, "https://a.test/update-password?token=t", resetLink("https://a.test/update-password", "t"))
	assert.Equal(t, "https://a.test/x?y=1&token=t", resetLink("https://a.test/x?y=1", "t"))
}
