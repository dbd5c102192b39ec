package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spendlens/config"
	"spendlens/database"
	"spendlens/events"
	"spendlens/logger"
	"spendlens/middleware"
	"spendlens/models"
	"spendlens/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	resetTokenTTL  = 30 * time.Minute
	resetSentReply = "If an account exists for this email, a password reset link has been sent"
)

var (
	errAuthRequired       = errors.New("authentication required")
	errRedirectNotAllowed = errors.New("redirectUrl is not allowed")
)

// PasswordResetHandler 找回密码与修改密码
// 两个接口返回 {message, data} 或 {error}
type PasswordResetHandler struct {
	cfg    *config.Config
	mailer service.Mailer
	hub    *events.Hub
	log    *logger.Logger
}

// NewPasswordResetHandler 创建密码重置处理器
func NewPasswordResetHandler(cfg *config.Config, hub *events.Hub) *PasswordResetHandler {
	return &PasswordResetHandler{
		cfg:    cfg,
		mailer: service.NewEmailService(&cfg.Email),
		hub:    hub,
		log:    logger.Named("password"),
	}
}

// ResetPasswordRequest 请求重置密码
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email" example:"ana@example.com"`
	RedirectURL string `json:"redirectUrl" example:"https://app.example.com/update-password"`
}

// UpdatePasswordRequest 修改密码请求
type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=6,max=72" example:"newpassword"`
}

// ResetPassword 发送密码重置邮件
// @Summary 请求密码重置
// @Description 向邮箱发送带令牌的重置链接。redirectUrl 缺省为 server.base_url + /update-password，给出时其 scheme://host 必须是 base_url 或 server.allowed_redirects 之一。未注册的邮箱同样返回成功。
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "邮箱和回跳地址"
// @Success 200 {object} MessageResponse "已发送"
// @Failure 400 {object} ErrorResponse "参数错误或回跳地址不在允许列表"
// @Failure 500 {object} ErrorResponse "邮件发送失败"
// @Router /api/auth/reset-password [post]
func (h *PasswordResetHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "a valid email is required"})
		return
	}
	email := models.NormalizeEmail(req.Email)

	redirect, err := h.resolveRedirect(strings.TrimSpace(req.RedirectURL))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.log.Error("lookup user for reset failed", "error", err)
		}
		c.JSON(http.StatusOK, MessageResponse{Message: resetSentReply, Data: gin.H{}})
		return
	}

	token, err := models.GenerateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create reset token"})
		return
	}
	reset := models.PasswordReset{
		UserID:    user.ID,
		Token:     token,
		Email:     email,
		Redirect:  redirect,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := database.DB.Create(&reset).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: SafeErrorMessage(err, "failed to create reset token")})
		return
	}

	link := resetLink(redirect, token)
	if !h.cfg.Email.Enabled && h.cfg.Server.Mode != "release" {
		h.log.Warn("email disabled, reset link logged instead", "email", email, "link", link)
	} else if err := h.mailer.SendPasswordResetEmail(email, link); err != nil {
		database.DB.Delete(&reset)
		h.log.Error("send reset email failed", "email", email, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: SafeErrorMessage(err, "failed to send reset email")})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: resetSentReply, Data: gin.H{}})
}

// UpdatePassword 修改密码
// @Summary 修改密码
// @Description Authorization 需携带会话 token 或邮件中的重置令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer <token>"
// @Param request body UpdatePasswordRequest true "新密码"
// @Success 200 {object} MessageResponse{data=models.User} "修改成功"
// @Failure 400 {object} ErrorResponse "参数错误"
// @Failure 401 {object} ErrorResponse "未授权"
// @Router /api/auth/update-password [post]
func (h *PasswordResetHandler) UpdatePassword(c *gin.Context) {
	userID, reset, err := h.resolveBearer(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "password must be at least 6 characters"})
		return
	}

	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to hash password"})
		return
	}

	err = database.Transaction(database.DB, func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", string(hashed)).Error; err != nil {
			return err
		}
		if reset != nil {
			return tx.Model(reset).Update("used", true).Error
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: SafeErrorMessage(err, "failed to update password")})
		return
	}

	if h.hub != nil {
		h.hub.Publish(events.Event{Table: events.TableAuth, Type: events.AuthUserUpdated, RecordID: user.ID, UserID: user.ID})
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password updated successfully", Data: gin.H{"user": user}})
}

// resolveBearer 依次尝试会话 token 和重置令牌
func (h *PasswordResetHandler) resolveBearer(c *gin.Context) (string, *models.PasswordReset, error) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		return "", nil, errAuthRequired
	}
	if claims, err := middleware.ParseToken(token); err == nil {
		return claims.UserID, nil, nil
	}

	var reset models.PasswordReset
	if err := database.DB.Where("token = ?", token).First(&reset).Error; err != nil {
		return "", nil, errAuthRequired
	}
	if !reset.IsValid() {
		return "", nil, errAuthRequired
	}
	return reset.UserID, &reset, nil
}

// resolveRedirect 确定重置链接的落地页，只接受 base_url 或 allowed_redirects 中的来源
// 不信任请求头中的 Host / X-Forwarded-*
func (h *PasswordResetHandler) resolveRedirect(raw string) (string, error) {
	base := strings.TrimRight(h.cfg.Server.BaseURL, "/")
	if raw == "" {
		if _, ok := originOf(base); !ok {
			return "", errRedirectNotAllowed
		}
		return base + "/update-password", nil
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.User != nil {
		return "", errRedirectNotAllowed
	}
	origin := u.Scheme + "://" + strings.ToLower(u.Host)

	allowed := append([]string{base}, h.cfg.Server.AllowedRedirects...)
	for _, a := range allowed {
		if o, ok := originOf(a); ok && o == origin {
			return raw, nil
		}
	}
	return "", errRedirectNotAllowed
}

// originOf 取 scheme://host，小写
func originOf(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.Scheme + "://" + strings.ToLower(u.Host), true
}

func resetLink(redirect, token string) string {
	sep := "?"
	if strings.Contains(redirect, "?") {
		sep = "&"
	}
	return redirect + sep + "token=" + token
}
