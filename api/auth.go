package api

import (
	"errors"
	"net/http"
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
	verificationTTL   = 10 * time.Minute
	verificationRetry = time.Minute
)

// AuthHandler 认证处理器
type AuthHandler struct {
	cfg    *config.Config
	mailer service.Mailer
	hub    *events.Hub
	log    *logger.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, hub *events.Hub) *AuthHandler {
	return &AuthHandler{
		cfg:    cfg,
		mailer: service.NewEmailService(&cfg.Email),
		hub:    hub,
		log:    logger.Named("auth"),
	}
}

// CredentialsRequest 注册/登录请求
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ana@example.com"`
	Password string `json:"password" binding:"required,min=6,max=72" example:"password123"`
}

// VerifyRequest 验证码校验请求
type VerifyRequest struct {
	Email string `json:"email" binding:"required,email" example:"ana@example.com"`
	Code  string `json:"code" binding:"required,len=6" example:"123456"`
	Type  string `json:"type" binding:"required,oneof=signup recovery" example:"signup"`
}

// SessionResponse 会话信息
type SessionResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type" example:"bearer"`
	ExpiresAt   int64       `json:"expires_at" example:"1742515200"`
	User        models.User `json:"user"`
}

// Signup 注册
// @Summary 注册
// @Description 创建未确认的账号并发送 6 位邮箱验证码，验证后才能登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "邮箱和密码"
// @Success 200 {object} Response{data=models.User} "验证码已发送"
// @Failure 400 {object} Response "参数错误或邮箱已注册"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "a valid email and a password of at least 6 characters are required"))
		return
	}
	email := models.NormalizeEmail(req.Email)

	var user models.User
	err := database.DB.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil && user.Confirmed:
		BadRequest(c, "email already registered")
		return
	case err == nil:
		// 未确认的账号重新注册：保留原密码，只重发验证码
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			InternalError(c, "failed to hash password")
			return
		}
		user = models.User{Email: email, Password: string(hashed)}
		if err := database.DB.Create(&user).Error; err != nil {
			InternalError(c, SafeErrorMessage(err, "failed to create account"))
			return
		}
	default:
		InternalError(c, SafeErrorMessage(err, "failed to create account"))
		return
	}

	if err := h.sendCode(email, models.VerificationSignup); err != nil {
		h.log.Error("send signup code failed", "email", email, "error", err)
		InternalError(c, SafeErrorMessage(err, "failed to send verification email"))
		return
	}

	SuccessWithMessage(c, "verification code sent, check your email", user)
}

// sendCode 生成并发送验证码，一分钟内不重复发送
func (h *AuthHandler) sendCode(email, purpose string) error {
	var existing models.EmailVerification
	err := database.DB.Where("email = ? AND type = ? AND used = ? AND expires_at > ?", email, purpose, false, time.Now()).
		Order("id DESC").First(&existing).Error
	if err == nil {
		if time.Since(existing.CreatedAt) < verificationRetry {
			return nil
		}
		database.DB.Model(&existing).Update("used", true)
	}

	code, err := models.GenerateVerificationCode()
	if err != nil {
		return err
	}
	verification := models.EmailVerification{
		Email:     email,
		Code:      code,
		Type:      purpose,
		ExpiresAt: time.Now().Add(verificationTTL),
	}
	if err := database.DB.Create(&verification).Error; err != nil {
		return err
	}

	// 开发环境未配置邮件时把验证码写进日志
	if !h.cfg.Email.Enabled && h.cfg.Server.Mode != "release" {
		h.log.Warn("email disabled, verification code logged instead", "email", email, "type", purpose, "code", code)
		return nil
	}
	if err := h.mailer.SendVerificationEmail(email, code, purpose); err != nil {
		database.DB.Delete(&verification)
		return err
	}
	return nil
}

// Verify 校验邮箱验证码
// @Summary 校验验证码
// @Description signup 类型确认账号，recovery 类型用于找回密码；两者都返回会话
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "验证码"
// @Success 200 {object} Response{data=SessionResponse} "验证成功"
// @Failure 400 {object} Response "验证码错误或已过期"
// @Router /api/v1/auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "email, code and type are required"))
		return
	}
	email := models.NormalizeEmail(req.Email)

	var verification models.EmailVerification
	if err := database.DB.Where("email = ? AND code = ? AND type = ?", email, req.Code, req.Type).
		Order("id DESC").First(&verification).Error; err != nil {
		BadRequest(c, "invalid verification code")
		return
	}
	if !verification.IsValid() {
		if verification.Used {
			BadRequest(c, "verification code already used")
		} else {
			BadRequest(c, "verification code expired, request a new one")
		}
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		BadRequest(c, "account not found")
		return
	}

	err := database.Transaction(database.DB, func(tx *gorm.DB) error {
		if err := tx.Model(&verification).Update("used", true).Error; err != nil {
			return err
		}
		if req.Type == models.VerificationSignup && !user.Confirmed {
			return tx.Model(&user).Update("confirmed", true).Error
		}
		return nil
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "verification failed"))
		return
	}

	if req.Type == models.VerificationRecovery {
		h.publishAuth(events.AuthPasswordRecovery, user.ID)
	}
	h.issueSession(c, user)
}

// Login 登录
// @Summary 登录
// @Description 邮箱密码登录，账号需已确认
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "邮箱和密码"
// @Success 200 {object} Response{data=SessionResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "邮箱或密码错误"
// @Failure 403 {object} Response "邮箱未确认"
// @Failure 429 {object} Response "尝试过于频繁"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "email and password are required"))
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", models.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		Unauthorized(c, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		Unauthorized(c, "invalid email or password")
		return
	}
	if !user.Confirmed {
		Error(c, http.StatusForbidden, "email not confirmed")
		return
	}

	h.publishAuth(events.AuthSignedIn, user.ID)
	h.issueSession(c, user)
}

// Logout 注销当前 token
// @Summary 注销
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "已注销"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetCurrentClaims(c)
	if claims == nil {
		Unauthorized(c, "not signed in")
		return
	}
	middleware.RevokeToken(claims)
	h.publishAuth(events.AuthSignedOut, claims.UserID)
	SuccessWithMessage(c, "signed out", nil)
}

// Session 当前登录用户
// @Summary 当前会话
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.User} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	var user models.User
	if err := database.DB.Where("id = ?", middleware.GetCurrentUserID(c)).First(&user).Error; err != nil {
		Unauthorized(c, "account not found")
		return
	}
	Success(c, user)
}

func (h *AuthHandler) issueSession(c *gin.Context, user models.User) {
	token, claims, err := middleware.GenerateTokenWithClaims(user.ID, user.Email, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "failed to issue session")
		return
	}
	Success(c, SessionResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Unix(),
		User:        user,
	})
}

func (h *AuthHandler) publishAuth(eventType, userID string) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(events.Event{Table: events.TableAuth, Type: eventType, RecordID: userID, UserID: userID})
}
