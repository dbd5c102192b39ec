package api

import (
	"errors"
	"strings"

	"spendlens/database"
	"spendlens/extraction"
	"spendlens/middleware"
	"spendlens/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseHandler 消费记录处理器
type ExpenseHandler struct{}

// NewExpenseHandler 创建消费记录处理器
func NewExpenseHandler() *ExpenseHandler {
	return &ExpenseHandler{}
}

// CreateExpenseRequest 表单记账请求
type CreateExpenseRequest struct {
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"250"`
	Currency      string          `json:"currency" binding:"required,min=3,max=10" example:"INR"`
	Category      string          `json:"category" binding:"required" example:"food"`
	Date          string          `json:"date" binding:"required" example:"20 March 2025"`
	PaymentMethod string          `json:"payment_method" binding:"required" example:"cash"`
	Note          string          `json:"note" binding:"max=255" example:"lunch"`
}

// ExpenseListRequest 消费记录列表请求
type ExpenseListRequest struct {
	Page     int    `form:"page" example:"1"`
	PageSize int    `form:"page_size" example:"10"`
	Category string `form:"category" example:"food"`
	From     string `form:"from" example:"2025-03-01"`
	To       string `form:"to" example:"2025-03-31"`
}

// Create 表单记账
// @Summary 创建消费记录
// @Description 类别必须是规范类别；日期支持 YYYY-MM-DD、DD-MM-YYYY 和带月份名的写法；支付方式必须在枚举内
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateExpenseRequest true "消费记录"
// @Success 200 {object} Response{data=models.Expense} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid expense"))
		return
	}
	if !req.Amount.IsPositive() {
		BadRequest(c, "amount must be greater than 0")
		return
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	if !models.IsCanonicalCategory(category) {
		BadRequest(c, "unknown category, expected one of: "+strings.Join(models.CategoryNames(), ", "))
		return
	}

	date, err := extraction.ParseFlexibleDate(req.Date)
	if err != nil {
		BadRequest(c, "unrecognized date, use YYYY-MM-DD")
		return
	}

	payment, err := extraction.NormalizePaymentMethod(req.PaymentMethod, extraction.FallbackReject)
	if err != nil {
		BadRequest(c, "unknown payment method, expected one of: "+strings.Join(models.GetPaymentMethods(), ", "))
		return
	}

	expense := models.Expense{
		UserID:        userID,
		Amount:        req.Amount.Round(2),
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
		Category:      category,
		Date:          date,
		PaymentMethod: payment,
		Note:          strings.TrimSpace(req.Note),
	}

	if err := database.DB.WithContext(c.Request.Context()).Create(&expense).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to create expense"))
		return
	}

	SuccessWithMessage(c, "created", expense)
}

// List 获取消费记录列表
// @Summary 获取消费记录列表
// @Description 获取当前用户的消费记录，支持分页、类别和日期范围筛选
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param category query string false "类别"
// @Param from query string false "开始日期 (YYYY-MM-DD)"
// @Param to query string false "结束日期 (YYYY-MM-DD)"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Expense}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ExpenseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid query"))
		return
	}

	// 默认分页参数
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	query := expenseScope(database.DB.WithContext(c.Request.Context()), userID, req.Category, req.From, req.To)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	var expenses []models.Expense
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("date DESC, created_at DESC").Offset(offset).Limit(req.PageSize).Find(&expenses).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		List:     expenses,
	})
}

// expenseScope 当前用户的消费记录查询，date 为 ISO 字符串可直接按字典序比较
func expenseScope(db *gorm.DB, userID, category, from, to string) *gorm.DB {
	query := db.Model(&models.Expense{}).Where("user_id = ?", userID)
	if category != "" {
		query = query.Where("category = ?", strings.ToLower(category))
	}
	if from != "" {
		query = query.Where("date >= ?", from)
	}
	if to != "" {
		query = query.Where("date <= ?", to)
	}
	return query
}

// Get 获取单条消费记录
// @Summary 获取单条消费记录
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param id path string true "消费记录ID"
// @Success 200 {object} Response{data=models.Expense} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var expense models.Expense
	err := database.DB.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&expense).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "expense not found")
		return
	}
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	Success(c, expense)
}
