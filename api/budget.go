package api

import (
	"errors"
	"strconv"

	"spendlens/database"
	"spendlens/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetHandler 类别预算，预算表为全局共享
type BudgetHandler struct{}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler() *BudgetHandler {
	return &BudgetHandler{}
}

// UpdateBudgetRequest 更新预算请求
type UpdateBudgetRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"6000"`
}

// List 获取全部预算分配
// @Summary 预算列表
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Budget} "获取成功"
// @Router /api/v1/budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	var budgets []models.Budget
	if err := database.DB.WithContext(c.Request.Context()).Order("id ASC").Find(&budgets).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	Success(c, budgets)
}

// Update 修改预算金额
// 预算表按类别全局共享，没有所属用户，任一登录用户的修改对所有用户生效
// @Summary 修改预算
// @Description 预算按类别全局共享，修改对所有用户生效
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body UpdateBudgetRequest true "新的金额"
// @Success 200 {object} Response{data=models.Budget} "修改成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 404 {object} Response "不存在"
// @Router /api/v1/budgets/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid id")
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "amount is required"))
		return
	}
	if req.Amount.IsNegative() {
		BadRequest(c, "amount must not be negative")
		return
	}

	db := database.DB.WithContext(c.Request.Context())
	var budget models.Budget
	if err := db.First(&budget, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "budget not found")
			return
		}
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}

	if err := db.Model(&budget).Update("amount", req.Amount.Round(2)).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to update budget"))
		return
	}

	SuccessWithMessage(c, "updated", budget)
}
