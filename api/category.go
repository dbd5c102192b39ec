package api

import (
	"spendlens/models"

	"github.com/gin-gonic/gin"
)

// ListCategories 获取规范类别
// @Summary 获取消费类别
// @Description 表单使用的封闭类别列表，带展示名和颜色
// @Tags 消费记录
// @Produce json
// @Success 200 {object} Response{data=[]models.CategoryInfo} "获取成功"
// @Router /api/v1/categories [get]
func ListCategories(c *gin.Context) {
	Success(c, models.GetCategories())
}

// ListPaymentMethods 获取支付方式
// @Summary 获取支付方式
// @Tags 消费记录
// @Produce json
// @Success 200 {object} Response{data=[]string} "获取成功"
// @Router /api/v1/payment-methods [get]
func ListPaymentMethods(c *gin.Context) {
	Success(c, models.GetPaymentMethods())
}
