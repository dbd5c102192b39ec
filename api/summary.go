package api

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"spendlens/database"
	"spendlens/extraction"
	"spendlens/middleware"
	"spendlens/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// SummaryHandler 图表统计
type SummaryHandler struct {
	now func() time.Time
}

// NewSummaryHandler 创建统计处理器
func NewSummaryHandler() *SummaryHandler {
	return &SummaryHandler{now: time.Now}
}

// CategoryTotal 按类别汇总
type CategoryTotal struct {
	Category   string          `json:"category" example:"food"`
	Label      string          `json:"label" example:"Food"`
	Color      string          `json:"color" example:"#ef4444"`
	Total      decimal.Decimal `json:"total" swaggertype:"string" example:"250"`
	Count      int64           `json:"count" example:"1"`
	Percentage float64         `json:"percentage" example:"100"`
	Budget     decimal.Decimal `json:"budget" swaggertype:"string" example:"5000"`
	Remaining  decimal.Decimal `json:"remaining" swaggertype:"string" example:"4750"`
}

// GroupTotal 按某字段汇总
type GroupTotal struct {
	Key   string          `json:"key" example:"cash"`
	Total decimal.Decimal `json:"total" swaggertype:"string" example:"250"`
	Count int64           `json:"count" example:"1"`
}

// SummaryResponse 统计结果
type SummaryResponse struct {
	From            string          `json:"from" example:"2025-03-01"`
	To              string          `json:"to" example:"2025-03-31"`
	Total           decimal.Decimal `json:"total" swaggertype:"string" example:"250"`
	Count           int64           `json:"count" example:"1"`
	ByCategory      []CategoryTotal `json:"by_category"`
	ByPaymentMethod []GroupTotal    `json:"by_payment_method"`
	ByDay           []GroupTotal    `json:"by_day"`
}

type groupRow struct {
	Key   string
	Total decimal.Decimal
	Count int64
}

// Summary 统计当前用户在时间范围内的消费
// @Summary 消费统计
// @Description range_type=month 时使用 year、month；year 时使用 year；custom 时使用 from、to。默认本月。
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param range_type query string false "month | year | custom" default(month)
// @Param year query int false "年份"
// @Param month query int false "月份 1-12"
// @Param from query string false "开始日期"
// @Param to query string false "结束日期"
// @Success 200 {object} Response{data=SummaryResponse} "获取成功"
// @Failure 400 {object} Response "时间范围错误"
// @Router /api/v1/summary [get]
func (h *SummaryHandler) Summary(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	from, to, err := resolveRange(c.DefaultQuery("range_type", "month"), c.Query("year"), c.Query("month"), c.Query("from"), c.Query("to"), h.now())
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	var (
		byCategory []groupRow
		byPayment  []groupRow
		byDay      []groupRow
		budgets    []models.Budget
	)

	g, ctx := errgroup.WithContext(c.Request.Context())
	group := func(column string, dest *[]groupRow) func() error {
		return func() error {
			return expenseScope(database.DB.WithContext(ctx), userID, "", from, to).
				Select(column + " AS `key`, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
				Group(column).
				Scan(dest).Error
		}
	}
	g.Go(group("category", &byCategory))
	g.Go(group("payment_method", &byPayment))
	g.Go(group("date", &byDay))
	g.Go(func() error {
		return database.DB.WithContext(ctx).Find(&budgets).Error
	})
	if err := g.Wait(); err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to build summary"))
		return
	}

	Success(c, buildSummary(from, to, byCategory, byPayment, byDay, budgets))
}

// buildSummary 合并各项汇总；规范类别即使没有消费也会出现，便于图表与预算对比
func buildSummary(from, to string, byCategory, byPayment, byDay []groupRow, budgets []models.Budget) SummaryResponse {
	resp := SummaryResponse{From: from, To: to, Total: decimal.Zero}

	for _, r := range byCategory {
		resp.Total = resp.Total.Add(r.Total)
		resp.Count += r.Count
	}

	budgetOf := make(map[string]decimal.Decimal, len(budgets))
	for _, b := range budgets {
		budgetOf[b.Category] = b.Amount
	}
	spent := make(map[string]groupRow, len(byCategory))
	for _, r := range byCategory {
		spent[r.Key] = r
	}

	add := func(name, label, color string) {
		r := spent[name]
		total := r.Total
		ct := CategoryTotal{
			Category:  name,
			Label:     label,
			Color:     color,
			Total:     total,
			Count:     r.Count,
			Budget:    budgetOf[name],
			Remaining: budgetOf[name].Sub(total),
		}
		if resp.Total.IsPositive() {
			ct.Percentage = total.Div(resp.Total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		}
		resp.ByCategory = append(resp.ByCategory, ct)
	}
	for _, info := range models.GetCategories() {
		add(info.Name, info.Label, info.Color)
		delete(spent, info.Name)
	}
	// 抽取链路透传的非规范类别
	var extra []string
	for name := range spent {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		add(name, name, "#9ca3af")
	}

	resp.ByPaymentMethod = toGroupTotals(byPayment)
	sort.Slice(resp.ByPaymentMethod, func(i, j int) bool {
		return resp.ByPaymentMethod[i].Total.GreaterThan(resp.ByPaymentMethod[j].Total)
	})
	resp.ByDay = toGroupTotals(byDay)
	sort.Slice(resp.ByDay, func(i, j int) bool { return resp.ByDay[i].Key < resp.ByDay[j].Key })
	return resp
}

func toGroupTotals(rows []groupRow) []GroupTotal {
	out := make([]GroupTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, GroupTotal{Key: r.Key, Total: r.Total, Count: r.Count})
	}
	return out
}

// resolveRange 把查询参数解析为闭区间 [from, to]（YYYY-MM-DD）
func resolveRange(rangeType, yearStr, monthStr, fromStr, toStr string, now time.Time) (string, string, error) {
	const layout = "2006-01-02"

	year := now.Year()
	if yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil || y < 1900 || y > 9999 {
			return "", "", fmt.Errorf("invalid year %q", yearStr)
		}
		year = y
	}

	switch rangeType {
	case "month":
		month := int(now.Month())
		if monthStr != "" {
			m, err := strconv.Atoi(monthStr)
			if err != nil || m < 1 || m > 12 {
				return "", "", fmt.Errorf("invalid month %q", monthStr)
			}
			month = m
		}
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return start.Format(layout), start.AddDate(0, 1, -1).Format(layout), nil
	case "year":
		return fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year), nil
	case "custom":
		from, err := extraction.ParseFlexibleDate(fromStr)
		if err != nil {
			return "", "", fmt.Errorf("invalid from date %q", fromStr)
		}
		to, err := extraction.ParseFlexibleDate(toStr)
		if err != nil {
			return "", "", fmt.Errorf("invalid to date %q", toStr)
		}
		if from > to {
			return "", "", fmt.Errorf("from must not be after to")
		}
		return from, to, nil
	default:
		return "", "", fmt.Errorf("range_type must be month, year or custom")
	}
}
