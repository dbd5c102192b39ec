package api

import (
	"testing"
	"time"

	"spendlens/config"
	"spendlens/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRange(t *testing.T) {
	now := time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name                             string
		rangeType, year, month, from, to string
		wantFrom, wantTo                 string
		wantErr                          bool
	}{
		{name: "default month", rangeType: "month", wantFrom: "2025-02-01", wantTo: "2025-02-28"},
		{name: "leap february", rangeType: "month", year: "2024", month: "2", wantFrom: "2024-02-01", wantTo: "2024-02-29"},
		{name: "december", rangeType: "month", year: "2024", month: "12", wantFrom: "2024-12-01", wantTo: "2024-12-31"},
		{name: "year", rangeType: "year", year: "2023", wantFrom: "2023-01-01", wantTo: "2023-12-31"},
		{name: "custom", rangeType: "custom", from: "01-03-2025", to: "March 31, 2025", wantFrom: "2025-03-01", wantTo: "2025-03-31"},
		{name: "custom reversed", rangeType: "custom", from: "2025-04-01", to: "2025-03-01", wantErr: true},
		{name: "custom missing", rangeType: "custom", wantErr: true},
		{name: "bad month", rangeType: "month", month: "13", wantErr: true},
		{name: "bad year", rangeType: "year", year: "abc", wantErr: true},
		{name: "unknown type", rangeType: "week", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := resolveRange(tt.rangeType, tt.year, tt.month, tt.from, tt.to, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestBuildSummary(t *testing.T) {
	byCategory := []groupRow{
		{Key: "food", Total: decimal.NewFromInt(300), Count: 2},
		{Key: "travel", Total: decimal.NewFromInt(100), Count: 1},
	}
	byPayment := []groupRow{
		{Key: "bank", Total: decimal.NewFromInt(100), Count: 1},
		{Key: "cash", Total: decimal.NewFromInt(300), Count: 2},
	}
	byDay := []groupRow{
		{Key: "2025-03-20", Total: decimal.NewFromInt(250), Count: 1},
		{Key: "2025-03-02", Total: decimal.NewFromInt(150), Count: 2},
	}
	budgets := []models.Budget{{Category: "food", Amount: decimal.NewFromInt(500)}}

	s := buildSummary("2025-03-01", "2025-03-31", byCategory, byPayment, byDay, budgets)

	assert.True(t, s.Total.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, int64(3), s.Count)
	// 五个规范类别加一个透传类别
	require.Len(t, s.ByCategory, len(models.CategoryNames())+1)

	food := s.ByCategory[0]
	assert.Equal(t, "food", food.Category)
	assert.Equal(t, 75.0, food.Percentage)
	assert.True(t, food.Remaining.Equal(decimal.NewFromInt(200)))

	last := s.ByCategory[len(s.ByCategory)-1]
	assert.Equal(t, "travel", last.Category)
	assert.Equal(t, 25.0, last.Percentage)

	assert.Equal(t, "cash", s.ByPaymentMethod[0].Key)
	assert.Equal(t, "2025-03-02", s.ByDay[0].Key)
}

func TestSummaryHandler(t *testing.T) {
	testConfig()
	defer func() { config.GlobalConfig = nil }()
	db, cleanup := setupTestDB(t)
	defer cleanup()
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")

	for _, e := range []models.Expense{
		{UserID: "u1", Amount: decimal.RequireFromString("250"), Currency: "INR", Category: "food", Date: "2025-03-20", PaymentMethod: "cash"},
		{UserID: "u1", Amount: decimal.RequireFromString("750"), Currency: "INR", Category: "housing", Date: "2025-03-01", PaymentMethod: "bank"},
		{UserID: "u1", Amount: decimal.RequireFromString("99"), Currency: "INR", Category: "food", Date: "2025-04-01", PaymentMethod: "cash"},
		{UserID: "u2", Amount: decimal.RequireFromString("5000"), Currency: "INR", Category: "food", Date: "2025-03-05", PaymentMethod: "cash"},
	} {
		e := e
		require.NoError(t, db.Create(&e).Error)
	}

	h := NewSummaryHandler()
	h.now = func() time.Time { return time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC) }
	router := gin.New()
	router.Use(setUserIDMiddleware("u1"))
	router.GET("/summary", h.Summary)

	w := doJSON(router, "GET", "/summary", "", "")
	require.Equal(t, 200, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "2025-03-01", data["from"])
	assert.Equal(t, "2025-03-31", data["to"])
	assert.Equal(t, "1000", data["total"])
	assert.Equal(t, float64(2), data["count"])

	cats := data["by_category"].([]interface{})
	food := cats[0].(map[string]interface{})
	assert.Equal(t, "food", food["category"])
	assert.Equal(t, "250", food["total"])
	assert.Equal(t, 25.0, food["percentage"])
	assert.Equal(t, "5000", food["budget"])

	days := data["by_day"].([]interface{})
	require.Len(t, days, 2)
	assert.Equal(t, "2025-03-01", days[0].(map[string]interface{})["key"])

	w = doJSON(router, "GET", "/summary?range_type=custom&from=bad", "", "")
	assert.Equal(t, 400, w.Code)
}
