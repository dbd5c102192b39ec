package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"spendlens/database"
	"spendlens/middleware"
	"spendlens/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
type ExportHandler struct{}

// NewExportHandler 创建导出处理器
func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

var exportHeaders = []string{"ID", "Date", "Amount", "Currency", "Category", "Payment Method", "Note", "Created At"}

func exportRow(e models.Expense) []string {
	return []string{
		e.ID,
		e.Date,
		e.Amount.StringFixed(2),
		e.Currency,
		e.Category,
		e.PaymentMethod,
		e.Note,
		e.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// loadExpenses 按 from/to（可选，YYYY-MM-DD）查询当前用户的消费记录
func (h *ExportHandler) loadExpenses(c *gin.Context) ([]models.Expense, bool) {
	from, to := c.Query("from"), c.Query("to")
	if (from != "" && !isISODate(from)) || (to != "" && !isISODate(to)) {
		BadRequest(c, "from/to must be YYYY-MM-DD")
		return nil, false
	}

	var expenses []models.Expense
	if err := expenseScope(database.DB.WithContext(c.Request.Context()), middleware.GetCurrentUserID(c), c.Query("category"), from, to).
		Order("date DESC, created_at DESC").
		Find(&expenses).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return nil, false
	}
	return expenses, true
}

func exportFilename(c *gin.Context, ext string) string {
	from, to := c.Query("from"), c.Query("to")
	if from == "" {
		from = "all"
	}
	if to == "" {
		to = "now"
	}
	return fmt.Sprintf("expenses_%s_%s.%s", from, to, ext)
}

// ExportCSV 导出消费记录为 CSV
// @Summary 导出 CSV
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param from query string false "开始日期 (YYYY-MM-DD)"
// @Param to query string false "结束日期 (YYYY-MM-DD)"
// @Param category query string false "类别"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	expenses, ok := h.loadExpenses(c)
	if !ok {
		return
	}

	buf := new(bytes.Buffer)
	// BOM，Excel 打开时按 UTF-8 识别
	buf.WriteString("\xEF\xBB\xBF")
	writer := csv.NewWriter(buf)

	if err := writer.Write(exportHeaders); err != nil {
		InternalError(c, "failed to build CSV")
		return
	}
	for _, e := range expenses {
		if err := writer.Write(exportRow(e)); err != nil {
			InternalError(c, "failed to build CSV")
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "failed to build CSV")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(c, "csv")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportXLSX 导出消费记录为 Excel
// @Summary 导出 Excel
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param from query string false "开始日期 (YYYY-MM-DD)"
// @Param to query string false "结束日期 (YYYY-MM-DD)"
// @Param category query string false "类别"
// @Success 200 {file} file "xlsx 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/export/xlsx [get]
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	expenses, ok := h.loadExpenses(c)
	if !ok {
		return
	}

	buf, err := buildWorkbook(expenses)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to build workbook"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(c, "xlsx")))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// buildWorkbook 生成单 sheet 工作簿，金额列写数值，末尾附合计行
func buildWorkbook(expenses []models.Expense) (*bytes.Buffer, error) {
	const sheet = "Expenses"

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border: border,
	})

	f.SetColWidth(sheet, "A", "A", 38)
	f.SetColWidth(sheet, "B", "F", 14)
	f.SetColWidth(sheet, "G", "G", 30)
	f.SetColWidth(sheet, "H", "H", 20)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	total := decimal.Zero
	for r, e := range expenses {
		for i, v := range exportRow(e) {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			var val interface{} = v
			if i == 2 {
				val = e.Amount.InexactFloat64()
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
		total = total.Add(e.Amount)
	}

	summaryRow := len(expenses) + 2
	first, _ := excelize.CoordinatesToCellName(1, summaryRow)
	amountCell, _ := excelize.CoordinatesToCellName(3, summaryRow)
	countCell, _ := excelize.CoordinatesToCellName(4, summaryRow)
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), summaryRow)
	f.SetCellValue(sheet, first, "Total")
	f.SetCellValue(sheet, amountCell, total.InexactFloat64())
	f.SetCellValue(sheet, countCell, fmt.Sprintf("%d records", len(expenses)))
	f.SetCellStyle(sheet, first, last, summaryStyle)

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

func isISODate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
