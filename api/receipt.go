package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"spendlens/config"
	"spendlens/database"
	"spendlens/logger"
	"spendlens/middleware"
	"spendlens/models"
	"spendlens/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// allowedReceiptTypes 允许上传的小票类型
var allowedReceiptTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

// ReceiptHandler 小票上传与管理
type ReceiptHandler struct {
	store    service.ObjectStore
	bucket   string
	maxBytes int64
}

// NewReceiptHandler 创建小票处理器
func NewReceiptHandler(cfg *config.StorageConfig, store service.ObjectStore) *ReceiptHandler {
	return &ReceiptHandler{
		store:    store,
		bucket:   cfg.Bucket,
		maxBytes: cfg.MaxUploadMB << 20,
	}
}

// Upload 上传小票
// @Summary 上传小票
// @Description multipart 字段 file，仅支持图片和 PDF
// @Tags 小票
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "小票文件"
// @Success 200 {object} Response{data=models.Receipt} "上传成功"
// @Failure 400 {object} Response "文件缺失、类型不支持或过大"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/receipts [post]
func (h *ReceiptHandler) Upload(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	if fh.Size > h.maxBytes {
		BadRequest(c, fmt.Sprintf("file exceeds %d MB", h.maxBytes>>20))
		return
	}

	f, err := fh.Open()
	if err != nil {
		BadRequest(c, "cannot read uploaded file")
		return
	}
	defer f.Close()

	// 以内容嗅探为准，不信任客户端声明的类型
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	contentType := http.DetectContentType(head[:n])
	if !allowedReceiptTypes[contentType] {
		BadRequest(c, "only images and PDF files are accepted")
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		InternalError(c, "cannot read uploaded file")
		return
	}

	ctx := c.Request.Context()
	key := service.ObjectKey(h.bucket, userID, fh.Filename)
	size, err := h.store.Put(ctx, key, f)
	if err != nil {
		logger.FromContext(ctx).Error("store receipt failed", "key", key, "error", err)
		InternalError(c, SafeErrorMessage(err, "failed to store file"))
		return
	}

	receipt := models.Receipt{
		UserID:      userID,
		FilePath:    key,
		FileName:    normalizeFileName(fh.Filename),
		ContentType: contentType,
		Size:        size,
	}
	if err := database.DB.WithContext(ctx).Create(&receipt).Error; err != nil {
		_ = h.store.Delete(ctx, key)
		InternalError(c, SafeErrorMessage(err, "failed to save receipt"))
		return
	}

	SuccessWithMessage(c, "uploaded", receipt)
}

// List 当前用户的小票
// @Summary 小票列表
// @Tags 小票
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Receipt} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/receipts [get]
func (h *ReceiptHandler) List(c *gin.Context) {
	var receipts []models.Receipt
	if err := database.DB.WithContext(c.Request.Context()).
		Where("user_id = ?", middleware.GetCurrentUserID(c)).
		Order("uploaded_at DESC").
		Find(&receipts).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return
	}
	Success(c, receipts)
}

// File 下载小票文件
// @Summary 下载小票
// @Tags 小票
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "小票ID"
// @Success 200 {file} file "文件内容"
// @Failure 404 {object} Response "不存在"
// @Router /api/v1/receipts/{id}/file [get]
func (h *ReceiptHandler) File(c *gin.Context) {
	receipt, ok := h.find(c)
	if !ok {
		return
	}

	rc, err := h.store.Open(c.Request.Context(), receipt.FilePath)
	if errors.Is(err, service.ErrObjectNotFound) {
		NotFound(c, "file not found")
		return
	}
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to open file"))
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", receipt.FileName))
	c.DataFromReader(http.StatusOK, receipt.Size, receipt.ContentType, rc, nil)
}

// Delete 删除小票，先删对象再删索引
// @Summary 删除小票
// @Tags 小票
// @Produce json
// @Security BearerAuth
// @Param id path string true "小票ID"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "不存在"
// @Router /api/v1/receipts/{id} [delete]
func (h *ReceiptHandler) Delete(c *gin.Context) {
	receipt, ok := h.find(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Delete(ctx, receipt.FilePath); err != nil && !errors.Is(err, service.ErrObjectNotFound) {
		InternalError(c, SafeErrorMessage(err, "failed to delete file"))
		return
	}
	if err := database.DB.WithContext(ctx).Delete(receipt).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to delete receipt"))
		return
	}

	SuccessWithMessage(c, "deleted", nil)
}

func (h *ReceiptHandler) find(c *gin.Context) (*models.Receipt, bool) {
	var receipt models.Receipt
	err := database.DB.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", c.Param("id"), middleware.GetCurrentUserID(c)).
		First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "receipt not found")
		return nil, false
	}
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "query failed"))
		return nil, false
	}
	return &receipt, true
}

// normalizeFileName 去掉路径部分
func normalizeFileName(name string) string {
	return strings.TrimSpace(filepath.Base(name))
}
