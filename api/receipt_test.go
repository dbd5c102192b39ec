package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"spendlens/config"
	"spendlens/models"
	"spendlens/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 最小的 PNG 文件头，足够让内容嗅探识别为 image/png
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func newReceiptRouter(t *testing.T, userID string) (*gin.Engine, *service.LocalStore) {
	store, err := service.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	h := NewReceiptHandler(&config.StorageConfig{Bucket: "receipts", MaxUploadMB: 1}, store)

	router := gin.New()
	router.Use(setUserIDMiddleware(userID))
	router.POST("/receipts", h.Upload)
	router.GET("/receipts", h.List)
	router.GET("/receipts/:id/file", h.File)
	router.DELETE("/receipts/:id", h.Delete)
	return router, store
}

func TestReceiptHandler_Lifecycle(t *testing.T) {
	testConfig()
	defer func() { config.GlobalConfig = nil }()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	router, _ := newReceiptRouter(t, "u1")

	body, ct := multipartBody(t, "file", "../lunch.PNG", pngBytes)
	req := httptest.NewRequest("POST", "/receipts", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code, w.Body.String())

	data := decodeBody(t, w)["data"].(map[string]interface{})
	id := data["id"].(string)
	assert.Equal(t, "lunch.PNG", data["file_name"])
	assert.Equal(t, "image/png", data["content_type"])
	assert.Regexp(t, `^receipts/u1/[0-9a-f-]{36}\.png$`, data["file_path"])

	// 列表
	w = doJSON(router, "GET", "/receipts", "", "")
	require.Equal(t, 200, w.Code)
	assert.Len(t, decodeBody(t, w)["data"], 1)

	// 下载
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/receipts/"+id+"/file", nil))
	require.Equal(t, 200, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	// 其他用户看不到
	other, _ := newReceiptRouter(t, "u2")
	w = httptest.NewRecorder()
	other.ServeHTTP(w, httptest.NewRequest("GET", "/receipts/"+id+"/file", nil))
	assert.Equal(t, 404, w.Code)

	// 删除
	w = doJSON(router, "DELETE", "/receipts/"+id, "", "")
	require.Equal(t, 200, w.Code)
	var count int64
	db.Model(&models.Receipt{}).Count(&count)
	assert.Equal(t, int64(0), count)

	w = doJSON(router, "DELETE", "/receipts/"+id, "", "")
	assert.Equal(t, 404, w.Code)
}

func TestReceiptHandler_Upload_Rejects(t *testing.T) {
	testConfig()
	defer func() { config.GlobalConfig = nil }()
	_, cleanup := setupTestDB(t)
	defer cleanup()

	router, _ := newReceiptRouter(t, "u1")

	// 缺少文件
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/receipts", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 非图片
	body, ct := multipartBody(t, "file", "notes.txt", []byte("just some text"))
	req = httptest.NewRequest("POST", "/receipts", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 超过大小限制
	big := append(append([]byte{}, pngBytes...), make([]byte, 2<<20)...)
	body, ct = multipartBody(t, "file", "big.png", big)
	req = httptest.NewRequest("POST", "/receipts", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
