package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aegisx/backend/internal/attachment"
	"aegisx/backend/internal/domain"
)

// newTestRouter 搭建仅含附件路由的测试引擎，跳过认证中间件，
// 用固定的 userID 模拟已登录用户。
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Attachment{}, &domain.FileUpload{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM attachments")
		db.Exec("DELETE FROM file_uploads")
	})

	registry, err := attachment.NewRegistry(
		domain.AttachmentConfig{EntityType: "budget_request", MaxFiles: 2},
		domain.AttachmentConfig{EntityType: "drug", MaxFiles: 0},
	)
	require.NoError(t, err)
	svc := attachment.NewService(registry, attachment.NewRepository(db, nil), nil, nil, nil, nil)

	handler := NewAttachmentHandler(svc, nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", "u-test")
		c.Set("role", "admin")
	})

	group := router.Group("/v1/attachments")
	{
		group.POST("", handler.Attach)
		group.POST("/bulk", handler.BulkAttach)
		group.GET("/stats", handler.Statistics)
		group.GET("/config/:entityType", handler.Config)
		group.GET("/by-file/:fileId", handler.ListByFile)
		group.GET("/by-file/:fileId/count", handler.CountByFile)
		group.GET("/:id", handler.GetByID)
		group.PATCH("/:id", handler.UpdateByID)
		group.DELETE("/:id", handler.Remove)
		group.GET("/:id/:entityId", handler.ListByEntity)
		group.GET("/:id/:entityId/count", handler.CountByEntity)
		group.PUT("/:id/:entityId/reorder", handler.Reorder)
		group.DELETE("/:id/:entityId", handler.CleanupEntity)
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAttachEndpoint(t *testing.T) {
	t.Run("附加文件成功", func(t *testing.T) {
		router := newTestRouter(t)

		w := doJSON(t, router, http.MethodPost, "/v1/attachments", gin.H{
			"entityType": "budget_request",
			"entityId":   "br-1",
			"fileId":     "f-1",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, CodeCreated, resp.Code)

		data := resp.Data.(map[string]any)
		assert.Equal(t, "f-1", data["fileId"])
		assert.Equal(t, float64(0), data["displayOrder"])
		assert.Equal(t, "u-test", data["createdBy"])
	})

	t.Run("缺少必填字段返回400", func(t *testing.T) {
		router := newTestRouter(t)

		w := doJSON(t, router, http.MethodPost, "/v1/attachments", gin.H{
			"entityType": "budget_request",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("重复附加返回409", func(t *testing.T) {
		router := newTestRouter(t)

		body := gin.H{"entityType": "budget_request", "entityId": "br-2", "fileId": "f-dup"}
		require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/v1/attachments", body).Code)

		w := doJSON(t, router, http.MethodPost, "/v1/attachments", body)
		require.Equal(t, http.StatusConflict, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "f-dup", data["fileId"])
	})

	t.Run("超出数量上限返回422并携带细节", func(t *testing.T) {
		router := newTestRouter(t)

		for i := 0; i < 2; i++ {
			body := gin.H{"entityType": "budget_request", "entityId": "br-3", "fileId": fmt.Sprintf("f-%d", i)}
			require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/v1/attachments", body).Code)
		}

		w := doJSON(t, router, http.MethodPost, "/v1/attachments", gin.H{
			"entityType": "budget_request", "entityId": "br-3", "fileId": "f-over",
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(3), data["attempted"])
		assert.Equal(t, float64(2), data["limit"])
	})

	t.Run("未注册实体类型返回500", func(t *testing.T) {
		router := newTestRouter(t)

		w := doJSON(t, router, http.MethodPost, "/v1/attachments", gin.H{
			"entityType": "unknown", "entityId": "x-1", "fileId": "f-1",
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestEntityRoutes(t *testing.T) {
	router := newTestRouter(t)

	for _, fileID := range []string{"f-a", "f-b", "f-c"} {
		body := gin.H{"entityType": "drug", "entityId": "d-1", "fileId": fileID}
		require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/v1/attachments", body).Code)
	}

	t.Run("按实体列出附件", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/attachments/drug/d-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(3), data["count"])
	})

	t.Run("按实体计数", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/attachments/drug/d-1/count", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(3), data["count"])
	})

	t.Run("重排后按新顺序返回", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/v1/attachments/drug/d-1/reorder", gin.H{
			"fileIds": []string{"f-c", "f-a", "f-b"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		atts := data["attachments"].([]any)
		require.Len(t, atts, 3)
		assert.Equal(t, "f-c", atts[0].(map[string]any)["fileId"])
	})

	t.Run("排列不完整返回400", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/v1/attachments/drug/d-1/reorder", gin.H{
			"fileIds": []string{"f-c"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("清理实体附件", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/v1/attachments/drug/d-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(3), data["removed"])

		w = doJSON(t, router, http.MethodGet, "/v1/attachments/drug/d-1/count", nil)
		resp = decodeResponse(t, w)
		assert.Equal(t, float64(0), resp.Data.(map[string]any)["count"])
	})
}

func TestSingleAttachmentRoutes(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/attachments", gin.H{
		"entityType": "drug", "entityId": "d-2", "fileId": "f-x",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeResponse(t, w).Data.(map[string]any)
	attachmentID := created["id"].(string)

	t.Run("按ID获取附件", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/attachments/"+attachmentID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "f-x", data["fileId"])
	})

	t.Run("更新附件子类型", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPatch, "/v1/attachments/"+attachmentID, gin.H{
			"attachmentType": "signature",
		})
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "signature", data["attachmentType"])
	})

	t.Run("按文件反查引用", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/attachments/by-file/f-x", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, float64(1), data["count"])
	})

	t.Run("删除附件返回204", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/v1/attachments/"+attachmentID, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("删除不存在的附件返回404", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/v1/attachments/"+attachmentID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestConfigEndpoint(t *testing.T) {
	router := newTestRouter(t)

	t.Run("返回已注册类型的配置", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/attachments/config/budget_request", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "budget_request", data["entityType"])
		assert.Equal(t, float64(2), data["maxFiles"])
	})

	t.Run("未注册类型返回500", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/attachments/config/unknown", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
