package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aegisx/backend/internal/attachment"
	"aegisx/backend/internal/domain"
)

// AttachmentHandler 附件相关的 HTTP 处理器
type AttachmentHandler struct {
	service *attachment.Service
	log     *zap.Logger
}

// NewAttachmentHandler 创建附件处理器
func NewAttachmentHandler(service *attachment.Service, log *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service: service,
		log:     log,
	}
}

// attachRequest 附加文件请求
type attachRequest struct {
	EntityType     string         `json:"entityType" binding:"required"`
	EntityID       string         `json:"entityId" binding:"required"`
	FileID         string         `json:"fileId" binding:"required"`
	AttachmentType string         `json:"attachmentType"`
	Metadata       domain.JSONMap `json:"metadata"`
}

// bulkAttachRequest 批量附加请求
type bulkAttachRequest struct {
	EntityType string            `json:"entityType" binding:"required"`
	EntityID   string            `json:"entityId" binding:"required"`
	Files      []bulkFileRequest `json:"files" binding:"required"`
}

type bulkFileRequest struct {
	FileID         string         `json:"fileId" binding:"required"`
	AttachmentType string         `json:"attachmentType"`
	Metadata       domain.JSONMap `json:"metadata"`
}

// reorderRequest 重排请求，fileIds 必须是现有附件的精确排列
type reorderRequest struct {
	FileIDs []string `json:"fileIds" binding:"required"`
}

// updateAttachmentRequest 附件更新请求
type updateAttachmentRequest struct {
	AttachmentType *string        `json:"attachmentType"`
	Metadata       domain.JSONMap `json:"metadata"`
}

// Attach 将文件附加到业务实体
// @Summary 附加文件
// @Tags attachments
// @Accept json
// @Produce json
// @Param request body attachRequest true "附加参数"
// @Success 201 {object} Response
// @Router /v1/attachments [post]
func (h *AttachmentHandler) Attach(c *gin.Context) {
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	att, err := h.service.Attach(c.Request.Context(), attachment.AttachInput{
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		FileID:         req.FileID,
		AttachmentType: req.AttachmentType,
		Metadata:       req.Metadata,
		CreatedBy:      c.GetString("userID"),
	})
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Created(c, att)
}

// BulkAttach 批量附加文件，全有或全无
// @Summary 批量附加文件
// @Tags attachments
// @Accept json
// @Produce json
// @Param request body bulkAttachRequest true "批量附加参数"
// @Success 201 {object} Response
// @Router /v1/attachments/bulk [post]
func (h *AttachmentHandler) BulkAttach(c *gin.Context) {
	var req bulkAttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	files := make([]attachment.BulkFile, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, attachment.BulkFile{
			FileID:         f.FileID,
			AttachmentType: f.AttachmentType,
			Metadata:       f.Metadata,
		})
	}

	created, err := h.service.BulkAttach(c.Request.Context(), req.EntityType, req.EntityID, files, c.GetString("userID"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Created(c, gin.H{
		"attachments": created,
		"count":       len(created),
	})
}

// ListByEntity 列出实体的全部附件，按 displayOrder 升序
// @Summary 实体附件列表
// @Tags attachments
// @Produce json
// @Param entityType path string true "实体类型"
// @Param entityId path string true "实体ID"
// @Param attachmentType query string false "按附件子类型过滤"
// @Success 200 {object} Response
// @Router /v1/attachments/{entityType}/{entityId} [get]
func (h *AttachmentHandler) ListByEntity(c *gin.Context) {
	entityType := c.Param("id")
	entityID := c.Param("entityId")

	atts, err := h.service.ListByEntity(c.Request.Context(), entityType, entityID, c.Query("attachmentType"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, gin.H{
		"attachments": atts,
		"count":       len(atts),
	})
}

// CountByEntity 统计实体的附件数
// @Summary 实体附件计数
// @Tags attachments
// @Produce json
// @Param entityType path string true "实体类型"
// @Param entityId path string true "实体ID"
// @Success 200 {object} Response
// @Router /v1/attachments/{entityType}/{entityId}/count [get]
func (h *AttachmentHandler) CountByEntity(c *gin.Context) {
	count, err := h.service.CountByEntity(c.Request.Context(), c.Param("id"), c.Param("entityId"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, gin.H{"count": count})
}

// Reorder 按给定文件 ID 顺序重排实体附件
// @Summary 重排实体附件
// @Tags attachments
// @Accept json
// @Produce json
// @Param entityType path string true "实体类型"
// @Param entityId path string true "实体ID"
// @Param request body reorderRequest true "文件ID的完整排列"
// @Success 200 {object} Response
// @Router /v1/attachments/{entityType}/{entityId}/reorder [put]
func (h *AttachmentHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	entityType := c.Param("id")
	entityID := c.Param("entityId")
	if err := h.service.Reorder(c.Request.Context(), entityType, entityID, req.FileIDs); err != nil {
		WriteError(c, h.log, err)
		return
	}

	atts, err := h.service.ListByEntity(c.Request.Context(), entityType, entityID, "")
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, gin.H{"attachments": atts})
}

// CleanupEntity 清理实体的全部附件；按实体类型配置决定是否级联删除文件
// @Summary 清理实体附件
// @Tags attachments
// @Produce json
// @Param entityType path string true "实体类型"
// @Param entityId path string true "实体ID"
// @Success 200 {object} Response
// @Router /v1/attachments/{entityType}/{entityId} [delete]
func (h *AttachmentHandler) CleanupEntity(c *gin.Context) {
	removed, err := h.service.CleanupEntity(c.Request.Context(), c.Param("id"), c.Param("entityId"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, gin.H{"removed": removed})
}

// GetByID 按 ID 获取单条附件
// @Summary 附件详情
// @Tags attachments
// @Produce json
// @Param attachmentId path string true "附件ID"
// @Success 200 {object} Response
// @Router /v1/attachments/{attachmentId} [get]
func (h *AttachmentHandler) GetByID(c *gin.Context) {
	att, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, att)
}

// UpdateByID 更新附件的子类型或元数据
// @Summary 更新附件
// @Tags attachments
// @Accept json
// @Produce json
// @Param attachmentId path string true "附件ID"
// @Param request body updateAttachmentRequest true "更新字段"
// @Success 200 {object} Response
// @Router /v1/attachments/{attachmentId} [patch]
func (h *AttachmentHandler) UpdateByID(c *gin.Context) {
	var req updateAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	att, err := h.service.UpdateByID(c.Request.Context(), c.Param("id"), attachment.UpdateInput{
		AttachmentType: req.AttachmentType,
		Metadata:       req.Metadata,
	})
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, att)
}

// Remove 删除单条附件并压实余下附件的顺序
// @Summary 删除附件
// @Tags attachments
// @Param attachmentId path string true "附件ID"
// @Success 204
// @Router /v1/attachments/{attachmentId} [delete]
func (h *AttachmentHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id")); err != nil {
		WriteError(c, h.log, err)
		return
	}

	NoContent(c)
}

// ListByFile 列出引用某文件的全部附件（跨实体）
// @Summary 文件反向引用列表
// @Tags attachments
// @Produce json
// @Param fileId path string true "文件ID"
// @Success 200 {object} Response
// @Router /v1/attachments/by-file/{fileId} [get]
func (h *AttachmentHandler) ListByFile(c *gin.Context) {
	atts, err := h.service.ListByFile(c.Request.Context(), c.Param("fileId"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, gin.H{
		"attachments": atts,
		"count":       len(atts),
	})
}

// CountByFile 统计引用某文件的附件数
// @Summary 文件反向引用计数
// @Tags attachments
// @Produce json
// @Param fileId path string true "文件ID"
// @Success 200 {object} Response
// @Router /v1/attachments/by-file/{fileId}/count [get]
func (h *AttachmentHandler) CountByFile(c *gin.Context) {
	count, err := h.service.CountByFile(c.Request.Context(), c.Param("fileId"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, gin.H{"count": count})
}

// Config 查询实体类型的附件约束配置
// @Summary 附件配置查询
// @Tags attachments
// @Produce json
// @Param entityType path string true "实体类型"
// @Success 200 {object} Response
// @Router /v1/attachments/config/{entityType} [get]
func (h *AttachmentHandler) Config(c *gin.Context) {
	cfg, err := h.service.Config(c.Param("entityType"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, cfg)
}

// Statistics 当前用户的附件使用统计
// @Summary 附件使用统计
// @Tags attachments
// @Produce json
// @Success 200 {object} Response
// @Router /v1/attachments/stats [get]
func (h *AttachmentHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		WriteError(c, h.log, err)
		return
	}

	Success(c, stats)
}
