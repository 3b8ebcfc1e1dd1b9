package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aegisx/backend/internal/attachment"
	"aegisx/backend/internal/domain"
)

// 错误提示信息常量
const (
	MsgInvalidRequest   = "请求参数错误"
	MsgNotFound         = "资源不存在"
	MsgDuplicate        = "文件已附加到该实体"
	MsgLimitExceeded    = "附件数量超出上限"
	MsgMimeNotAllowed   = "文件类型不被允许"
	MsgReorderMismatch  = "排序列表与现有附件不一致"
	MsgEmptyBatch       = "批量附加列表不能为空"
	MsgDeleteBlocked    = "存在关联数据，无法删除"
	MsgInternalError    = "服务器内部错误"
	MsgUnknownEntity    = "未知的实体类型"
	MsgInvalidAPIKey    = "API密钥无效"
	MsgPermissionDenied = "无权限执行此操作"
)

// WriteError 将领域错误映射为统一的 HTTP 响应。
// 配置类错误是编程缺陷，记 Error 级日志并返回 500；
// 业务类冲突按约定返回 409/422/404，载荷携带结构化细节。
func WriteError(c *gin.Context, log *zap.Logger, err error) {
	var (
		cfgErr *domain.ConfigurationError
		dupErr *domain.DuplicateAttachmentError
		limErr *domain.LimitExceededError
		nfErr  *domain.NotFoundError
		refErr *domain.ReferentialIntegrityError
	)

	switch {
	case errors.As(err, &cfgErr):
		if log != nil {
			log.Error("实体类型未注册", zap.String("entityType", cfgErr.EntityType))
		}
		InternalError(c, MsgUnknownEntity)
	case errors.As(err, &dupErr):
		Conflict(c, MsgDuplicate, gin.H{
			"entityType": dupErr.EntityType,
			"entityId":   dupErr.EntityID,
			"fileId":     dupErr.FileID,
		})
	case errors.As(err, &limErr):
		UnprocessableEntity(c, MsgLimitExceeded, gin.H{
			"entityType": limErr.EntityType,
			"entityId":   limErr.EntityID,
			"attempted":  limErr.Attempted,
			"limit":      limErr.Limit,
		})
	case errors.As(err, &nfErr):
		NotFound(c, MsgNotFound)
	case errors.As(err, &refErr):
		Conflict(c, MsgDeleteBlocked, gin.H{
			"resource":  refErr.Resource,
			"id":        refErr.ID,
			"blockedBy": refErr.BlockedBy,
		})
	case errors.Is(err, attachment.ErrMimeNotAllowed):
		UnprocessableEntity(c, MsgMimeNotAllowed, nil)
	case errors.Is(err, attachment.ErrReorderMismatch):
		BadRequest(c, MsgReorderMismatch)
	case errors.Is(err, attachment.ErrEmptyBatch):
		BadRequest(c, MsgEmptyBatch)
	default:
		if log != nil {
			log.Error("请求处理失败", zap.Error(err))
		}
		InternalError(c, MsgInternalError)
	}
}
