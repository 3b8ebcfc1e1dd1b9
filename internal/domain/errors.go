package domain

import (
	"errors"
	"fmt"
)

// 错误分级约定：
//   - ConfigurationError 是编程错误，快速失败，对外表现为 5xx；
//   - DuplicateAttachmentError / LimitExceededError 是预期业务结果，
//     调用方必须处理，不按错误级别记日志；
//   - NotFoundError 仅在确认缺失的更新/删除路径上返回，查询缺失返回 nil；
//   - ReferentialIntegrityError 携带阻塞表清单，供前端给出结构化提示。

// ConfigurationError 实体类型未在附件配置注册表中登记
type ConfigurationError struct {
	EntityType string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("entity type %q is not registered in the attachment config registry", e.EntityType)
}

// DuplicateAttachmentError 同一文件已附加到同一实体
type DuplicateAttachmentError struct {
	EntityType string
	EntityID   string
	FileID     string
}

func (e *DuplicateAttachmentError) Error() string {
	return fmt.Sprintf("file %s is already attached to %s/%s", e.FileID, e.EntityType, e.EntityID)
}

// LimitExceededError 附件数量超出实体类型配置的上限
type LimitExceededError struct {
	EntityType string
	EntityID   string
	Attempted  int // 含现有附件的目标总数
	Limit      int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("attachment limit exceeded for %s/%s: attempted %d, limit %d",
		e.EntityType, e.EntityID, e.Attempted, e.Limit)
}

// NotFoundError 按 ID 更新/删除时目标不存在
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// BlockingRef 阻止删除的外键引用
type BlockingRef struct {
	Table   string `json:"table"`
	Field   string `json:"field"`
	Count   int64  `json:"count"`
	Cascade bool   `json:"cascade"`
}

// ReferentialIntegrityError 业务实体删除被外键引用阻塞
type ReferentialIntegrityError struct {
	Resource  string        `json:"resource"`
	ID        string        `json:"id"`
	BlockedBy []BlockingRef `json:"blockedBy"`
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s %s cannot be deleted: referenced by %d table(s)", e.Resource, e.ID, len(e.BlockedBy))
}

// IsNotFound 判断错误链中是否包含 NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDuplicateAttachment 判断错误链中是否包含 DuplicateAttachmentError
func IsDuplicateAttachment(err error) bool {
	var dup *DuplicateAttachmentError
	return errors.As(err, &dup)
}
