package domain

import "time"

// Attachment 表示一条多态附件记录：将一个已上传文件链接到任意业务实体。
// (entity_type, entity_id, file_id) 全局唯一；display_order 为同一实体下
// 从 0 开始的稠密序列，删除或重排后不允许出现空洞。
type Attachment struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EntityType     string    `json:"entityType" gorm:"type:varchar(100);not null;uniqueIndex:idx_entity_file;index:idx_entity"`
	EntityID       string    `json:"entityId" gorm:"type:varchar(36);not null;uniqueIndex:idx_entity_file;index:idx_entity"`
	FileID         string    `json:"fileId" gorm:"type:varchar(36);not null;uniqueIndex:idx_entity_file;index"`
	AttachmentType string    `json:"attachmentType" gorm:"type:varchar(50);default:'document'"` // 附件子类型标签（如 document/image/signature）
	DisplayOrder   int       `json:"displayOrder" gorm:"not null;default:0"`
	Metadata       JSONMap   `json:"metadata,omitempty" gorm:"type:json"`
	CreatedBy      string    `json:"createdBy" gorm:"type:varchar(36);index"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TableName 指定附件表名
func (Attachment) TableName() string {
	return "attachments"
}

// AttachmentConfig 定义某一实体类型的附件约束。
// 进程启动时一次性注册，运行期只读。
type AttachmentConfig struct {
	EntityType       string   `json:"entityType"`
	AllowedMimeTypes []string `json:"allowedMimeTypes"` // 为空表示不限制 MIME 类型
	MaxFiles         int      `json:"maxFiles"`         // 0 表示不限制数量
	CascadeDelete    bool     `json:"cascadeDelete"`    // 实体清理时是否连带删除底层文件
}

// AllowsMime 判断给定 MIME 类型是否在允许列表中
func (c AttachmentConfig) AllowsMime(mime string) bool {
	if len(c.AllowedMimeTypes) == 0 {
		return true
	}
	for _, m := range c.AllowedMimeTypes {
		if m == mime {
			return true
		}
	}
	return false
}

// AttachmentStatistics 按文件所有者聚合的附件使用统计
type AttachmentStatistics struct {
	TotalFiles              int64 `json:"totalFiles"`
	FilesWithAttachments    int64 `json:"filesWithAttachments"`
	FilesWithoutAttachments int64 `json:"filesWithoutAttachments"`
	TotalAttachments        int64 `json:"totalAttachments"`
}
