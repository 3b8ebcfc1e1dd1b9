package domain

import "time"

// FileUpload 表示文件上传模块登记的文件元数据。
// 文件内容与存储后端由上传模块负责，本系统只读消费：
// 附件校验 MIME 类型、统计按所有者聚合时查询此表。
type FileUpload struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       string     `json:"userId" gorm:"type:varchar(36);index;not null"` // 文件所有者
	OriginalName string     `json:"originalName" gorm:"type:varchar(512)"`
	MimeType     string     `json:"mimeType" gorm:"type:varchar(255);index"`
	Size         int64      `json:"size"`
	Checksum     string     `json:"checksum,omitempty" gorm:"type:varchar(64)"`
	StoragePath  string     `json:"-" gorm:"type:varchar(1024)"` // 存储定位符，对调用方不透出
	Status       string     `json:"status" gorm:"type:varchar(20);default:'active';index"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty" gorm:"index"`
}

// TableName 指定文件元数据表名
func (FileUpload) TableName() string {
	return "file_uploads"
}
