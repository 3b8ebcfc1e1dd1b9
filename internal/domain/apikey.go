package domain

import "time"

// APIKey 平台管理的 API 密钥实体（生成式 CRUD 模块之一）。
// 明文密钥仅在创建时返回一次，库中只保存 bcrypt 散列与前缀。
type APIKey struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string     `json:"name" gorm:"type:varchar(255);not null;index"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	KeyPrefix   string     `json:"keyPrefix" gorm:"type:varchar(16);uniqueIndex"` // 用于查找的前缀
	KeyHash     string     `json:"-" gorm:"type:varchar(255);not null"`           // bcrypt 散列，不返回给前端
	IsActive    bool       `json:"isActive" gorm:"default:true;index"`
	UsageCount  int64      `json:"usageCount" gorm:"default:0"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty" gorm:"index"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	CreatedBy   string     `json:"createdBy" gorm:"type:varchar(36);index"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName 指定 API 密钥表名
func (APIKey) TableName() string {
	return "api_keys"
}

// IsExpired 判断密钥是否已过期
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt)
}
