// Package attachment 实现多态附件子系统：
// 单张 attachments 表把任意 (实体类型, 实体ID) 与已上传文件关联，
// 行为由每个实体类型的声明式配置约束。
package attachment

import (
	"fmt"
	"sort"

	"aegisx/backend/internal/domain"
)

// Registry 实体类型到附件约束的只读注册表。
// 进程启动时构建一次，此后所有附件操作按实体类型查询；
// 未登记的实体类型是编程错误，快速失败而非静默忽略。
type Registry struct {
	configs map[string]domain.AttachmentConfig
}

// NewRegistry 由声明式配置构建注册表，重复的实体类型视为装配错误
func NewRegistry(configs ...domain.AttachmentConfig) (*Registry, error) {
	m := make(map[string]domain.AttachmentConfig, len(configs))
	for _, cfg := range configs {
		if cfg.EntityType == "" {
			return nil, fmt.Errorf("attachment config with empty entity type")
		}
		if _, dup := m[cfg.EntityType]; dup {
			return nil, fmt.Errorf("duplicate attachment config for entity type %q", cfg.EntityType)
		}
		m[cfg.EntityType] = cfg
	}
	return &Registry{configs: m}, nil
}

// Get 按实体类型查询配置。
// 未登记的类型返回 ConfigurationError（致命，不可重试）。
func (r *Registry) Get(entityType string) (domain.AttachmentConfig, error) {
	cfg, ok := r.configs[entityType]
	if !ok {
		return domain.AttachmentConfig{}, &domain.ConfigurationError{EntityType: entityType}
	}
	return cfg, nil
}

// EntityTypes 返回全部已登记的实体类型（字典序）
func (r *Registry) EntityTypes() []string {
	types := make([]string, 0, len(r.configs))
	for t := range r.configs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultConfigs 平台内置的可附件实体类型
func DefaultConfigs() []domain.AttachmentConfig {
	return []domain.AttachmentConfig{
		{
			EntityType:       "budget_request",
			AllowedMimeTypes: []string{"application/pdf", "image/png", "image/jpeg"},
			MaxFiles:         10,
			CascadeDelete:    true,
		},
		{
			EntityType:       "purchase_order",
			AllowedMimeTypes: []string{"application/pdf"},
			MaxFiles:         20,
			CascadeDelete:    true,
		},
		{
			EntityType:       "drug",
			AllowedMimeTypes: []string{"image/png", "image/jpeg", "image/webp"},
			MaxFiles:         5,
			CascadeDelete:    false,
		},
		{
			EntityType:       "api_key",
			AllowedMimeTypes: []string{"application/x-pem-file", "application/json"},
			MaxFiles:         2,
			CascadeDelete:    true,
		},
	}
}
