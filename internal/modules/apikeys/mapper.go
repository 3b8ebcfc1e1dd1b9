// Package apikeys 是基于通用实体核心装配出的 API 密钥管理模块。
package apikeys

import (
	"time"

	"aegisx/backend/internal/domain"
	"aegisx/backend/internal/repository"
)

// writableColumns 允许经由通用写路径进入 api_keys 表的列。
// key_hash/key_prefix 只在本模块创建路径写入，不接受外部更新。
var writableColumns = map[string]struct{}{
	"id":          {},
	"name":        {},
	"description": {},
	"key_prefix":  {},
	"key_hash":    {},
	"is_active":   {},
	"usage_count": {},
	"expires_at":  {},
	"created_by":  {},
}

// TableConfig api_keys 表的通用仓储绑定
func TableConfig() repository.TableConfig {
	return repository.TableConfig{
		Table:         "api_keys",
		SearchColumns: []string{"api_keys.name", "api_keys.description"},
		SortColumns: map[string]string{
			"name":       "api_keys.name",
			"createdAt":  "api_keys.created_at",
			"usageCount": "api_keys.usage_count",
			"expiresAt":  "api_keys.expires_at",
			"lastUsedAt": "api_keys.last_used_at",
		},
		DefaultSort: "api_keys.created_at",
		FilterColumns: map[string]string{
			"is_active":   "api_keys.is_active",
			"usage_count": "api_keys.usage_count",
			"expires_at":  "api_keys.expires_at",
			"created_by":  "api_keys.created_by",
		},
		HasCreatedAt: true,
		HasUpdatedAt: true,
		HasCreatedBy: true,
	}
}

// FieldRoles 各角色可见的 api_keys 列。key_hash 对任何角色都不可见。
func FieldRoles() map[domain.Role][]string {
	return map[domain.Role][]string{
		domain.RolePublic: {"id", "name"},
		domain.RoleUser: {
			"id", "name", "description", "is_active", "created_at",
		},
		domain.RoleManager: {
			"id", "name", "description", "is_active", "usage_count",
			"expires_at", "last_used_at", "created_at",
		},
		domain.RoleAdmin: {
			"id", "name", "description", "key_prefix", "is_active", "usage_count",
			"expires_at", "last_used_at", "created_by", "created_at", "updated_at",
		},
	}
}

type mapper struct{}

func (mapper) ToEntity(row repository.Row) domain.APIKey {
	return domain.APIKey{
		ID:          asString(row["id"]),
		Name:        asString(row["name"]),
		Description: asString(row["description"]),
		KeyPrefix:   asString(row["key_prefix"]),
		KeyHash:     asString(row["key_hash"]),
		IsActive:    asBool(row["is_active"]),
		UsageCount:  asInt64(row["usage_count"]),
		ExpiresAt:   asTimePtr(row["expires_at"]),
		LastUsedAt:  asTimePtr(row["last_used_at"]),
		CreatedBy:   asString(row["created_by"]),
		CreatedAt:   asTime(row["created_at"]),
		UpdatedAt:   asTime(row["updated_at"]),
	}
}

func (mapper) ToRow(data map[string]any) repository.Row {
	row := repository.Row{}
	for key, value := range data {
		if _, ok := writableColumns[key]; ok {
			row[key] = value
		}
	}
	return row
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	return false
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func asTimePtr(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
