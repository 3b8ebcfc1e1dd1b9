package apikeys

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"aegisx/backend/internal/attachment"
	"aegisx/backend/internal/domain"
	"aegisx/backend/internal/fieldsec"
	"aegisx/backend/internal/query"
	"aegisx/backend/internal/repository"
	"aegisx/backend/internal/service"
)

var (
	// ErrInvalidKey 密钥无效、停用或已过期
	ErrInvalidKey = errors.New("invalid API key")
)

const keyPrefixLen = 12

// Module API 密钥模块：通用实体核心加上密钥生成与验证两个专有操作
type Module struct {
	entities *service.EntityService[domain.APIKey]
	db       *gorm.DB
	log      *zap.Logger
}

// New 装配 API 密钥模块。
// attachments 非 nil 时，删除密钥会级联清理其 "api_key" 类型的附件。
func New(db *gorm.DB, recorder fieldsec.SignalRecorder, attachments *attachment.Service, log *zap.Logger) *Module {
	if log == nil {
		log = zap.NewNop()
	}

	repo := repository.New[domain.APIKey](db, TableConfig(), mapper{}, log.Named("apikeys.repo"))
	allowlist := fieldsec.New(FieldRoles(), log.Named("apikeys.fields"), recorder)

	opts := []service.Option[domain.APIKey]{
		service.WithPreCreate[domain.APIKey](requireName),
		service.WithPreUpdate[domain.APIKey](stripSecretColumns),
	}
	if attachments != nil {
		opts = append(opts, service.WithPostDelete[domain.APIKey](func(ctx context.Context, id string) error {
			_, err := attachments.CleanupEntity(ctx, "api_key", id)
			return err
		}))
	}

	return &Module{
		entities: service.NewEntityService[domain.APIKey]("api_key", repo, allowlist, log.Named("apikeys"), opts...),
		db:       db,
		log:      log,
	}
}

// Entities 暴露通用实体服务供 HTTP 层使用
func (m *Module) Entities() *service.EntityService[domain.APIKey] {
	return m.entities
}

// requireName 创建前校验必填字段
func requireName(_ context.Context, data map[string]any) error {
	name, _ := data["name"].(string)
	if name == "" {
		return fmt.Errorf("api key name is required")
	}
	return nil
}

// stripSecretColumns 更新路径禁止触碰密钥材料
func stripSecretColumns(_ context.Context, data map[string]any) error {
	delete(data, "key_hash")
	delete(data, "key_prefix")
	delete(data, "usage_count")
	return nil
}

// CreateInput 创建密钥的输入参数
type CreateInput struct {
	Name        string
	Description string
	ExpiresIn   *time.Duration
}

// CreatedKey 创建结果，PlainKey 仅此一次返回
type CreatedKey struct {
	Key      domain.APIKey `json:"key"`
	PlainKey string        `json:"plainKey"`
}

// CreateWithSecret 生成并保存新密钥。
// 库中只保存 bcrypt 散列与查找前缀，明文随响应返回一次后不可再取。
func (m *Module) CreateWithSecret(ctx context.Context, input CreateInput, actor service.Actor) (*CreatedKey, error) {
	plain, err := generateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	data := map[string]any{
		"name":        input.Name,
		"description": input.Description,
		"key_prefix":  plain[:keyPrefixLen],
		"key_hash":    string(hash),
		"is_active":   true,
	}
	if input.ExpiresIn != nil {
		data["expires_at"] = time.Now().UTC().Add(*input.ExpiresIn)
	}

	created, err := m.entities.Create(ctx, data, actor)
	if err != nil {
		return nil, err
	}

	m.log.Info("api key created",
		zap.String("id", created.ID),
		zap.String("prefix", created.KeyPrefix),
		zap.String("created_by", actor.UserID),
	)

	return &CreatedKey{Key: *created, PlainKey: plain}, nil
}

// Authenticate 验证原始密钥并返回其记录。
// 前缀定位记录后用 bcrypt 比对，停用或过期的密钥一律拒绝；
// 成功后更新使用计数与最后使用时间。
func (m *Module) Authenticate(ctx context.Context, rawKey string) (*domain.APIKey, error) {
	if len(rawKey) < keyPrefixLen {
		return nil, ErrInvalidKey
	}

	var keys []domain.APIKey
	err := m.db.WithContext(ctx).
		Where("key_prefix = ?", rawKey[:keyPrefixLen]).
		Limit(1).
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrInvalidKey
	}

	key := keys[0]
	if !key.IsActive || key.IsExpired() {
		return nil, ErrInvalidKey
	}
	if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) != nil {
		return nil, ErrInvalidKey
	}

	now := time.Now().UTC()
	err = m.db.WithContext(ctx).
		Model(&domain.APIKey{}).
		Where("id = ?", key.ID).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
		}).Error
	if err != nil {
		// 使用统计失败不影响认证结论
		m.log.Warn("failed to record api key usage", zap.String("id", key.ID), zap.Error(err))
	}

	return &key, nil
}

// List 代理通用列表操作
func (m *Module) List(ctx context.Context, q query.ListQuery, actor service.Actor) ([]domain.APIKey, query.Pagination, error) {
	return m.entities.List(ctx, q, actor)
}

// generateKey 生成 48 字符的随机密钥
func generateKey() (string, error) {
	buf := make([]byte, 36)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	key := base64.URLEncoding.EncodeToString(buf)
	if len(key) > 48 {
		key = key[:48]
	}
	return key, nil
}
