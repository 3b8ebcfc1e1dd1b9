// Package service 提供实体无关的业务编排核心。
// 每个业务模块将自己的仓储与钩子装配成一个 EntityService，
// 控制器只与该服务交互。
package service

import (
	"context"

	"go.uber.org/zap"

	"aegisx/backend/internal/domain"
	"aegisx/backend/internal/fieldsec"
	"aegisx/backend/internal/query"
	"aegisx/backend/internal/repository"
)

// Hook 创建/更新前的扩展点，可修改数据或以错误否决操作
type Hook func(ctx context.Context, data map[string]any) error

// PostHook 操作成功后的扩展点（如附件清理、事件发布）
type PostHook func(ctx context.Context, id string) error

// RefCheck 删除前的外键引用检查，返回阻塞引用清单
type RefCheck func(ctx context.Context, id string) ([]domain.BlockingRef, error)

// Actor 发起操作的调用方
type Actor struct {
	UserID string
	Role   domain.Role
	IP     string
}

// EntityService 绑定到一个业务实体的通用服务核心
type EntityService[E any] struct {
	resource string // 资源名，用于 NotFoundError 等提示
	repo     *repository.Repository[E]
	fields   *fieldsec.Allowlist

	preCreate  []Hook
	preUpdate  []Hook
	postDelete []PostHook
	refCheck   RefCheck

	log *zap.Logger
}

// Option EntityService 的装配选项
type Option[E any] func(*EntityService[E])

// WithPreCreate 注册创建前钩子
func WithPreCreate[E any](h Hook) Option[E] {
	return func(s *EntityService[E]) { s.preCreate = append(s.preCreate, h) }
}

// WithPreUpdate 注册更新前钩子
func WithPreUpdate[E any](h Hook) Option[E] {
	return func(s *EntityService[E]) { s.preUpdate = append(s.preUpdate, h) }
}

// WithPostDelete 注册删除后钩子
func WithPostDelete[E any](h PostHook) Option[E] {
	return func(s *EntityService[E]) { s.postDelete = append(s.postDelete, h) }
}

// WithRefCheck 注册删除前的引用检查
func WithRefCheck[E any](check RefCheck) Option[E] {
	return func(s *EntityService[E]) { s.refCheck = check }
}

// NewEntityService 创建通用实体服务
func NewEntityService[E any](
	resource string,
	repo *repository.Repository[E],
	fields *fieldsec.Allowlist,
	log *zap.Logger,
	opts ...Option[E],
) *EntityService[E] {
	if log == nil {
		log = zap.NewNop()
	}
	s := &EntityService[E]{
		resource: resource,
		repo:     repo,
		fields:   fields,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create 依次执行创建前钩子后落库
func (s *EntityService[E]) Create(ctx context.Context, data map[string]any, actor Actor) (*E, error) {
	for _, hook := range s.preCreate {
		if err := hook(ctx, data); err != nil {
			return nil, err
		}
	}
	return s.repo.Create(ctx, data, actor.UserID)
}

// Get 按 ID 读取，缺失返回 NotFoundError 供接口层映射 404
func (s *EntityService[E]) Get(ctx context.Context, id string) (*E, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &domain.NotFoundError{Resource: s.resource, ID: id}
	}
	return entity, nil
}

// List 先经字段白名单裁剪投影，再交给仓储执行
func (s *EntityService[E]) List(ctx context.Context, q query.ListQuery, actor Actor) ([]E, query.Pagination, error) {
	if s.fields != nil {
		q.Fields = s.fields.Resolve(actor.Role, q.Fields, fieldsec.Caller{
			UserID: actor.UserID,
			IP:     actor.IP,
		})
	}
	return s.repo.List(ctx, q)
}

// Update 部分更新，目标缺失返回 NotFoundError
func (s *EntityService[E]) Update(ctx context.Context, id string, partial map[string]any, actor Actor) (*E, error) {
	for _, hook := range s.preUpdate {
		if err := hook(ctx, partial); err != nil {
			return nil, err
		}
	}

	entity, err := s.repo.Update(ctx, id, partial)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &domain.NotFoundError{Resource: s.resource, ID: id}
	}
	return entity, nil
}

// Delete 删除实体。
// 先执行引用检查，被非级联引用阻塞时返回 ReferentialIntegrityError；
// 目标缺失返回 NotFoundError；删除成功后依次执行删除后钩子。
func (s *EntityService[E]) Delete(ctx context.Context, id string) error {
	if s.refCheck != nil {
		blocked, err := s.refCheck(ctx, id)
		if err != nil {
			return err
		}
		hard := make([]domain.BlockingRef, 0, len(blocked))
		for _, ref := range blocked {
			if !ref.Cascade {
				hard = append(hard, ref)
			}
		}
		if len(hard) > 0 {
			return &domain.ReferentialIntegrityError{
				Resource:  s.resource,
				ID:        id,
				BlockedBy: hard,
			}
		}
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return &domain.NotFoundError{Resource: s.resource, ID: id}
	}

	for _, hook := range s.postDelete {
		if err := hook(ctx, id); err != nil {
			// 删除后钩子失败不回滚主删除，只记录
			s.log.Error("post-delete hook failed",
				zap.String("resource", s.resource),
				zap.String("id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}
