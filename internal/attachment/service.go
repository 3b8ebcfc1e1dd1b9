package attachment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aegisx/backend/internal/domain"
)

var (
	// ErrMimeNotAllowed 文件 MIME 类型不在实体类型的允许列表中
	ErrMimeNotAllowed = errors.New("mime type not allowed for entity type")
	// ErrReorderMismatch 重排列表不是实体当前附件文件ID的精确排列
	ErrReorderMismatch = errors.New("reorder list must be an exact permutation of current attachments")
	// ErrEmptyBatch 批量附加的文件列表为空
	ErrEmptyBatch = errors.New("bulk attach requires at least one file")
)

// FileDeleter 级联清理时删除底层文件的外部协作者。
// 未注入时级联清理确定性地跳过文件删除并记录，而不是静默不作为。
type FileDeleter interface {
	DeleteFile(ctx context.Context, fileID string) error
}

// FileInfoProvider 文件元数据的只读查询（由上传模块提供）。
// 返回 MIME 类型及文件是否登记在册。
type FileInfoProvider interface {
	FileMime(ctx context.Context, fileID string) (string, bool, error)
}

// OpRecorder 附件操作指标上报（由 monitoring.Metrics 实现）
type OpRecorder interface {
	RecordAttachmentOp(op, entityType, outcome string)
}

// ListObserver 列表规模指标上报，OpRecorder 的可选扩展
type ListObserver interface {
	ObserveAttachmentList(entityType string, count int)
}

// Service 附件业务规则层。
// 附件生命周期：未附加 → 已附加 → (重排)* → 已移除；
// 除移除/清理外没有回到未附加态的路径。
type Service struct {
	registry *Registry
	repo     *Repository
	files    FileInfoProvider
	deleter  FileDeleter
	metrics  OpRecorder
	log      *zap.Logger
}

// NewService 创建附件服务。files、deleter、metrics 均可为 nil。
func NewService(registry *Registry, repo *Repository, files FileInfoProvider, deleter FileDeleter, metrics OpRecorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		registry: registry,
		repo:     repo,
		files:    files,
		deleter:  deleter,
		metrics:  metrics,
		log:      log,
	}
}

func (s *Service) record(op, entityType, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAttachmentOp(op, entityType, outcome)
	}
}

// checkMime 按实体类型配置校验文件 MIME。
// 文件ID对本子系统不透明：提供方缺席或文件未登记时跳过校验。
func (s *Service) checkMime(ctx context.Context, cfg domain.AttachmentConfig, fileID string) error {
	if len(cfg.AllowedMimeTypes) == 0 || s.files == nil {
		return nil
	}
	mime, ok, err := s.files.FileMime(ctx, fileID)
	if err != nil {
		return fmt.Errorf("lookup file mime: %w", err)
	}
	if !ok {
		return nil
	}
	if !cfg.AllowsMime(mime) {
		return fmt.Errorf("%w: %s (entity type %s)", ErrMimeNotAllowed, mime, cfg.EntityType)
	}
	return nil
}

// AttachInput 单文件附加参数
type AttachInput struct {
	EntityType     string
	EntityID       string
	FileID         string
	AttachmentType string
	Metadata       domain.JSONMap
	CreatedBy      string
}

// Attach 将文件附加到实体。
//
// display_order 取当前附件数（追加到末尾），计数与插入在同一事务内，
// 并发竞争丢失方由唯一索引兜底转化为 DuplicateAttachmentError。
// 重复附加是预期业务结果（"已附加"），调用方不应视为致命错误。
func (s *Service) Attach(ctx context.Context, input AttachInput) (*domain.Attachment, error) {
	cfg, err := s.registry.Get(input.EntityType)
	if err != nil {
		s.record("attach", input.EntityType, "config_error")
		return nil, err
	}

	if err := s.checkMime(ctx, cfg, input.FileID); err != nil {
		s.record("attach", input.EntityType, "rejected")
		return nil, err
	}

	attachmentType := input.AttachmentType
	if attachmentType == "" {
		attachmentType = "document"
	}

	var created *domain.Attachment
	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		exists, err := tx.Exists(ctx, input.EntityType, input.EntityID, input.FileID)
		if err != nil {
			return err
		}
		if exists {
			return &domain.DuplicateAttachmentError{
				EntityType: input.EntityType,
				EntityID:   input.EntityID,
				FileID:     input.FileID,
			}
		}

		count, err := tx.CountByEntity(ctx, input.EntityType, input.EntityID)
		if err != nil {
			return err
		}
		if cfg.MaxFiles > 0 && int(count) >= cfg.MaxFiles {
			return &domain.LimitExceededError{
				EntityType: input.EntityType,
				EntityID:   input.EntityID,
				Attempted:  int(count) + 1,
				Limit:      cfg.MaxFiles,
			}
		}

		a := &domain.Attachment{
			ID:             uuid.New().String(),
			EntityType:     input.EntityType,
			EntityID:       input.EntityID,
			FileID:         input.FileID,
			AttachmentType: attachmentType,
			DisplayOrder:   int(count),
			Metadata:       input.Metadata,
			CreatedBy:      input.CreatedBy,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.Insert(ctx, a); err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		if domain.IsDuplicateAttachment(err) {
			s.record("attach", input.EntityType, "duplicate")
		} else {
			s.record("attach", input.EntityType, "error")
		}
		return nil, err
	}

	s.record("attach", input.EntityType, "ok")
	return created, nil
}

// BulkFile 批量附加中的单个文件
type BulkFile struct {
	FileID         string
	AttachmentType string
	Metadata       domain.JSONMap
}

// BulkAttach 批量附加，全有或全无。
// 预检 currentCount + len(files) ≤ MaxFiles，超限整批拒绝，
// 不会出现部分生效；批内任一重复同样回滚整批。
func (s *Service) BulkAttach(ctx context.Context, entityType, entityID string, files []BulkFile, createdBy string) ([]domain.Attachment, error) {
	cfg, err := s.registry.Get(entityType)
	if err != nil {
		s.record("bulk_attach", entityType, "config_error")
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrEmptyBatch
	}

	for _, f := range files {
		if err := s.checkMime(ctx, cfg, f.FileID); err != nil {
			s.record("bulk_attach", entityType, "rejected")
			return nil, err
		}
	}

	var created []domain.Attachment
	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		count, err := tx.CountByEntity(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		if cfg.MaxFiles > 0 && int(count)+len(files) > cfg.MaxFiles {
			return &domain.LimitExceededError{
				EntityType: entityType,
				EntityID:   entityID,
				Attempted:  int(count) + len(files),
				Limit:      cfg.MaxFiles,
			}
		}

		now := time.Now().UTC()
		for i, f := range files {
			attachmentType := f.AttachmentType
			if attachmentType == "" {
				attachmentType = "document"
			}
			a := domain.Attachment{
				ID:             uuid.New().String(),
				EntityType:     entityType,
				EntityID:       entityID,
				FileID:         f.FileID,
				AttachmentType: attachmentType,
				DisplayOrder:   int(count) + i,
				Metadata:       f.Metadata,
				CreatedBy:      createdBy,
				CreatedAt:      now,
			}
			if err := tx.Insert(ctx, &a); err != nil {
				return err
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		s.record("bulk_attach", entityType, "error")
		return nil, err
	}

	s.record("bulk_attach", entityType, "ok")
	return created, nil
}

// Reorder 按给定文件ID序列重排实体附件的展示顺序。
//
// 输入必须是实体当前附件文件ID的精确排列：长度一致、集合一致，
// 否则整体拒绝——部分列表会给未出现的ID留下陈旧顺序值。
// 整个重排在一个事务内完成，不暴露中间状态。
func (s *Service) Reorder(ctx context.Context, entityType, entityID string, fileIDs []string) error {
	if _, err := s.registry.Get(entityType); err != nil {
		s.record("reorder", entityType, "config_error")
		return err
	}

	err := s.repo.Transaction(ctx, func(tx *Repository) error {
		current, err := tx.ListByEntity(ctx, entityType, entityID, "")
		if err != nil {
			return err
		}
		if len(current) != len(fileIDs) {
			return fmt.Errorf("%w: have %d attachments, got %d ids",
				ErrReorderMismatch, len(current), len(fileIDs))
		}

		currentSet := make(map[string]struct{}, len(current))
		for _, a := range current {
			currentSet[a.FileID] = struct{}{}
		}
		for _, id := range fileIDs {
			if _, ok := currentSet[id]; !ok {
				return fmt.Errorf("%w: unknown file id %s", ErrReorderMismatch, id)
			}
			delete(currentSet, id) // 兼查重复ID
		}

		for i, fileID := range fileIDs {
			if err := tx.SetDisplayOrder(ctx, entityType, entityID, fileID, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.record("reorder", entityType, "error")
		return err
	}

	s.record("reorder", entityType, "ok")
	return nil
}

// Remove 删除单条附件并重整其实体的展示顺序。
// 目标缺失返回 NotFoundError。
func (s *Service) Remove(ctx context.Context, attachmentID string) error {
	return s.repo.Transaction(ctx, func(tx *Repository) error {
		a, err := tx.GetByID(ctx, attachmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return &domain.NotFoundError{Resource: "attachment", ID: attachmentID}
		}

		if _, err := tx.DeleteByID(ctx, attachmentID); err != nil {
			return err
		}
		return tx.Resequence(ctx, a.EntityType, a.EntityID)
	})
}

// CleanupEntity 实体删除时的附件清理。
//
// cascadeDelete 开启时对每个附件尝试删除底层文件：逐个尽力而为，
// 单个文件删除失败记录后继续，不阻断附件行的删除；
// 无论级联与否，附件行最终一定被删除。返回删除的附件行数。
func (s *Service) CleanupEntity(ctx context.Context, entityType, entityID string) (int64, error) {
	cfg, err := s.registry.Get(entityType)
	if err != nil {
		s.record("cleanup", entityType, "config_error")
		return 0, err
	}

	attachments, err := s.repo.ListByEntity(ctx, entityType, entityID, "")
	if err != nil {
		return 0, err
	}

	if cfg.CascadeDelete {
		if s.deleter == nil {
			s.log.Warn("cascade delete configured but no file deleter injected, skipping file deletion",
				zap.String("entity_type", entityType),
				zap.String("entity_id", entityID),
			)
		} else {
			for _, a := range attachments {
				if err := s.deleter.DeleteFile(ctx, a.FileID); err != nil {
					s.log.Warn("cascade file deletion failed",
						zap.String("entity_type", entityType),
						zap.String("entity_id", entityID),
						zap.String("file_id", a.FileID),
						zap.Error(err),
					)
				}
			}
		}
	}

	deleted, err := s.repo.DeleteByEntity(ctx, entityType, entityID)
	if err != nil {
		s.record("cleanup", entityType, "error")
		return 0, err
	}

	s.record("cleanup", entityType, "ok")
	return deleted, nil
}

// ListByEntity 按展示顺序列出实体附件，可选按子类型过滤
func (s *Service) ListByEntity(ctx context.Context, entityType, entityID, attachmentType string) ([]domain.Attachment, error) {
	if _, err := s.registry.Get(entityType); err != nil {
		return nil, err
	}
	attachments, err := s.repo.ListByEntity(ctx, entityType, entityID, attachmentType)
	if err != nil {
		return nil, err
	}
	if obs, ok := s.metrics.(ListObserver); ok {
		obs.ObserveAttachmentList(entityType, len(attachments))
	}
	return attachments, nil
}

// CountByEntity 实体当前附件数
func (s *Service) CountByEntity(ctx context.Context, entityType, entityID string) (int64, error) {
	if _, err := s.registry.Get(entityType); err != nil {
		return 0, err
	}
	return s.repo.CountByEntity(ctx, entityType, entityID)
}

// GetByID 按主键获取附件，缺失返回 NotFoundError
func (s *Service) GetByID(ctx context.Context, attachmentID string) (*domain.Attachment, error) {
	a, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &domain.NotFoundError{Resource: "attachment", ID: attachmentID}
	}
	return a, nil
}

// UpdateInput 附件记录的可更新字段
type UpdateInput struct {
	AttachmentType *string
	Metadata       domain.JSONMap
}

// UpdateByID 更新附件的子类型或元数据，缺失返回 NotFoundError
func (s *Service) UpdateByID(ctx context.Context, attachmentID string, input UpdateInput) (*domain.Attachment, error) {
	updates := map[string]any{}
	if input.AttachmentType != nil {
		updates["attachment_type"] = *input.AttachmentType
	}
	if input.Metadata != nil {
		updates["metadata"] = input.Metadata
	}

	if len(updates) > 0 {
		found, err := s.repo.UpdateByID(ctx, attachmentID, updates)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, &domain.NotFoundError{Resource: "attachment", ID: attachmentID}
		}
	}
	return s.GetByID(ctx, attachmentID)
}

// ListByFile 列出引用某文件的全部附件
func (s *Service) ListByFile(ctx context.Context, fileID string) ([]domain.Attachment, error) {
	return s.repo.ListByFile(ctx, fileID)
}

// CountByFile 某文件被引用的次数
func (s *Service) CountByFile(ctx context.Context, fileID string) (int64, error) {
	return s.repo.CountByFile(ctx, fileID)
}

// HasReachedLimit 实体附件数是否已达上限。
// 未配置 MaxFiles 的实体类型永远不会达到上限。
func (s *Service) HasReachedLimit(ctx context.Context, entityType, entityID string) (bool, error) {
	cfg, err := s.registry.Get(entityType)
	if err != nil {
		return false, err
	}
	if cfg.MaxFiles <= 0 {
		return false, nil
	}
	count, err := s.repo.CountByEntity(ctx, entityType, entityID)
	if err != nil {
		return false, err
	}
	return int(count) >= cfg.MaxFiles, nil
}

// Statistics 按文件所有者聚合附件使用统计（只读，无副作用）
func (s *Service) Statistics(ctx context.Context, userID string) (*domain.AttachmentStatistics, error) {
	return s.repo.Statistics(ctx, userID)
}

// Config 查询实体类型的附件配置
func (s *Service) Config(entityType string) (domain.AttachmentConfig, error) {
	return s.registry.Get(entityType)
}
