package attachment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aegisx/backend/internal/domain"
)

// Repository attachments 表的专属持久化层。
// 该表由本仓储独占；引用的文件内容与业务实体各有其所有者。
type Repository struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRepository 创建附件仓储
func NewRepository(db *gorm.DB, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{db: db, log: log}
}

// Transaction 在单个数据库事务内执行 fn。
// 读数-再写的序列（display_order 分配、重排、重整）必须走这里，
// 唯一索引是并发竞争下的最终兜底。
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, log: r.log})
	})
}

// isDuplicateErr 识别唯一约束冲突。
// TranslateError 开启时为 gorm.ErrDuplicatedKey，
// 各驱动的原始报文作为兜底匹配。
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "duplicate key") // postgres
}

// Insert 插入一条附件记录，唯一索引冲突翻译为 DuplicateAttachmentError
func (r *Repository) Insert(ctx context.Context, a *domain.Attachment) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if err != nil {
		if isDuplicateErr(err) {
			return &domain.DuplicateAttachmentError{
				EntityType: a.EntityType,
				EntityID:   a.EntityID,
				FileID:     a.FileID,
			}
		}
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

// Exists 判断 (entityType, entityID, fileID) 是否已存在
func (r *Repository) Exists(ctx context.Context, entityType, entityID, fileID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Attachment{}).
		Where("entity_type = ? AND entity_id = ? AND file_id = ?", entityType, entityID, fileID).
		Count(&count).Error
	return count > 0, err
}

// CountByEntity 返回实体当前附件数
func (r *Repository) CountByEntity(ctx context.Context, entityType, entityID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Attachment{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Count(&count).Error
	return count, err
}

// ListByEntity 按展示顺序返回实体的附件，可选按子类型过滤
func (r *Repository) ListByEntity(ctx context.Context, entityType, entityID, attachmentType string) ([]domain.Attachment, error) {
	tx := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	if attachmentType != "" {
		tx = tx.Where("attachment_type = ?", attachmentType)
	}

	var attachments []domain.Attachment
	err := tx.Order("display_order asc").Order("created_at asc").Find(&attachments).Error
	return attachments, err
}

// GetByID 按主键查找，未命中返回 (nil, nil)
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	var attachments []domain.Attachment
	err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	if len(attachments) == 0 {
		return nil, nil
	}
	return &attachments[0], nil
}

// UpdateByID 部分更新附件记录，返回是否命中
func (r *Repository) UpdateByID(ctx context.Context, id string, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Attachment{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByID 删除一条附件，返回是否命中
func (r *Repository) DeleteByID(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Attachment{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByEntity 删除实体的全部附件行，返回删除数量
func (r *Repository) DeleteByEntity(ctx context.Context, entityType, entityID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Delete(&domain.Attachment{})
	return res.RowsAffected, res.Error
}

// ListByFile 返回引用某文件的全部附件
func (r *Repository) ListByFile(ctx context.Context, fileID string) ([]domain.Attachment, error) {
	var attachments []domain.Attachment
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at asc").
		Find(&attachments).Error
	return attachments, err
}

// CountByFile 返回某文件被引用的次数
func (r *Repository) CountByFile(ctx context.Context, fileID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Attachment{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	return count, err
}

// SetDisplayOrder 更新单条附件的展示顺序
func (r *Repository) SetDisplayOrder(ctx context.Context, entityType, entityID, fileID string, order int) error {
	return r.db.WithContext(ctx).Model(&domain.Attachment{}).
		Where("entity_type = ? AND entity_id = ? AND file_id = ?", entityType, entityID, fileID).
		Update("display_order", order).Error
}

// Resequence 将实体附件的 display_order 重整为 0..n-1 的稠密序列。
// 删除或重排后调用，消除空洞。
func (r *Repository) Resequence(ctx context.Context, entityType, entityID string) error {
	attachments, err := r.ListByEntity(ctx, entityType, entityID, "")
	if err != nil {
		return err
	}
	for i, a := range attachments {
		if a.DisplayOrder == i {
			continue
		}
		err = r.db.WithContext(ctx).Model(&domain.Attachment{}).
			Where("id = ?", a.ID).
			Update("display_order", i).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Statistics 按文件所有者聚合附件使用情况
func (r *Repository) Statistics(ctx context.Context, userID string) (*domain.AttachmentStatistics, error) {
	dbx := r.db.WithContext(ctx)

	var totalFiles int64
	err := dbx.Model(&domain.FileUpload{}).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Count(&totalFiles).Error
	if err != nil {
		return nil, err
	}

	// 子查询不能跨语句复用，按需重建
	userFiles := func() *gorm.DB {
		return dbx.Model(&domain.FileUpload{}).
			Select("id").
			Where("user_id = ? AND deleted_at IS NULL", userID)
	}

	var withAttachments int64
	err = dbx.Model(&domain.Attachment{}).
		Where("file_id IN (?)", userFiles()).
		Distinct("file_id").
		Count(&withAttachments).Error
	if err != nil {
		return nil, err
	}

	var totalAttachments int64
	err = dbx.Model(&domain.Attachment{}).
		Where("file_id IN (?)", userFiles()).
		Count(&totalAttachments).Error
	if err != nil {
		return nil, err
	}

	return &domain.AttachmentStatistics{
		TotalFiles:              totalFiles,
		FilesWithAttachments:    withAttachments,
		FilesWithoutAttachments: totalFiles - withAttachments,
		TotalAttachments:        totalAttachments,
	}, nil
}
