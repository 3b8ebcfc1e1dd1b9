package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aegisx/backend/internal/domain"
)

// FileStore 文件登记表的查询与软删除。
// 同时满足附件子系统的 MIME 查询与级联删除两个协作接口。
type FileStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewFileStore 创建文件存取层
func NewFileStore(db *gorm.DB, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{db: db, log: log}
}

// FileMime 返回文件的 MIME 类型，未登记或已删除时 ok 为 false
func (s *FileStore) FileMime(ctx context.Context, fileID string) (string, bool, error) {
	var files []domain.FileUpload
	err := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", fileID).
		Limit(1).
		Find(&files).Error
	if err != nil {
		return "", false, err
	}
	if len(files) == 0 {
		return "", false, nil
	}
	return files[0].MimeType, true, nil
}

// Get 按主键返回文件记录，缺失返回 nil
func (s *FileStore) Get(ctx context.Context, fileID string) (*domain.FileUpload, error) {
	var files []domain.FileUpload
	err := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", fileID).
		Limit(1).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

// DeleteFile 软删除文件记录。
// 物理清理由独立的回收任务负责，这里只标记删除时间。
func (s *FileStore) DeleteFile(ctx context.Context, fileID string) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&domain.FileUpload{}).
		Where("id = ? AND deleted_at IS NULL", fileID).
		Update("deleted_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Debug("file soft deleted", zap.String("file_id", fileID))
	}
	return nil
}
