// Package repository 提供与具体表结构无关的通用 CRUD/列表仓储核心。
// 每个业务表通过 TableConfig + Mapper 绑定一个 Repository 实例，
// 核心本身不感知表的列集合。
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aegisx/backend/internal/query"
)

// Row 不透明的列名到值映射。
// 必须保持为类型别名：GORM 的 map 扫描路径按 *[]map[string]interface{}
// 精确匹配类型，独立命名的切片类型会落入结构体扫描分支而出错。
type Row = map[string]any

// Mapper 行与实体之间的显式转换钩子。
// ToRow 负责剔除目标表结构中不存在的字段，杜绝任意列写入。
type Mapper[E any] interface {
	ToEntity(row Row) E
	ToRow(data map[string]any) Row
}

// TableConfig 单表绑定配置
type TableConfig struct {
	Table         string            // 表名
	SearchColumns []string          // 子串搜索生效的列（限定名）
	SortColumns   map[string]string // 外部排序名 -> 内部限定列，闭合白名单
	DefaultSort   string            // 排序白名单未命中时的固定兜底列
	FilterColumns map[string]string // 可过滤的外部字段名 -> 列名
	HasCreatedAt  bool
	HasUpdatedAt  bool
	HasCreatedBy  bool
}

// SortColumn 将外部排序字段翻译为内部列。
// 白名单之外的名字一律落到 DefaultSort，防止任意列排序注入。
func (c TableConfig) SortColumn(field string) string {
	if col, ok := c.SortColumns[field]; ok {
		return col
	}
	return c.DefaultSort
}

// Repository 绑定到单个表的通用仓储
type Repository[E any] struct {
	db     *gorm.DB
	cfg    TableConfig
	mapper Mapper[E]
	log    *zap.Logger
}

// New 创建绑定到一个表的仓储实例
func New[E any](db *gorm.DB, cfg TableConfig, mapper Mapper[E], log *zap.Logger) *Repository[E] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository[E]{db: db, cfg: cfg, mapper: mapper, log: log}
}

// Create 插入一条经 Mapper 裁剪后的记录。
// created_at/updated_at 由仓储统一落定，绝不信任调用方传入的时间戳；
// 缺省主键时生成 UUID。
func (r *Repository[E]) Create(ctx context.Context, data map[string]any, createdBy string) (*E, error) {
	row := r.mapper.ToRow(data)

	id, _ := row["id"].(string)
	if id == "" {
		id = uuid.New().String()
		row["id"] = id
	}

	now := time.Now().UTC()
	delete(row, "created_at")
	delete(row, "updated_at")
	if r.cfg.HasCreatedAt {
		row["created_at"] = now
	}
	if r.cfg.HasUpdatedAt {
		row["updated_at"] = now
	}
	if r.cfg.HasCreatedBy && createdBy != "" {
		row["created_by"] = createdBy
	}

	if err := r.db.WithContext(ctx).Table(r.cfg.Table).Create(map[string]any(row)).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", r.cfg.Table, err)
	}

	return r.FindByID(ctx, id)
}

// FindByID 按主键查找。未命中返回 (nil, nil)：
// 缺失是否构成错误由调用方决定。
func (r *Repository[E]) FindByID(ctx context.Context, id string) (*E, error) {
	var rows []Row
	err := r.db.WithContext(ctx).
		Table(r.cfg.Table).
		Where(r.cfg.Table+".id = ?", id).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find %s by id: %w", r.cfg.Table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	entity := r.mapper.ToEntity(rows[0])
	return &entity, nil
}

// List 依次应用搜索、等值/范围过滤、白名单排序与分页。
// Pagination.Total 是应用除分页外全部条件后的行数；
// 超出末页的 Page 返回空集而非错误。
func (r *Repository[E]) List(ctx context.Context, q query.ListQuery) ([]E, query.Pagination, error) {
	q.Normalize()

	base := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Table(r.cfg.Table)

		if q.Search != "" && len(r.cfg.SearchColumns) > 0 {
			likes := make([]string, 0, len(r.cfg.SearchColumns))
			args := make([]any, 0, len(r.cfg.SearchColumns))
			for _, col := range r.cfg.SearchColumns {
				likes = append(likes, col+" LIKE ?")
				args = append(args, "%"+q.Search+"%")
			}
			tx = tx.Where(strings.Join(likes, " OR "), args...)
		}

		for _, f := range query.ParseFilters(q.Filters) {
			col, ok := r.cfg.FilterColumns[f.Field]
			if !ok {
				continue // 过滤字段集是闭合的，未登记即忽略
			}
			tx = tx.Where(fmt.Sprintf("%s %s ?", col, f.Op), f.Value)
		}
		return tx
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, query.Pagination{}, fmt.Errorf("count %s: %w", r.cfg.Table, err)
	}

	tx := base()
	if len(q.Fields) > 0 {
		tx = tx.Select(q.Fields)
	}

	sorts := query.ParseSort(q.Sort)
	if len(sorts) == 0 {
		tx = tx.Order(r.cfg.DefaultSort + " desc")
	} else {
		for _, s := range sorts {
			tx = tx.Order(r.cfg.SortColumn(s.Field) + " " + string(s.Direction))
		}
	}

	var rows []Row
	if err := tx.Offset(q.Offset()).Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, query.Pagination{}, fmt.Errorf("list %s: %w", r.cfg.Table, err)
	}

	entities := make([]E, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, r.mapper.ToEntity(row))
	}

	return entities, query.NewPagination(q.Page, q.Limit, total), nil
}

// Update 部分更新：只修改 partial 中出现的字段，缺席字段保持原值。
// 目标不存在返回 (nil, nil)。
func (r *Repository[E]) Update(ctx context.Context, id string, partial map[string]any) (*E, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	row := r.mapper.ToRow(partial)
	delete(row, "id")
	delete(row, "created_at")
	delete(row, "updated_at")
	if r.cfg.HasUpdatedAt {
		row["updated_at"] = time.Now().UTC()
	}

	if len(row) > 0 {
		err = r.db.WithContext(ctx).
			Table(r.cfg.Table).
			Where("id = ?", id).
			Updates(map[string]any(row)).Error
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", r.cfg.Table, err)
		}
	}

	return r.FindByID(ctx, id)
}

// Delete 按主键删除，返回是否确实删除了一行。
// 删除不存在的 id 返回 false 而非错误。
func (r *Repository[E]) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.cfg.Table), id)
	if res.Error != nil {
		return false, fmt.Errorf("delete %s: %w", r.cfg.Table, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Count 当前表总行数
func (r *Repository[E]) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Table(r.cfg.Table).Count(&total).Error
	return total, err
}
