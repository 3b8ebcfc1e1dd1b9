package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aegisx/backend/internal/domain"
	"aegisx/backend/internal/fieldsec"
	"aegisx/backend/internal/query"
	"aegisx/backend/internal/repository"
)

// testProject 测试用业务实体
type testProject struct {
	ID        string
	Name      string
	Budget    float64
	Secret    string
	CreatedBy string
	CreatedAt time.Time
}

type testProjectMapper struct{}

func (testProjectMapper) ToEntity(row repository.Row) testProject {
	asString := func(v any) string { s, _ := v.(string); return s }
	asFloat := func(v any) float64 {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		default:
			return 0
		}
	}
	p := testProject{
		ID:        asString(row["id"]),
		Name:      asString(row["name"]),
		Budget:    asFloat(row["budget"]),
		Secret:    asString(row["secret"]),
		CreatedBy: asString(row["created_by"]),
	}
	if t, ok := row["created_at"].(time.Time); ok {
		p.CreatedAt = t
	}
	return p
}

func (testProjectMapper) ToRow(data map[string]any) repository.Row {
	row := repository.Row{}
	for _, col := range []string{"id", "name", "budget", "secret"} {
		if v, ok := data[col]; ok {
			row[col] = v
		}
	}
	return row
}

func newTestEntityService(t *testing.T, opts ...Option[testProject]) *EntityService[testProject] {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE test_projects (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255),
		budget REAL,
		secret VARCHAR(255),
		created_by VARCHAR(36),
		created_at DATETIME,
		updated_at DATETIME
	)`).Error
	require.NoError(t, err)

	cfg := repository.TableConfig{
		Table:         "test_projects",
		SearchColumns: []string{"test_projects.name"},
		SortColumns: map[string]string{
			"name":      "test_projects.name",
			"createdAt": "test_projects.created_at",
		},
		DefaultSort: "test_projects.created_at",
		FilterColumns: map[string]string{
			"budget": "test_projects.budget",
		},
		HasCreatedAt: true,
		HasUpdatedAt: true,
		HasCreatedBy: true,
	}
	repo := repository.New[testProject](db, cfg, testProjectMapper{}, nil)

	fields := fieldsec.New(map[domain.Role][]string{
		domain.RolePublic: {"id", "name"},
		domain.RoleUser:   {"id", "name", "created_at"},
		domain.RoleAdmin:  {"id", "name", "budget", "secret", "created_by", "created_at"},
	}, nil, nil)

	return NewEntityService[testProject]("project", repo, fields, nil, opts...)
}

func adminActor() Actor {
	return Actor{UserID: "u-admin", Role: domain.RoleAdmin, IP: "127.0.0.1"}
}

func TestEntityServiceCreate(t *testing.T) {
	t.Run("创建成功并记录操作者", func(t *testing.T) {
		svc := newTestEntityService(t)

		created, err := svc.Create(context.Background(), map[string]any{
			"name":   "Alpha",
			"budget": 1000.0,
		}, adminActor())

		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Alpha", created.Name)
		assert.Equal(t, "u-admin", created.CreatedBy)
		assert.False(t, created.CreatedAt.IsZero())
	})

	t.Run("创建前钩子失败阻止落库", func(t *testing.T) {
		hookErr := errors.New("name is required")
		svc := newTestEntityService(t, WithPreCreate[testProject](func(_ context.Context, data map[string]any) error {
			if data["name"] == nil {
				return hookErr
			}
			return nil
		}))

		_, err := svc.Create(context.Background(), map[string]any{"budget": 1.0}, adminActor())
		assert.ErrorIs(t, err, hookErr)
	})
}

func TestEntityServiceGet(t *testing.T) {
	svc := newTestEntityService(t)

	created, err := svc.Create(context.Background(), map[string]any{"name": "Beta"}, adminActor())
	require.NoError(t, err)

	t.Run("按ID读取成功", func(t *testing.T) {
		got, err := svc.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Beta", got.Name)
	})

	t.Run("缺失返回NotFoundError", func(t *testing.T) {
		_, err := svc.Get(context.Background(), "missing")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestEntityServiceList(t *testing.T) {
	svc := newTestEntityService(t)
	ctx := context.Background()

	for _, name := range []string{"Gamma", "Delta", "Epsilon"} {
		_, err := svc.Create(ctx, map[string]any{"name": name, "secret": "s3cret"}, adminActor())
		require.NoError(t, err)
	}

	t.Run("普通角色的投影被白名单裁剪", func(t *testing.T) {
		items, page, err := svc.List(ctx, query.ListQuery{
			Fields: []string{"id", "name", "secret"},
		}, Actor{UserID: "u-1", Role: domain.RoleUser})

		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		for _, item := range items {
			assert.Empty(t, item.Secret)
			assert.NotEmpty(t, item.Name)
		}
	})

	t.Run("管理员可以读取全部字段", func(t *testing.T) {
		items, _, err := svc.List(ctx, query.ListQuery{
			Fields: []string{"id", "name", "secret"},
		}, adminActor())

		require.NoError(t, err)
		for _, item := range items {
			assert.Equal(t, "s3cret", item.Secret)
		}
	})

	t.Run("搜索与排序联动", func(t *testing.T) {
		items, page, err := svc.List(ctx, query.ListQuery{
			Search: "lta",
			Sort:   "name:asc",
		}, adminActor())

		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, items, 1)
		assert.Equal(t, "Delta", items[0].Name)
	})
}

func TestEntityServiceUpdate(t *testing.T) {
	t.Run("部分更新只改出现的字段", func(t *testing.T) {
		svc := newTestEntityService(t)
		ctx := context.Background()

		created, err := svc.Create(ctx, map[string]any{"name": "Zeta", "budget": 10.0}, adminActor())
		require.NoError(t, err)

		updated, err := svc.Update(ctx, created.ID, map[string]any{"budget": 25.0}, adminActor())
		require.NoError(t, err)
		assert.Equal(t, "Zeta", updated.Name)
		assert.Equal(t, 25.0, updated.Budget)
	})

	t.Run("更新前钩子可以剔除字段", func(t *testing.T) {
		svc := newTestEntityService(t, WithPreUpdate[testProject](func(_ context.Context, partial map[string]any) error {
			delete(partial, "secret")
			return nil
		}))
		ctx := context.Background()

		created, err := svc.Create(ctx, map[string]any{"name": "Eta", "secret": "orig"}, adminActor())
		require.NoError(t, err)

		updated, err := svc.Update(ctx, created.ID, map[string]any{"secret": "tampered", "name": "Eta2"}, adminActor())
		require.NoError(t, err)
		assert.Equal(t, "orig", updated.Secret)
		assert.Equal(t, "Eta2", updated.Name)
	})

	t.Run("更新缺失目标返回NotFoundError", func(t *testing.T) {
		svc := newTestEntityService(t)
		_, err := svc.Update(context.Background(), "missing", map[string]any{"name": "x"}, adminActor())
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestEntityServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("删除成功并触发删除后钩子", func(t *testing.T) {
		var cleaned []string
		svc := newTestEntityService(t, WithPostDelete[testProject](func(_ context.Context, id string) error {
			cleaned = append(cleaned, id)
			return nil
		}))

		created, err := svc.Create(ctx, map[string]any{"name": "Theta"}, adminActor())
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, created.ID))
		assert.Equal(t, []string{created.ID}, cleaned)

		_, err = svc.Get(ctx, created.ID)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("非级联引用阻塞删除", func(t *testing.T) {
		svc := newTestEntityService(t, WithRefCheck[testProject](func(_ context.Context, id string) ([]domain.BlockingRef, error) {
			return []domain.BlockingRef{
				{Table: "orders", Field: "project_id", Count: 2, Cascade: false},
				{Table: "attachments", Field: "entity_id", Count: 1, Cascade: true},
			}, nil
		}))

		created, err := svc.Create(ctx, map[string]any{"name": "Iota"}, adminActor())
		require.NoError(t, err)

		err = svc.Delete(ctx, created.ID)
		var refErr *domain.ReferentialIntegrityError
		require.ErrorAs(t, err, &refErr)
		require.Len(t, refErr.BlockedBy, 1)
		assert.Equal(t, "orders", refErr.BlockedBy[0].Table)

		// 被阻塞的实体仍然存在
		got, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Iota", got.Name)
	})

	t.Run("仅级联引用不阻塞删除", func(t *testing.T) {
		svc := newTestEntityService(t, WithRefCheck[testProject](func(_ context.Context, id string) ([]domain.BlockingRef, error) {
			return []domain.BlockingRef{
				{Table: "attachments", Field: "entity_id", Count: 3, Cascade: true},
			}, nil
		}))

		created, err := svc.Create(ctx, map[string]any{"name": "Kappa"}, adminActor())
		require.NoError(t, err)
		assert.NoError(t, svc.Delete(ctx, created.ID))
	})

	t.Run("删除后钩子失败不回滚主删除", func(t *testing.T) {
		svc := newTestEntityService(t, WithPostDelete[testProject](func(_ context.Context, _ string) error {
			return errors.New("cleanup failed")
		}))

		created, err := svc.Create(ctx, map[string]any{"name": "Lambda"}, adminActor())
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, created.ID))
		_, err = svc.Get(ctx, created.ID)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("删除缺失目标返回NotFoundError", func(t *testing.T) {
		svc := newTestEntityService(t)
		assert.True(t, domain.IsNotFound(svc.Delete(ctx, "missing")))
	})
}
