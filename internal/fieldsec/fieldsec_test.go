package fieldsec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"aegisx/backend/internal/domain"
)

type countingRecorder struct {
	calls []string
}

func (r *countingRecorder) RecordSuspiciousProjection(role string) {
	r.calls = append(r.calls, role)
}

func newTestAllowlist(rec SignalRecorder) *Allowlist {
	return New(map[domain.Role][]string{
		domain.RolePublic: {"id", "category_code", "created_at"},
		domain.RoleUser:   {"id", "category_code", "name", "created_at"},
		domain.RoleAdmin:  {"id", "category_code", "name", "secret_column", "created_at"},
	}, zap.NewNop(), rec)
}

func TestAllowlistResolve(t *testing.T) {
	t.Run("白名单之外的字段不会泄漏", func(t *testing.T) {
		a := newTestAllowlist(nil)

		effective := a.Resolve(domain.RolePublic,
			[]string{"id", "category_code", "secret_column"}, Caller{})

		assert.Equal(t, []string{"id", "category_code"}, effective)
	})

	t.Run("空请求返回角色缺省投影", func(t *testing.T) {
		a := newTestAllowlist(nil)

		effective := a.Resolve(domain.RoleUser, nil, Caller{})

		assert.Equal(t, []string{"id", "category_code", "name", "created_at"}, effective)
	})

	t.Run("交集为空时回落到缺省投影并上报信号", func(t *testing.T) {
		rec := &countingRecorder{}
		a := newTestAllowlist(rec)

		effective := a.Resolve(domain.RolePublic,
			[]string{"secret_column", "password_hash"}, Caller{UserID: "u-1", IP: "10.0.0.1"})

		// 不是错误，而是回落 + 审计
		assert.Equal(t, []string{"id", "category_code", "created_at"}, effective)
		assert.Equal(t, []string{"public"}, rec.calls)
	})

	t.Run("部分越权请求同样上报信号", func(t *testing.T) {
		rec := &countingRecorder{}
		a := newTestAllowlist(rec)

		effective := a.Resolve(domain.RolePublic, []string{"id", "secret_column"}, Caller{})

		assert.Equal(t, []string{"id"}, effective)
		assert.Len(t, rec.calls, 1)
	})

	t.Run("未识别的角色按最小权限处理", func(t *testing.T) {
		a := newTestAllowlist(nil)

		effective := a.Resolve(domain.Role("superduper"), []string{"secret_column", "id"}, Caller{})

		assert.Equal(t, []string{"id"}, effective)
	})

	t.Run("管理员可见受限列", func(t *testing.T) {
		a := newTestAllowlist(nil)

		effective := a.Resolve(domain.RoleAdmin, []string{"id", "secret_column"}, Caller{})

		assert.Equal(t, []string{"id", "secret_column"}, effective)
	})
}

func TestAllowlistRequiresPublicEntry(t *testing.T) {
	t.Run("缺少public条目直接panic", func(t *testing.T) {
		assert.Panics(t, func() {
			New(map[domain.Role][]string{
				domain.RoleAdmin: {"id", "name"},
			}, zap.NewNop(), nil)
		})
	})

	t.Run("空的public条目同样panic", func(t *testing.T) {
		assert.Panics(t, func() {
			New(map[domain.Role][]string{
				domain.RolePublic: {},
				domain.RoleAdmin:  {"id", "name"},
			}, zap.NewNop(), nil)
		})
	})

	t.Run("合法白名单正常创建", func(t *testing.T) {
		assert.NotPanics(t, func() {
			New(map[domain.Role][]string{
				domain.RolePublic: {"id"},
			}, zap.NewNop(), nil)
		})
	})
}
