package attachment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegisx/backend/internal/domain"
)

func TestRegistry(t *testing.T) {
	t.Run("注册与查询", func(t *testing.T) {
		r, err := NewRegistry(
			domain.AttachmentConfig{EntityType: "budget_request", MaxFiles: 10},
			domain.AttachmentConfig{EntityType: "drug", MaxFiles: 5},
		)
		require.NoError(t, err)

		cfg, err := r.Get("drug")
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.MaxFiles)

		assert.Equal(t, []string{"budget_request", "drug"}, r.EntityTypes())
	})

	t.Run("未注册类型返回配置错误", func(t *testing.T) {
		r, err := NewRegistry(domain.AttachmentConfig{EntityType: "drug"})
		require.NoError(t, err)

		_, err = r.Get("unknown")
		var cfgErr *domain.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "unknown", cfgErr.EntityType)
	})

	t.Run("非法配置拒绝", func(t *testing.T) {
		_, err := NewRegistry(domain.AttachmentConfig{EntityType: ""})
		assert.Error(t, err)

		_, err = NewRegistry(
			domain.AttachmentConfig{EntityType: "drug"},
			domain.AttachmentConfig{EntityType: "drug"},
		)
		assert.Error(t, err)
	})

	t.Run("内置配置可注册", func(t *testing.T) {
		r, err := NewRegistry(DefaultConfigs()...)
		require.NoError(t, err)
		assert.NotEmpty(t, r.EntityTypes())
	})
}
