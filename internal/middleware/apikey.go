package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"aegisx/backend/internal/domain"
)

// APIKeyValidator 校验原始 API Key 并返回其记录
type APIKeyValidator interface {
	Authenticate(ctx context.Context, rawKey string) (*domain.APIKey, error)
}

// APIKeyAuth API Key认证中间件
type APIKeyAuth struct {
	validator APIKeyValidator
}

// NewAPIKeyAuth 创建API Key认证中间件
func NewAPIKeyAuth(validator APIKeyValidator) *APIKeyAuth {
	return &APIKeyAuth{validator: validator}
}

// RequireAPIKey 要求API Key认证
func (m *APIKeyAuth) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader("X-API-Key")
		if rawKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			c.Abort()
			return
		}

		key, err := m.validator.Authenticate(c.Request.Context(), rawKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			c.Abort()
			return
		}

		// API Key 以创建者身份、管理角色访问
		c.Set("userID", key.CreatedBy)
		c.Set("role", string(domain.RoleAdmin))
		c.Set("apiKeyID", key.ID)

		c.Next()
	}
}
