package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aegisx/backend/internal/attachment"
	jwtpkg "aegisx/backend/internal/auth/jwt"
	"aegisx/backend/internal/config"
	"aegisx/backend/internal/middleware"
	"aegisx/backend/internal/modules/apikeys"
	"aegisx/backend/internal/monitoring"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config            *config.Config
	AttachmentService *attachment.Service
	APIKeyModule      *apikeys.Module
	JWTManager        *jwtpkg.Manager
	RateLimiter       *middleware.RateLimiter
	Monitoring        *middleware.MonitoringMiddleware
	Metrics           *monitoring.Metrics
	Health            *monitoring.HealthChecker
	Logger            *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(deps.Config.Server.MaxBodySize))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	if deps.Monitoring != nil {
		router.Use(deps.Monitoring.HTTPMetrics())
	}
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Limit())
	}

	// 健康检查与指标端点不经过认证
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// 创建处理器
	attachmentHandler := NewAttachmentHandler(deps.AttachmentService, deps.Logger)
	apiKeyHandler := NewAPIKeyHandler(deps.APIKeyModule, deps.Logger)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	apiKeyAuth := middleware.NewAPIKeyAuth(deps.APIKeyModule)

	v1 := router.Group("/v1")
	v1.Use(jwtAuth.RequireAuth())
	{
		// 附件子系统。
		// 动态路由首段统一命名为 :id：单条附件路由取附件 ID，
		// 实体路由取实体类型，由第二段的有无区分两种形态。
		attachments := v1.Group("/attachments")
		{
			attachments.POST("", attachmentHandler.Attach)
			attachments.POST("/bulk", attachmentHandler.BulkAttach)
			attachments.GET("/stats", attachmentHandler.Statistics)
			attachments.GET("/config/:entityType", attachmentHandler.Config)
			attachments.GET("/by-file/:fileId", attachmentHandler.ListByFile)
			attachments.GET("/by-file/:fileId/count", attachmentHandler.CountByFile)

			attachments.GET("/:id", attachmentHandler.GetByID)
			attachments.PATCH("/:id", attachmentHandler.UpdateByID)
			attachments.DELETE("/:id", attachmentHandler.Remove)

			attachments.GET("/:id/:entityId", attachmentHandler.ListByEntity)
			attachments.GET("/:id/:entityId/count", attachmentHandler.CountByEntity)
			attachments.PUT("/:id/:entityId/reorder", attachmentHandler.Reorder)
			attachments.DELETE("/:id/:entityId", attachmentHandler.CleanupEntity)
		}

		// API 密钥管理仅对管理员开放
		keys := v1.Group("/apikeys")
		keys.Use(jwtAuth.RequireAdmin())
		{
			keys.POST("", apiKeyHandler.Create)
			keys.GET("", apiKeyHandler.List)
			keys.GET("/:id", apiKeyHandler.Get)
			keys.PATCH("/:id", apiKeyHandler.Update)
			keys.DELETE("/:id", apiKeyHandler.Delete)
		}
	}

	// 服务间调用走 API 密钥认证，与 JWT 通道隔离
	external := router.Group("/external/v1")
	external.Use(apiKeyAuth.RequireAPIKey())
	{
		ext := external.Group("/attachments")
		{
			ext.POST("", attachmentHandler.Attach)
			ext.GET("/:id/:entityId", attachmentHandler.ListByEntity)
			ext.GET("/:id/:entityId/count", attachmentHandler.CountByEntity)
			ext.DELETE("/:id/:entityId", attachmentHandler.CleanupEntity)
		}
	}

	return router
}
