package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aegisx/backend/internal/attachment"
	jwtpkg "aegisx/backend/internal/auth/jwt"
	"aegisx/backend/internal/config"
	"aegisx/backend/internal/logger"
	"aegisx/backend/internal/middleware"
	"aegisx/backend/internal/modules/apikeys"
	"aegisx/backend/internal/monitoring"
	"aegisx/backend/internal/storage"
	"aegisx/backend/internal/storage/redis"
	httptransport "aegisx/backend/internal/transport/http"
)

// main 启动实体访问与附件管理 API 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting aegisx server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化数据库
	db, err := storage.New(&cfg.Database, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize database: %v", err))
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		panic(fmt.Sprintf("failed to run migrations: %v", err))
	}
	log.Info("database ready", zap.String("type", cfg.Database.Type))

	// Redis 可选：未启用时限流退化为本地令牌桶
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(&cfg.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, falling back to local rate limiting", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	var redisPinger monitoring.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	healthChecker := monitoring.NewHealthChecker(db, redisPinger, log)

	// 附件子系统：配置注册表在启动期装配完成，运行期只读
	registry, err := attachment.NewRegistry(attachment.DefaultConfigs()...)
	if err != nil {
		panic(fmt.Sprintf("failed to build attachment registry: %v", err))
	}
	fileStore := storage.NewFileStore(db.DB(), log)
	attachmentService := attachment.NewService(
		registry,
		attachment.NewRepository(db.DB(), log),
		fileStore,
		fileStore,
		metrics,
		log,
	)

	// API 密钥模块
	apiKeyModule := apikeys.New(db.DB(), metrics, attachmentService, log)

	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	rateLimiter := middleware.NewRateLimiter(
		redisClient,
		metrics,
		cfg.RateLimit.RequestsPerMinute,
		cfg.RateLimit.Burst,
		log,
	)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:            cfg,
		AttachmentService: attachmentService,
		APIKeyModule:      apiKeyModule,
		JWTManager:        jwtManager,
		RateLimiter:       rateLimiter,
		Monitoring:        middleware.NewMonitoringMiddleware(metrics, log),
		Metrics:           metrics,
		Health:            healthChecker,
		Logger:            log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 运行时指标采集 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				var ms runtime.MemStats
				runtime.ReadMemStats(&ms)
				metrics.UpdateMemoryUsage(int64(ms.Alloc))

				if sqlDB, err := db.DB().DB(); err == nil {
					metrics.UpdateDatabaseConnections(sqlDB.Stats().OpenConnections)
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
			return err
		}
		log.Info("HTTP server stopped")
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}
