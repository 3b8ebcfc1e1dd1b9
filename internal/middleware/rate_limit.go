package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"aegisx/backend/internal/monitoring"
	"aegisx/backend/internal/storage/redis"
)

// RateLimiter 基于 Redis 计数的分布式限流器。
// Redis 未启用或出错时退化为进程内令牌桶，宁可放行也不误杀。
type RateLimiter struct {
	redis   *redis.Client
	metrics *monitoring.Metrics
	log     *zap.Logger

	perMinute int
	burst     int

	mu     sync.Mutex
	local  map[string]*rate.Limiter
	lastGC time.Time
}

// NewRateLimiter 创建限流器。redis 和 metrics 可为 nil。
func NewRateLimiter(redisClient *redis.Client, metrics *monitoring.Metrics, perMinute, burst int, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		redis:     redisClient,
		metrics:   metrics,
		log:       log,
		perMinute: perMinute,
		burst:     burst,
		local:     make(map[string]*rate.Limiter),
		lastGC:    time.Now(),
	}
}

// Limit 按客户端 IP 限流的中间件
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		allowed := rl.allow(c, key)
		if !allowed {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock("http", key)
			}
			c.Header("Retry-After", "60")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context, key string) bool {
	if rl.redis != nil {
		count, err := rl.redis.IncrementRateLimit(c.Request.Context(),
			fmt.Sprintf("ratelimit:http:%s", key), time.Minute)
		if err == nil {
			return count <= int64(rl.perMinute)
		}
		rl.log.Warn("redis rate limit check failed, falling back to local limiter",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return rl.localLimiter(key).Allow()
}

// localLimiter 返回该 key 的进程内令牌桶，按需创建
func (rl *RateLimiter) localLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// 低频回收，避免 map 无界增长
	if time.Since(rl.lastGC) > 10*time.Minute && len(rl.local) > 10000 {
		rl.local = make(map[string]*rate.Limiter)
		rl.lastGC = time.Now()
	}

	limiter, ok := rl.local[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.burst)
		rl.local[key] = limiter
	}
	return limiter
}
