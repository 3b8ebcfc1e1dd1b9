package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可被健康检查探测的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	log    *zap.Logger
}

// NewHealthChecker 创建健康检查器。
// db 参与存活与就绪检查；redis 可为 nil（未启用时不探测）。
func NewHealthChecker(db Pinger, redis Pinger, log *zap.Logger) *HealthChecker {
	if log == nil {
		log = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		log:    log,
	}

	hc.health.AddReadinessCheck("database", pingCheck(db))
	hc.health.AddLivenessCheck("database", pingCheck(db))

	if redis != nil {
		hc.health.AddReadinessCheck("redis", pingCheck(redis))
	}

	// goroutine 泄漏保护
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))

	return hc
}

func pingCheck(p Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return p.Ping(ctx)
	}
}

// LiveEndpoint 存活探针处理器
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针处理器
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}
