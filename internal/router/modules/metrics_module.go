package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-user-auth-service/internal/interface/middleware"
)

// MetricsModule exposes the Prometheus registry to private networks only.
type MetricsModule struct {
	Gatherer prometheus.Gatherer
	RDB      redis.Cmdable
}

func NewMetricsModule(g prometheus.Gatherer, rdb redis.Cmdable) *MetricsModule {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &MetricsModule{Gatherer: g, RDB: rdb}
}

func (m *MetricsModule) Register(rg *gin.RouterGroup) {
	// scrapers poll often; keep a per-IP ceiling anyway
	rl := middleware.RateLimit(m.RDB, 120, time.Minute, middleware.KeyByIP(), nil)
	h := promhttp.HandlerFor(m.Gatherer, promhttp.HandlerOpts{})
	rg.GET("/metrics", middleware.RequireAllowed(middleware.AllowPrivateIP()), rl, gin.WrapH(h))
}
