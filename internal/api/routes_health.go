package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/handlers"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/monitoring"
)

const defaultMetricsEndpoint = "/metrics"

func registerHealthRoutes(r *gin.Engine, deps Dependencies) {
	checker := deps.Health
	if checker == nil {
		checker = monitoring.NewChecker(0)
		checker.Register(monitoring.Database(deps.DB))
	}
	r.GET("/health", handlers.Health(checker))
	r.GET("/health/live", handlers.Liveness)

	if !deps.MetricsEnabled {
		return
	}
	endpoint := strings.TrimSpace(deps.MetricsEndpoint)
	if endpoint == "" {
		endpoint = defaultMetricsEndpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
