package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"code-analyzer/internal/runs"
	"code-analyzer/internal/services/health"
	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/shared/metrics"
	"code-analyzer/internal/shared/server/middleware"
	"code-analyzer/internal/shared/server/respond"
)

// RouterDeps carries what the HTTP surface needs.
type RouterDeps struct {
	Config      config.Config
	RunsHandler *runs.Handler
	// Health defaults to a check without a database.
	Health *health.Service
	// Limiter is shared across routers in tests; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

var availableRoutes = []string{"/api/v1/health", "/api/v1/analyze", "/api/v1/analyses", "/metrics"}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigins),
	)

	analyzeLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Limiter: deps.Limiter,
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: deps.Config.HTTPRateLimit, Burst: deps.Config.HTTPRateBurst},
		},
	})

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(deps.Config.Version, nil)
	}
	api.GET("/health", func(c *gin.Context) {
		st := healthSvc.Check(c.Request.Context())
		code := http.StatusOK
		if !st.Healthy() {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, gin.H{
			"status":     st.Status,
			"version":    st.Version,
			"database":   st.Database,
			"request_id": middleware.RequestIDFromContext(c),
		})
	})
	if deps.RunsHandler != nil {
		deps.RunsHandler.RegisterRoutes(api, analyzeLimit)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "Route not found", gin.H{
			"available_routes": availableRoutes,
		})
	})

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
