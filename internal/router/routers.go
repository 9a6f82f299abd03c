package router

import (
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/handler"
	"github.com/Payphone-Digital/account-service/internal/middleware"
	"github.com/Payphone-Digital/account-service/pkg/metrics"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authHandler   *handler.AuthHandler
	userHandler   *handler.UserHandler
	healthHandler *handler.HealthHandler

	jwtMw   *middleware.JWTMiddleware
	limiter middleware.Limiter
	metrics *metrics.Metrics
	Config  *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	user *handler.UserHandler,
	health *handler.HealthHandler,

	jwtMw *middleware.JWTMiddleware,
	limiter middleware.Limiter,
	m *metrics.Metrics,
	config *config.Config,
) *Router {
	return &Router{
		authHandler:   auth,
		userHandler:   user,
		healthHandler: health,

		jwtMw:   jwtMw,
		limiter: limiter,
		metrics: m,
		Config:  config,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	if r.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestContext(r.Config.App.Timeout))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(r.Config.App.ClientURL))
	if r.metrics != nil {
		router.Use(middleware.Metrics(r.metrics))
	}

	if r.metrics != nil && r.Config.Metrics.Enabled {
		router.GET(r.Config.Metrics.Path, gin.WrapH(r.metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("/health", r.healthHandler.BasicHealth)
		api.GET("/health/ready", r.healthHandler.Ready)

		v1 := api.Group("/v1")
		{
			if r.limiter != nil && r.Config.RateLimit.Request > 0 {
				v1.Use(middleware.RateLimit(r.limiter, r.Config.RateLimit.Request))
			}

			r.authRoutes(v1)
		}
	}

	return router
}

// RateLimitWindow is the configured rate limit window.
func RateLimitWindow(cfg *config.Config) time.Duration {
	return time.Duration(cfg.RateLimit.Duration) * time.Second
}
