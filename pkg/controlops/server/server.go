// Package server assembles the HTTP router shared by the binary and the end-to-end tests.
package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/admin"
	"github.com/Subash107/control-ops-local1/pkg/controlops/audit"
	"github.com/Subash107/control-ops-local1/pkg/controlops/auth"
	"github.com/Subash107/control-ops-local1/pkg/controlops/config"
	"github.com/Subash107/control-ops-local1/pkg/controlops/favorites"
	"github.com/Subash107/control-ops-local1/pkg/controlops/health"
	"github.com/Subash107/control-ops-local1/pkg/controlops/logging"
	"github.com/Subash107/control-ops-local1/pkg/controlops/metrics"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tags"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tools"
)

// Dependencies are the collaborators the router is built from. Only Config
// and DB are required.
type Dependencies struct {
	Config  config.Config
	DB      *gorm.DB
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Checker *health.Checker
	// Sentry enables the sentry request hub; sentry.Init must already have run
	Sentry bool
}

// NewRouter builds the gin engine with every route registered
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	db := deps.DB
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	checker := deps.Checker
	if checker == nil {
		checker = health.NewChecker(db, health.Options{
			Timeout:     cfg.HealthCheckTimeout,
			Concurrency: cfg.HealthCheckConcurrency,
			Metrics:     deps.Metrics,
			Logger:      logger,
		})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if deps.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(logging.RequestLogger(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	}
	r.Use(securityHeaders())

	r.GET("/health", ok)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	limiter := auth.NewLoginLimiter(cfg.LoginRatePerMinute, cfg.LoginRateBurst)
	requireUser := auth.AuthMiddleware(tokens, db)

	api := r.Group("/api")
	{
		api.GET("/health", ok)

		// Auth routes (public except /me)
		authHandler := auth.NewHandler(db, tokens, limiter)
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Catalog routes (any authenticated user; writes require admin)
		toolsGroup := api.Group("/tools", requireUser)
		tools.NewHandler(db).RegisterRoutes(toolsGroup)
		tags.NewHandler(db).RegisterRoutes(toolsGroup)

		healthHandler := health.NewHandler(db, checker)
		healthHandler.RegisterToolRoutes(toolsGroup)

		favoritesHandler := favorites.NewHandler(db)
		favoritesHandler.RegisterToolRoutes(toolsGroup)
		favoritesHandler.RegisterMeRoutes(api.Group("/me", requireUser))

		// Admin routes (admin role required)
		adminGroup := api.Group("/admin", requireUser, auth.RequireAdmin())
		admin.NewHandler(db).RegisterRoutes(adminGroup)
		audit.NewHandler(db).RegisterRoutes(adminGroup)
		healthHandler.RegisterAdminRoutes(adminGroup)
	}

	return r
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logging.HeaderRequestID},
		ExposeHeaders:    []string{logging.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		// Browsers reject credentials with a wildcard origin
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Next()
	}
}
