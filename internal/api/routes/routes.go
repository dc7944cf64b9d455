package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/api/handlers"
	"github.com/Wikid82/phishguard/internal/api/middleware"
	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/defense"
	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/jobs"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/queue"
	"github.com/Wikid82/phishguard/internal/services"
	"github.com/Wikid82/phishguard/internal/shield"
	"github.com/Wikid82/phishguard/internal/trust"
)

// Deps are the long-lived components shared between the API and the workers.
// Shield and Registry may be nil.
type Deps struct {
	Queue         queue.Queue
	Coordinator   *jobs.Coordinator
	Scorer        *trust.Scorer
	Detector      *detector.Detector
	Engine        *defense.Engine
	Shield        *shield.Shield
	Notifications *services.NotificationService
	Registry      *prometheus.Registry
}

// Register wires up API routes. ctx bounds background work owned by the
// routes, such as rate limiter cleanup.
func Register(ctx context.Context, router *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) error {
	if deps.Coordinator == nil || deps.Queue == nil || deps.Scorer == nil || deps.Detector == nil || deps.Engine == nil {
		return fmt.Errorf("register routes: missing dependencies")
	}

	healthHandler := handlers.NewHealthHandler(db, deps.Queue)
	router.GET("/", handlers.Index)
	router.GET("/health", healthHandler.Health)
	if deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	api.GET("/health", healthHandler.Health)

	// The shield inspects every API request for attack payloads and blacklisted clients
	if deps.Shield != nil && deps.Shield.IsEnabled() {
		api.Use(deps.Shield.Middleware())
	}

	submissions := services.NewSubmissionService(db)
	security := services.NewSecurityService(db)
	notifications := deps.Notifications
	if notifications == nil {
		notifications = services.NewNotificationService(db, nil)
	}

	authService := services.NewAuthService(db, cfg)
	authHandler := handlers.NewAuthHandler(authService, cfg.IsProduction())
	authMiddleware := middleware.AuthMiddleware(authService)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	submissionHandler := handlers.NewSubmissionHandler(deps.Coordinator, submissions)
	trustHandler := handlers.NewTrustHandler(deps.Scorer)
	trainingHandler := handlers.NewTrainingHandler(services.NewTrainingService(db))

	// Intake endpoints are rate limited per client IP
	intake := api.Group("/")
	if cfg.Security.RateLimitRPS > 0 {
		intake.Use(middleware.RateLimiter(ctx, cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst))
	}
	intake.POST("/submit", middleware.OptionalAuth(authService), submissionHandler.Submit)
	intake.GET("/verify", trustHandler.Verify)
	intake.POST("/auth/login", authHandler.Login)
	intake.POST("/auth/register", authHandler.Register)

	api.GET("/status/:job_id", submissionHandler.Status)
	api.GET("/submission/:job_id", submissionHandler.Status)
	api.GET("/stats", submissionHandler.Stats)
	api.GET("/training", trainingHandler.List)
	api.GET("/training/:id", trainingHandler.Get)

	quarantineHandler := handlers.NewQuarantineHandler(services.NewQuarantineService(db), security, deps.Detector, deps.Engine)
	blacklistHandler := handlers.NewBlacklistHandler(services.NewBlacklistService(db), security)

	protected := api.Group("/")
	protected.Use(authMiddleware)
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)
		protected.GET("/submissions", submissionHandler.List)
		protected.POST("/quarantine/scan-file", quarantineHandler.ScanFile)
		protected.GET("/blacklist/check", blacklistHandler.Check)
	}

	admin := api.Group("/")
	admin.Use(authMiddleware, adminOnly)
	{
		admin.GET("/quarantine", quarantineHandler.List)
		admin.GET("/quarantine/:id", quarantineHandler.Get)
		admin.POST("/quarantine/:id/release", quarantineHandler.Release)

		admin.GET("/blacklist", blacklistHandler.List)
		admin.POST("/blacklist", blacklistHandler.Add)
		admin.DELETE("/blacklist/:id", blacklistHandler.Deactivate)

		securityHandler := handlers.NewSecurityHandler(services.NewAttackLogService(db), security, deps.Engine)
		admin.GET("/attacks", securityHandler.ListAttacks)
		admin.GET("/attacks/pattern", securityHandler.AttackPattern)
		admin.POST("/security/review/:ip", securityHandler.ReviewIP)
		admin.GET("/security/decisions", securityHandler.ListDecisions)
		admin.GET("/security/audits", securityHandler.ListAudits)

		notificationHandler := handlers.NewNotificationHandler(notifications)
		admin.GET("/notifications", notificationHandler.List)
		admin.POST("/notifications/:id/read", notificationHandler.MarkAsRead)
		admin.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return nil
}
