// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"time"

	"matchday/internal/cache"
	"matchday/internal/config"
	"matchday/internal/database"
	"matchday/internal/edge"
	"matchday/internal/featureflags"
	"matchday/internal/middleware"
	"matchday/internal/models"
	"matchday/internal/notifications"
	"matchday/internal/repository"
	"matchday/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	edge           *edge.Client
	profileRepo    repository.ProfileRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	publisher      *realtimePublisher
	featureFlags   *featureflags.Manager
	stopLikeFeed   func()

	postService         *service.PostService
	commentService      *service.CommentService
	profileService      *service.ProfileService
	accountService      *service.AccountService
	preferencesService  *service.PreferencesService
	moderationService   *service.ModerationService
	notificationService *service.NotificationService
}

// NewServerWithDeps creates a Server using already-initialized dependencies,
// usually the ones bootstrap.InitRuntime returns. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	edgeClient := edge.NewClient(edge.Config{
		FunctionsURL: cfg.EdgeFunctionsURL,
		AuthURL:      cfg.AuthURL,
		ServiceKey:   cfg.EdgeFunctionsKey,
	})

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("matchday-api"),
		edge:           edgeClient,
		profileRepo:    profileRepo,
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}
	server.publisher = &realtimePublisher{notifier: server.notifier, hub: server.hub}

	// Without a hosted metrics function the post page uses local counts.
	var metrics service.MetricsSource
	if cfg.EdgeFunctionsURL != "" {
		metrics = edgeClient
	}

	server.notificationService = service.NewNotificationService(
		notificationRepo, server.publisher, server.featureFlags, cfg.NotificationWindow)
	server.postService = service.NewPostService(
		postRepo, metrics, cache.NewRecentSearches(redisClient, cfg.RecentSearchLimit))
	server.commentService = service.NewCommentService(
		commentRepo, postRepo, profileRepo, server.notificationService, server.featureFlags,
		cache.NewLikeStateCache(cache.DefaultLikeStateSize, cache.DefaultLikeStateTTL), nil)
	server.profileService = service.NewProfileService(profileRepo)
	server.accountService = service.NewAccountService(edgeClient, server.profileService)
	server.preferencesService = service.NewPreferencesService(cache.NewPreferenceStore(redisClient))
	server.moderationService = service.NewModerationService(reportRepo, postRepo, commentRepo)

	server.stopLikeFeed = server.commentService.Likes().Subscribe(server.publishLikeState)

	return server, nil
}

const (
	globalRateLimit  = 100
	globalRateWindow = time.Minute
)

var defaultOrigins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"

// SetupMiddleware installs the global chain. CORS sits ahead of the limiter so
// a 429 still carries the allow-origin header the browser needs to read it.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(
		recover.New(),
		requestid.New(),
		middleware.TracingMiddleware(),
		middleware.ContextMiddleware(),
	)
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(
		helmet.New(),
		middleware.StructuredLogger(),
		cors.New(s.corsConfig()),
		limiter.New(globalLimiterConfig()),
	)
}

func (s *Server) corsConfig() cors.Config {
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Accept-Language, Authorization, Idempotency-Key, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		ExposeHeaders:    "X-Request-ID, X-Trace-ID",
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	}
}

// globalLimiterConfig caps requests per client IP. Preflights are exempt.
func globalLimiterConfig() limiter.Config {
	return limiter.Config{
		Max:        globalRateLimit,
		Expiration: globalRateWindow,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return models.Respond(c, models.NewRateLimitedError("too many requests, slow down"))
		},
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	// Public reads identify the viewer when a token is sent.
	publicPosts := api.Group("/posts", middleware.OptionalAuth)
	publicPosts.Get("/", s.GetPosts)
	publicPosts.Get("/search", middleware.RateLimit(s.redis, middleware.SearchQuota), s.SearchPosts)
	publicPosts.Get("/:id/comments", s.GetComments)
	publicPosts.Get("/:id", s.GetPost)

	api.Get("/profiles/:id", s.GetProfile)

	// Browsers cannot set headers on the upgrade request, so the token may come as ?token=.
	// Registered before the protected group so header-only auth never sees it.
	api.Get("/ws", middleware.WebSocketAuthRequired, s.WebsocketHandler())

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	posts := protected.Group("/posts")
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, middleware.CommentQuota), s.CreateComment)
	posts.Post("/:id/bookmark", s.ToggleBookmark)
	posts.Post("/:id/reports", middleware.RateLimit(s.redis, middleware.ReportQuota), s.ReportPost)

	comments := protected.Group("/comments")
	comments.Post("/:id/like", s.ToggleCommentLike)
	comments.Post("/:id/reports", middleware.RateLimit(s.redis, middleware.ReportQuota), s.ReportComment)
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	search := protected.Group("/search")
	search.Get("/recent", s.GetRecentSearches)
	search.Delete("/recent", s.ClearRecentSearches)

	// Define specific routes BEFORE generic /:id routes
	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Post("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)

	me := protected.Group("/me")
	me.Get("/", s.GetMyProfile)
	me.Put("/", s.UpdateMyProfile)
	me.Post("/provision", s.ProvisionAccount)
	me.Post("/password", middleware.RateLimit(s.redis, middleware.PasswordQuota), s.ChangePassword)
	me.Get("/preferences", s.GetPreferences)
	me.Put("/preferences", s.UpdatePreferences)

	moderation := protected.Group("/moderation", s.ModeratorRequired())
	moderation.Get("/feature-flags", s.GetFeatureFlags)
	moderation.Get("/reports", s.GetReports)
	moderation.Post("/reports/:kind/:id/approve", s.ApproveReport)
	moderation.Post("/reports/:kind/:id/dismiss", s.DismissReport)
	moderation.Post("/reports/:kind/:id/delete-target", s.DeleteReportedTarget)
}

// LivenessCheck answers liveness checks.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

func pingDB(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return "unavailable"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "unhealthy"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// ReadinessCheck answers readiness checks. Redis is optional: without
// it the API still serves everything except search history and preferences.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := pingDB(ctx, s.db)
	checks := fiber.Map{"database": dbStatus}
	if database.ReadDB != nil && database.ReadDB != s.db {
		checks["read_replica"] = pingDB(ctx, database.ReadDB)
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}
	checks["redis"] = redisStatus

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus != "healthy" || redisStatus == "unhealthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus == "unavailable":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": checks,
		"time":   time.Now(),
	})
}

// ModeratorRequired returns middleware that rejects viewers whose role cannot
// review reports. Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) ModeratorRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		profile, err := s.profileRepo.GetByID(c.UserContext(), middleware.UserID(c))
		if err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusForbidden,
					models.NewForbiddenError("Moderator access required"))
			}
			return models.Respond(c, err)
		}
		if profile.IsBanned || !profile.Role.CanModerate() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Moderator access required"))
		}
		c.Locals("role", profile.Role)
		return c.Next()
	}
}

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(middleware.UserID(c)),
	})
}

// NewApp builds the Fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Matchday API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Fiber's own errors (404 route, 405) keep their status
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	// Wire the hub to the Redis subscriber if available
	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring", "hub", s.hub.Name(), "error", err)
			}
		}()
	}

	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the wiring goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	if s.stopLikeFeed != nil {
		s.stopLikeFeed()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Close WebSocket connections gracefully
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err)
	}

	if err := s.edge.Close(); err != nil {
		middleware.Logger.Error("error closing edge client", "error", err)
	}

	dbs := []*gorm.DB{s.db}
	if database.ReadDB != nil && database.ReadDB != s.db {
		dbs = append(dbs, database.ReadDB)
	}
	for _, db := range dbs {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", "error", cerr)
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
