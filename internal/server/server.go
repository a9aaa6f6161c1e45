// Package server contains the HTTP and WebSocket handlers of the moderation API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faireye-hive/hive-cache/internal/bootstrap"
	"github.com/faireye-hive/hive-cache/internal/cache"
	"github.com/faireye-hive/hive-cache/internal/config"
	"github.com/faireye-hive/hive-cache/internal/database"
	"github.com/faireye-hive/hive-cache/internal/featureflags"
	"github.com/faireye-hive/hive-cache/internal/middleware"
	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/notifications"
	"github.com/faireye-hive/hive-cache/internal/repository"
	"github.com/faireye-hive/hive-cache/internal/scanner"
	"github.com/faireye-hive/hive-cache/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
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
	logger         *slog.Logger

	queue         *notifications.Queue
	notifier      *notifications.Notifier
	hub           *notifications.Hub
	dispatcher    *notifications.Dispatcher
	confirmations *notifications.Confirmations
	featureFlags  *featureflags.Manager
	runner        *scanner.Runner
	scheduler     *scanner.Scheduler
	moderation    *service.Moderation
}

// NewServer connects the configured backends and builds a server on them.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s, err := NewServerWithDeps(ctx, cfg, rt, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer has connected the backends.
// A nil rt.KV keeps moderation state in memory.
func NewServerWithDeps(ctx context.Context, cfg *config.Config, rt *bootstrap.Runtime, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}
	if rt == nil {
		rt = &bootstrap.Runtime{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	kv := rt.KV
	if kv == nil {
		kv = repository.NewMemoryKV()
	}

	s := &Server{
		config:         cfg,
		db:             rt.DB,
		redis:          rt.Redis,
		promMiddleware: middleware.InitMetrics("hive-cache"),
		logger:         logger,
		queue:          notifications.NewQueue(cfg.NotificationTTL),
		notifier:       notifications.NewNotifier(rt.Redis, logger),
		hub:            notifications.NewHub(logger),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		runner:         scanner.NewRunner(logger),
	}
	s.dispatcher = &notifications.Dispatcher{
		Queue:    s.queue,
		Notifier: s.notifier,
		Hub:      s.hub,
		Logger:   logger,
	}
	s.confirmations = notifications.NewConfirmations(notifications.DefaultConfirmTimeout, func(p notifications.Prompt) {
		s.dispatcher.Alert(context.Background(), p.Message, models.LevelInfo)
	})

	opts := service.Options{
		Rules:           rt.Rules,
		Repo:            repository.NewStateRepository(kv, logger),
		Cache:           cache.NewJSONCache(rt.Redis),
		Source:          rt.Source,
		Blacklist:       rt.Blacklist,
		Alerts:          s.dispatcher,
		Confirmer:       s.confirmations,
		Runner:          s.runner,
		Flags:           s.featureFlags,
		Logger:          logger,
		RiskCacheSize:   cfg.RiskCacheSize,
		SpamDelay:       cfg.SpamScanDelay,
		PlagiarismDelay: cfg.PlagiarismScanDelay,
		SearchDebounce:  cfg.SearchDebounce,
	}
	if rt.Redis != nil {
		rdb := rt.Redis
		opts.RedisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	mod, err := service.New(opts)
	if err != nil {
		return nil, err
	}
	mod.Init(ctx)
	s.moderation = mod

	if cfg.ScanSchedule != "" {
		sched, err := scanner.NewScheduler(cfg.ScanSchedule, s.runner, logger)
		if err != nil {
			return nil, err
		}
		if mod.HasSource() {
			if err := sched.Add("reload", func(ctx context.Context) error {
				_, err := mod.Reload(ctx)
				return err
			}); err != nil {
				return nil, err
			}
		}
		if err := sched.Add(scanner.NameSpam, mod.SweepSpam); err != nil {
			return nil, err
		}
		if err := sched.Add(scanner.NamePlagiarism, mod.SweepPlagiarism); err != nil {
			return nil, err
		}
		s.scheduler = sched
	}

	return s, nil
}

// Moderation exposes the service for the command layer.
func (s *Server) Moderation() *service.Moderation { return s.moderation }

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Propagate request ID, trace ID and acting moderator
	app.Use(middleware.ContextMiddleware(s.sessionUser))

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger(s.logger))

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, X-Moderator, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":     "Too many requests, please try again later.",
				"retryable": true,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "hive-cache metrics",
	}))

	feedGroup := api.Group("/feed")
	feedGroup.Post("/import", s.ImportFeed)
	feedGroup.Post("/upload", s.UploadFeed)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/search", s.SearchPosts)
	posts.Post("/filter", s.FilterPosts)
	posts.Post("/advanced-search", s.AdvancedSearch)
	// Specific /:id/:resource routes before the generic /:id route
	posts.Post("/:id/flag", s.ToggleFlag)
	posts.Get("/:id", s.GetPost)

	api.Get("/authors/:author/posts", s.GetAuthorPosts)

	api.Get("/flags", s.GetFlagged)

	mutes := api.Group("/mutes")
	mutes.Get("/", s.GetMutes)
	mutes.Post("/:author", s.MuteAuthor)
	mutes.Delete("/:author", s.UnmuteAuthor)

	scans := api.Group("/scans")
	scans.Get("/", s.GetScans)
	scanLimit := middleware.RateLimit(s.redis, s.config.ScanRateLimit, time.Minute, "scan")
	scans.Post("/spam", scanLimit, s.ScanSpam)
	scans.Post("/plagiarism", scanLimit, s.ScanPlagiarism)
	scans.Get("/advanced", s.AdvancedRequired(), scanLimit, s.AdvancedScan)
	scans.Get("/advanced/:id", s.AdvancedRequired(), s.AdvancedScanPost)

	confirmations := api.Group("/confirmations")
	confirmations.Get("/", s.GetConfirmations)
	confirmations.Post("/:id", s.AnswerConfirmation)

	api.Get("/settings", s.GetSettings)
	api.Put("/settings", s.UpdateSettings)

	api.Get("/session", s.GetSession)
	api.Put("/session", s.Login)
	api.Delete("/session", s.Logout)

	stats := api.Group("/stats")
	stats.Get("/summary", s.GetSummary)
	stats.Get("/apps", s.GetApps)
	stats.Get("/panel", s.GetPanel)

	rankings := api.Group("/rankings")
	rankings.Get("/posts", s.GetPostRankings)
	rankings.Get("/payout", s.GetPayoutRankings)

	api.Get("/notifications/current", s.GetCurrentNotification)
	api.Delete("/notifications/current", s.DismissNotification)

	api.Get("/cache/stats", s.GetCacheStats)
	api.Delete("/cache", s.ClearCache)

	api.Get("/feature-flags", s.GetFeatureFlags)

	api.Get("/ws", s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports the state store, the SQL database and Redis. Only
// backends that are configured are required.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	dbStatus := "not_configured"
	if s.db != nil {
		dbStatus = "healthy"
		if err := database.Ping(ctx, s.db); err != nil {
			dbStatus = "unhealthy"
			healthy = false
		}
	}
	checks["database"] = dbStatus

	redisStatus := "not_configured"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
			healthy = false
		}
	}
	checks["redis"] = redisStatus

	stats := s.moderation.CacheStats(ctx)
	storeStatus := "healthy"
	if !stats.StoreHealthy {
		storeStatus = "unhealthy"
		healthy = false
	}
	checks["store"] = storeStatus

	status := fiber.StatusOK
	overall := "healthy"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"posts":  stats.TotalPosts,
		"time":   time.Now(),
	})
}

// App builds the Fiber application with middleware and routes on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "hive-cache",
		BodyLimit: 64 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, err)
			}
			s.logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start wires alert fan-out, runs the initial import and the scan schedule,
// and listens until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier.Enabled() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				s.logger.Error("failed to start alert wiring", slog.String("error", err.Error()))
			}
		}()
	}

	if s.moderation.HasSource() {
		if _, err := s.moderation.Reload(ctx); err != nil {
			s.logger.Warn("initial feed import failed", slog.String("error", err.Error()))
		}
	}

	if s.scheduler != nil {
		s.scheduler.Start()
	}

	s.logger.Info(fmt.Sprintf("Server starting on port %s...", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the alert subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			s.logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		s.logger.Error("error shutting down websocket hub", slog.String("error", err.Error()))
	}

	// Let scheduled sweeps finish before their stores close.
	s.moderation.Wait()

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				s.logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			s.logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
