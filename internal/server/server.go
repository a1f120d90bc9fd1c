// Package server contains HTTP and WebSocket handlers for the forum API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "agora/docs" // swagger docs
	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultAllowedOrigins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	logger         *slog.Logger
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	store        repository.Store
	profiles     *service.ProfileDirectory
	votes        *service.VoteService
	topics       *service.TopicService
	replies      *service.ReplyService
	moderation   *service.ModerationService
	dispatcher   *notifications.Dispatcher
	hub          *notifications.Hub
	unsubscribe  func()
	featureFlags *featureflags.Manager
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; the server then runs without profile caching,
// distributed rate limits and cross-instance change events.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *slog.Logger) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}
	if logger == nil {
		logger = middleware.Logger
	}
	middleware.InitMiddleware(cfg)

	store := repository.NewStore(db)
	dispatcher := notifications.NewDispatcher(notifications.NewNotifier(redisClient, logger), logger)

	profileTTL := time.Duration(cfg.ProfileCacheTTLSeconds) * time.Second
	profiles := service.NewProfileDirectory(
		repository.NewProfileRepository(db, logger),
		cache.NewJSONCache(redisClient),
		profileTTL,
		logger,
	)
	votes := service.NewVoteService(store, dispatcher, cfg.VoteMaxRetries, logger)
	topics := service.NewTopicService(store, votes, profiles, dispatcher, logger)
	replies := service.NewReplyService(store, votes, profiles, dispatcher, logger)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	if invalid := flags.Invalid(); len(invalid) > 0 {
		logger.Warn("ignoring malformed feature flags", slog.String("entries", strings.Join(invalid, ",")))
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		logger:         logger,
		promMiddleware: middleware.InitMetrics("agora-api"),
		store:          store,
		profiles:       profiles,
		votes:          votes,
		topics:         topics,
		replies:        replies,
		moderation:     service.NewModerationService(store, topics, replies, dispatcher, logger),
		dispatcher:     dispatcher,
		hub:            notifications.NewHub(cfg.WSMaxConnsPerUser, cfg.WSMaxConnsTotal, logger),
		featureFlags:   flags,
	}
	s.unsubscribe = dispatcher.Subscribe(s.hub.Dispatch)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit so error
	// responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultAllowedOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global per-IP limit; write routes add their own per-caller limits.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
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
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := middleware.AuthRequired
	optional := middleware.OptionalAuth

	// Change feed; browsers pass the token as ?token=
	api.Get("/ws", middleware.WebSocketAuthRequired, s.ChangeFeedUpgrade, s.ChangeFeedHandler())

	topics := api.Group("/topics")
	topics.Get("/", optional, s.ListTopics)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	topics.Get("/:id/replies", optional, s.ListReplies)
	topics.Post("/:id/replies", auth, middleware.RateLimit(s.redis, 20, time.Minute, "create_reply"), s.CreateReply)
	topics.Post("/:id/pin", auth, middleware.ModeratorRequired, s.TogglePin)
	topics.Post("/:id/lock", auth, middleware.ModeratorRequired, s.ToggleLock)
	topics.Get("/:id", optional, s.GetTopic)
	topics.Post("/", auth, middleware.RateLimit(s.redis, 5, time.Minute, "create_topic"), s.CreateTopic)
	topics.Patch("/:id", auth, s.UpdateTopic)
	topics.Delete("/:id", auth, s.DeleteTopic)

	replies := api.Group("/replies")
	replies.Post("/:id/best-answer", auth, s.MarkBestAnswer)
	replies.Post("/:id/hide", auth, middleware.ModeratorRequired, s.HideReply)
	replies.Patch("/:id", auth, s.UpdateReply)
	replies.Delete("/:id", auth, s.DeleteReply)

	votes := api.Group("/votes")
	votes.Post("/", auth, middleware.RateLimit(s.redis, 60, time.Minute, "vote"), s.CastVote)
	votes.Delete("/", auth, s.RemoveVote)

	admin := api.Group("/admin")
	admin.Get("/feature-flags", auth, middleware.ModeratorRequired, s.GetFeatureFlags)
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Agora Forum API",
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	s.logger.ErrorContext(c.UserContext(), "unhandled request error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis reachability. Redis is optional:
// when it is not configured the check reports "disabled" and stays ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"connections": s.hub.Count(),
		"time":        time.Now(),
	})
}

// Start wires the change feed and starts listening. It blocks until the
// listener stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	if err := s.dispatcher.Start(s.shutdownCtx); err != nil {
		// Events still reach this instance's clients.
		s.logger.Warn("change subscriber unavailable, delivering events locally", slog.String("error", err.Error()))
	}

	s.app = s.NewApp()

	s.logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			s.logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		s.logger.Error("error shutting down change feed", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			s.logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
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
