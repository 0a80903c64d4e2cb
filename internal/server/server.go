// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "quad/docs" // registers swagger docs

	"quad/internal/bootstrap"
	"quad/internal/config"
	"quad/internal/middleware"
	"quad/internal/models"
	"quad/internal/notifications"
	"quad/internal/repository"
	"quad/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds the dependencies shared by every handler.
type Server struct {
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client
	app    *fiber.App

	promMiddleware *fiberprometheus.FiberPrometheus

	userRepo repository.UserRepository

	users           *service.UserService
	network         *service.NetworkService
	notifications   *service.NotificationService
	forums          *service.ForumService
	chat            *service.ChatService
	library         *service.LibraryService
	resources       *service.ResourceService
	recommendations *service.RecommendationService
	covers          *service.CoverStore

	notifier *notifications.Notifier
	hub      *notifications.Hub
	tickets  *notifications.TicketStore

	shutdownCtx context.Context
	shutdownFn  context.CancelFunc
}

// NewServer connects to PostgreSQL and Redis, ensures the built-in forums and wires the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedBuiltIns: true})
	if err != nil {
		return nil, err
	}

	s, err := NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		return nil, err
	}
	s.promMiddleware = middleware.NewMetrics("quad-api")
	return s, nil
}

// NewServerWithDeps wires the server over existing connections. rdb may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	userRepo := repository.NewUserRepository(db)
	connRepo := repository.NewConnectionRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	forumRepo := repository.NewForumRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	chatRepo := repository.NewChatRepository(db)
	bookRepo := repository.NewBookRepository(db)
	resourceRepo := repository.NewResourceRepository(db)

	notifier := notifications.NewNotifier(rdb)
	covers := service.NewCoverStore(cfg)
	notificationService := service.NewNotificationService(notifRepo, notifier)
	recommendations := service.NewRecommendationService(
		userRepo, connRepo, cfg.RecommendationLimit, cfg.RecommendationMinScore)

	s := &Server{
		config:   cfg,
		db:       db,
		redis:    rdb,
		userRepo: userRepo,

		users:           service.NewUserService(userRepo),
		network:         service.NewNetworkService(connRepo, userRepo, notificationService, notifier),
		notifications:   notificationService,
		forums:          service.NewForumService(forumRepo, postRepo, commentRepo, userRepo, notificationService),
		chat:            service.NewChatService(chatRepo, userRepo, notificationService, notifier),
		library:         service.NewLibraryService(bookRepo, userRepo, notificationService, covers),
		resources:       service.NewResourceService(resourceRepo, userRepo),
		recommendations: recommendations,
		covers:          covers,

		notifier: notifier,
		hub:      notifications.NewHub(),
		tickets:  notifications.NewTicketStore(rdb),
	}
	return s, nil
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Quad API",
		BodyLimit:    int(s.covers.MaxUploadSizeBytes()) + 1024*1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithError(c, fiber.StatusInternalServerError,
		models.NewInternalError(err))
}

// SetupMiddleware configures the global middleware chain.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{EnableStackTrace: !s.config.IsProduction()}))
	app.Use(requestid.New())
	app.Use(middleware.RequestScope())
	app.Use(middleware.Tracing())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New(helmet.Config{
		// Swagger UI needs inline scripts; everything else is JSON.
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:",
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	app.Use(middleware.AccessLog())

	// CORS runs before the limiter so throttled responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

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
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Quad Backend Metrics",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, middleware.SignupThrottle), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.LoginThrottle), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public browse routes
	api.Get("/forums", s.GetForums)
	api.Get("/forums/:category", s.GetForum)
	api.Get("/posts/:id", s.GetPost)
	api.Get("/posts/:id/comments", s.GetComments)
	api.Get("/library/books", s.GetBooks)
	api.Get("/library/books/:id", s.GetBook)
	api.Get("/library/covers/:hash", s.GetCover)
	api.Get("/resources", s.GetResources)
	api.Get("/resources/:id", s.GetResource)

	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", s.AuthRequired(), s.WebSocketUpgrade, s.WebsocketHandler())

	protected := api.Group("", s.AuthRequired())

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/search", s.SearchUsers)
	users.Get("/:id", s.GetUserProfile)

	network := protected.Group("/network")
	network.Get("/", s.GetNetwork)
	network.Get("/ids", s.GetNetworkIDs)
	network.Get("/recommendations", s.GetRecommendations)
	// Specific /requests routes before generic /:userId
	network.Get("/requests", s.GetPendingRequests)
	network.Get("/requests/sent", s.GetSentRequests)
	network.Post("/requests/:userId", middleware.RateLimit(s.redis, middleware.NetworkRequestThrottle), s.SendNetworkRequest)
	network.Post("/requests/:requestId/accept", s.AcceptNetworkRequest)
	network.Post("/requests/:requestId/reject", s.RejectNetworkRequest)
	network.Get("/status/:userId", s.GetNetworkStatus)
	network.Delete("/:userId", s.RemoveConnection)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Post("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)

	protected.Post("/forums/:category/posts", middleware.RateLimit(s.redis, middleware.CreatePostThrottle), s.CreatePost)

	posts := protected.Group("/posts")
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)
	posts.Post("/:id/pin", s.PinPost)
	posts.Post("/:id/lock", s.LockPost)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, middleware.CreateCommentThrottle), s.CreateComment)

	comments := protected.Group("/comments")
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	conversations := protected.Group("/conversations")
	conversations.Get("/", s.GetConversations)
	conversations.Post("/", s.CreateConversation)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	conversations.Get("/:id/messages", s.GetMessages)
	conversations.Post("/:id/messages", middleware.RateLimit(s.redis, middleware.SendMessageThrottle), s.SendMessage)
	conversations.Post("/:id/read", s.MarkConversationRead)
	conversations.Delete("/:id", s.LeaveConversation)
	conversations.Get("/:id", s.GetConversation)

	library := protected.Group("/library")
	library.Post("/books", s.CreateBook)
	library.Put("/books/:id", s.UpdateBook)
	library.Delete("/books/:id", s.DeleteBook)
	library.Post("/books/:id/borrow", s.BorrowBook)
	library.Post("/books/:id/return", s.ReturnBook)
	library.Post("/books/:id/cover", s.UploadCover)
	library.Get("/loans/me", s.GetMyLoans)

	resources := protected.Group("/resources")
	resources.Post("/", s.CreateResource)
	resources.Put("/:id", s.UpdateResource)
	resources.Delete("/:id", s.DeleteResource)
	resources.Post("/:id/pin", s.PinResource)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis answer.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app, wires the hub to Redis and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error(fmt.Sprintf("failed to start %s wiring", s.hub.Name()),
					slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error(fmt.Sprintf("error shutting down %s", s.hub.Name()),
			slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
