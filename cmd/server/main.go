package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/cache"
	"github.com/Success-Framework/SFManagers-sub001/internal/config"
	"github.com/Success-Framework/SFManagers-sub001/internal/handlers"
	"github.com/Success-Framework/SFManagers-sub001/internal/handlers/ws"
	"github.com/Success-Framework/SFManagers-sub001/internal/httpx"
	"github.com/Success-Framework/SFManagers-sub001/internal/logger"
	"github.com/Success-Framework/SFManagers-sub001/internal/middleware"
	"github.com/Success-Framework/SFManagers-sub001/internal/repository"
	"github.com/Success-Framework/SFManagers-sub001/internal/service"
	"github.com/Success-Framework/SFManagers-sub001/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Env:       cfg.Logging.Env,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Debug:     cfg.Logging.Debug,
		AddSource: cfg.Logging.AddSource,
	})

	csrfMode, err := middleware.ParseCSRFMode(cfg.HTTP.CSRFMode)
	if err != nil {
		log.Error("invalid CSRF_MODE", "err", err)
		os.Exit(1)
	}

	// Initialize database connection
	db, err := repository.InitDB(cfg.Database.DSN())
	if err != nil {
		log.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}

	// Redis backs the unread and presence caches; both run degraded without it.
	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisCache.Ping(pingCtx); err != nil {
		log.Warn("redis connection failed, running without cache", "addr", cfg.Redis.Addr, "err", err)
		redisCache = nil
	} else {
		log.Info("redis cache connected", "addr", cfg.Redis.Addr)
	}
	cancelPing()

	unreadCache := cache.NewUnreadCache(redisCache)
	presenceCache := cache.NewPresenceCache(redisCache, cfg.Realtime.PongTimeout)

	// S3/MinIO is best-effort; avatar keys resolve to "" when missing.
	var s3Store *storage.S3Storage
	if !cfg.S3.Enabled() {
		log.Warn("s3 storage not configured")
	} else if st, err := storage.NewS3Storage(cfg.S3); err != nil {
		log.Warn("failed to initialize s3 storage", "err", err)
	} else {
		s3Store = st
		log.Info("s3 storage initialized", "bucket", cfg.S3.Bucket)
	}
	avatars := storage.NewAvatarResolver(s3Store, cfg.S3.AvatarURLTTL)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	directRepo := repository.NewDirectMessageRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	groupMessageRepo := repository.NewGroupMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	registry := ws.NewRegistry(cfg.Realtime.SendBuffer, presenceCache)

	// Initialize services
	userService := service.NewUserService(userRepo, avatars)
	authService := service.NewAuthService(cfg.JWTSecret, userService)
	store := service.NewMessageStore(directRepo, groupMessageRepo, userService, unreadCache, cfg.MaxMessageLength)
	authority := service.NewMembershipService(groupRepo, userService)
	notificationService := service.NewNotificationService(notificationRepo, registry, registry)
	messagingService := service.NewMessagingService(store, authority, notificationService, userService, registry)

	gateway := ws.NewGateway(registry, authService, authority, ws.GatewayConfig{
		AuthTimeout:  cfg.Realtime.AuthTimeout,
		PingInterval: cfg.Realtime.PingInterval,
		PongTimeout:  cfg.Realtime.PongTimeout,
		Debug:        cfg.Realtime.Debug,
	})

	// Initialize handlers
	messageHandler := handlers.NewMessageHandler(messagingService)
	groupHandler := handlers.NewGroupHandler(messagingService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	userHandler := handlers.NewUserHandler(userService, registry, presenceCache)

	app := fiber.New(fiber.Config{
		AppName:   "Realtime Messaging Core",
		BodyLimit: cfg.HTTP.BodyLimit,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-OM-CSRF",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: cfg.HTTP.AllowedOrigins != "" && cfg.HTTP.AllowedOrigins != "*",
	}))

	origins := middleware.NewOriginPolicy(cfg.HTTP.AllowedOrigins)
	api := app.Group("/api", middleware.OriginAllowed(origins))
	protected := api.Group("/", middleware.AuthRequired(authService), middleware.CSRFRequired(csrfMode, origins))
	if cfg.HTTP.RateLimit > 0 {
		protected.Use(limiter.New(limiter.Config{
			Max:        cfg.HTTP.RateLimit,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if uid, err := httpx.LocalUint(c, "userID"); err == nil {
					return "user:" + strconv.FormatUint(uint64(uid), 10)
				}
				return c.IP()
			},
		}))
	}

	protected.Get("/users/online", userHandler.ListOnline)
	protected.Get("/users/:id", userHandler.GetUser)

	// Direct messages
	protected.Get("/messages", messageHandler.GetMessages)
	protected.Post("/messages", messageHandler.SendMessage)
	protected.Get("/messages/unread", messageHandler.UnreadCount)
	protected.Post("/messages/:id/read", messageHandler.MarkRead)
	protected.Delete("/messages/:id", messageHandler.DeleteMessage)
	protected.Post("/conversations/:peer_id/read", messageHandler.MarkConversationRead)

	// Group routes
	protected.Get("/groups", groupHandler.GetMyGroups)
	protected.Post("/groups", groupHandler.CreateGroup)
	protected.Get("/groups/:id/messages", groupHandler.GetGroupMessages)
	protected.Post("/groups/:id/messages", groupHandler.SendGroupMessage)
	protected.Delete("/groups/:id/messages/:mid", groupHandler.DeleteGroupMessage)
	protected.Get("/groups/:id/messages/:mid/receipts", groupHandler.GetReceipts)
	protected.Get("/groups/:id/unread", groupHandler.UnreadCount)
	protected.Get("/groups/:id/members", groupHandler.GetGroupMembers)
	protected.Post("/groups/:id/members", groupHandler.AddMember)
	protected.Delete("/groups/:id/members/:uid", groupHandler.RemoveMember)
	protected.Put("/groups/:id/members/:uid/admin", groupHandler.SetAdmin)
	protected.Post("/groups/:id/leave", groupHandler.LeaveGroup)
	protected.Post("/projects/:id/channel", groupHandler.ProjectChannel)

	// Notification inbox
	protected.Get("/notifications", notificationHandler.List)
	protected.Get("/notifications/unread", notificationHandler.UnreadCount)
	protected.Post("/notifications/read-all", notificationHandler.MarkAllRead)
	protected.Post("/notifications/:id/read", notificationHandler.MarkRead)
	protected.Delete("/notifications/:id", notificationHandler.Delete)
	protected.Delete("/notifications", notificationHandler.DeleteAll)

	// WebSocket route; the credential may also arrive as the first frame.
	app.Use(
		"/ws",
		middleware.OriginAllowed(origins),
		middleware.WebSocketUpgrade(authService),
	)
	app.Get("/ws", websocket.New(gateway.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"connections": registry.Count(),
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server starting", "port", cfg.HTTP.Port)
		if err := app.Listen(":" + cfg.HTTP.Port); err != nil {
			log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	registry.Shutdown()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	if redisCache != nil {
		_ = redisCache.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
