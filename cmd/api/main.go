package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nexuschat/config"
	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/domain/user"
	"nexuschat/internal/handler"
	"nexuschat/internal/middleware"
	appredis "nexuschat/internal/redis"
	"nexuschat/internal/repository"
	"nexuschat/internal/services"
	"nexuschat/internal/storage"
	"nexuschat/internal/vitrocad"
	"nexuschat/internal/websocket"
	"nexuschat/pkg/database"
	"nexuschat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	appLogger := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(appLogger)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Tables first, then the raw SQL holding the partial unique indexes.
	if err := db.AutoMigrate(
		&user.User{},
		&chat.Conversation{},
		&chat.Member{},
		&message.Message{},
		&message.ReadReceipt{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}
	if err := database.ApplyRawMigrations(db, "migrations"); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := appredis.NewClient(cfg)
	var presenceStore *appredis.PresenceStore
	var authLimiter *appredis.RateLimiter
	if err := appredis.Ping(ctx, redisClient); err != nil {
		appLogger.Warnf("redis unavailable, presence cache and rate limiting disabled: %v", err)
	} else {
		presenceStore = appredis.NewPresenceStore(redisClient, 0)
		authLimiter = appredis.NewRateLimiter(redisClient, 5, time.Minute)
	}

	var s3Client *storage.Client
	if cfg.S3Bucket != "" {
		s3Client, err = storage.NewClient(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to init attachment storage: %v", err)
		}
	} else {
		appLogger.Warnf("attachment storage not configured, uploads disabled")
	}

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	provider := vitrocad.NewClient(cfg, appLogger)

	hub := websocket.NewHub()
	go hub.Run(ctx)
	notifier := websocket.NewHubNotifier(hub, appLogger)

	userSync := services.NewUserSync(userRepo, provider, appLogger)
	authService := services.NewAuthService(userRepo, provider, userSync, cfg, appLogger)
	chatService := services.NewChatService(chatRepo, msgRepo, userRepo, notifier, appLogger)
	messageService := services.NewMessageService(msgRepo, chatRepo, userRepo, notifier, appLogger)
	presenceService := services.NewPresenceService(userRepo, chatRepo, presenceStore, notifier, appLogger)
	vitrocadService := services.NewVitroCADService(provider, userSync, appLogger)
	monitorService := services.NewFileMonitorService(chatRepo, msgRepo, userRepo, provider, userSync, notifier, cfg, appLogger)
	uploadService := services.NewUploadService(s3Client, chatRepo, appLogger)

	authHandler := handler.NewAuthHandler(authService, presenceService)
	chatHandler := handler.NewChatHandler(chatService, messageService, presenceService)
	vitrocadHandler := handler.NewVitroCADHandler(vitrocadService, monitorService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	wsHandler := websocket.NewHandler(authService, chatService, messageService, presenceService, hub, appLogger)

	if cfg.AppMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger))
	r.Use(middleware.ErrorHandler(appLogger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.ClientURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", handler.Health)
	r.GET("/ws", wsHandler.Connect)

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/login", middleware.RateLimit(authLimiter), authHandler.Login)
	auth.POST("/validate-vitrocad-token", middleware.RateLimit(authLimiter), authHandler.ValidateVitroCADToken)
	authed := auth.Group("", middleware.AuthMiddleware(authService))
	authed.POST("/logout", authHandler.Logout)
	authed.GET("/me", authHandler.Me)
	authed.PUT("/settings", authHandler.UpdateSettings)
	authed.PUT("/status", authHandler.UpdateStatus)

	users := api.Group("/users", middleware.AuthMiddleware(authService))
	users.GET("/search", authHandler.SearchUsers)
	users.GET("/online", authHandler.OnlineUsers)
	users.GET("/:userId/status", authHandler.UserStatus)
	users.DELETE("/:userId", middleware.AdminOnly(), authHandler.DeactivateUser)

	chats := api.Group("/chat", middleware.AuthMiddleware(authService))
	chats.GET("", chatHandler.List)
	chats.POST("/file", chatHandler.CreateFileChat)
	chats.GET("/:chatId", chatHandler.Get)
	chats.DELETE("/:chatId", chatHandler.Archive)
	chats.POST("/:chatId/members", chatHandler.AddMember)
	chats.DELETE("/:chatId/members/:userId", chatHandler.RemoveMember)
	chats.GET("/:chatId/typing", chatHandler.Typing)
	chats.GET("/:chatId/messages", chatHandler.Messages)
	chats.POST("/:chatId/messages", chatHandler.SendMessage)
	chats.POST("/:chatId/read", chatHandler.MarkRead)

	vc := api.Group("/vitrocad")
	vc.POST("/webhook/file-uploaded", vitrocadHandler.WebhookFileUpload)
	vc.POST("/webhook/bulk-uploaded", vitrocadHandler.WebhookBulkUpload)
	vcAuthed := vc.Group("", middleware.AuthMiddleware(authService))
	vcAuthed.GET("/users/:listId", vitrocadHandler.ListUsers)
	vcAuthed.GET("/file/:fileId", vitrocadHandler.GetFile)
	vcAuthed.GET("/file/:fileId/permissions", vitrocadHandler.GetFilePermissions)
	vcAuthed.POST("/sync-user", vitrocadHandler.SyncUser)
	vcAdmin := vcAuthed.Group("/monitoring", middleware.AdminOnly())
	vcAdmin.GET("/stats", vitrocadHandler.MonitorStats)
	vcAdmin.POST("/start", vitrocadHandler.StartMonitoring)
	vcAdmin.POST("/stop", vitrocadHandler.StopMonitoring)

	uploads := api.Group("/upload", middleware.AuthMiddleware(authService))
	uploads.POST("/presign", uploadHandler.Presign)
	uploads.POST("/complete", uploadHandler.Complete)
	uploads.GET("/download-url", uploadHandler.Download)

	if cfg.MonitorAutoStart && cfg.MonitorListID != "" {
		monitorService.StartMonitoring(cfg.MonitorIntervalMs)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.AppPort),
		Handler: r,
	}

	go func() {
		appLogger.Infof("Starting server on port %s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	appLogger.Infof("Shutting down")

	monitorService.StopMonitoring()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Server shutdown: %v", err)
	}
	_ = redisClient.Close()
}
