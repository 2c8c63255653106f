package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"marketchat/internal/adapter/api"
	"marketchat/internal/adapter/api/handler"
	apimiddleware "marketchat/internal/adapter/api/middleware"
	"marketchat/internal/adapter/api/router"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/internal/infrastructure/scheduler"
	"marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
	"marketchat/pkg/config"
	"marketchat/pkg/logger"
)

const (
	reconcileLookback  = 24 * time.Hour
	reconcileBatchSize = 200
	shutdownTimeout    = 10 * time.Second
)

// startJob schedules fn on expr until ctx is done.
func startJob(ctx context.Context, name, expr string, fn func(context.Context) error) error {
	job, err := scheduler.New(name, expr, fn)
	if err != nil {
		return err
	}
	job.Start(ctx)
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var s *stores
	switch cfg.StoreBackend {
	case config.StoreMemory:
		if !cfg.IsDevelopment() {
			log.Fatalf("STORE_BACKEND=%s is only supported with ENVIRONMENT=development", config.StoreMemory)
		}
		s, err = newMemoryStores(ctx, cfg)
	default:
		s, err = newFirestoreStores(ctx, cfg)
	}
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.StoreBackend, err)
	}
	defer s.Close()

	rateLimiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage:        ratelimit.PerWindow(cfg.MessagesPerMinute, time.Minute),
		ratelimit.ActionCreateConversation: ratelimit.PerWindow(cfg.ConversationsPerHour, time.Hour),
		ratelimit.ActionCreateCustomOrder:  ratelimit.PerWindow(cfg.CustomOrdersPerHour, time.Hour),
		ratelimit.ActionAPIRequest:         ratelimit.PerWindow(cfg.RequestsPerMinute, time.Minute),
	})
	rateLimiter.StartCleanupRoutine(10*time.Minute, ctx.Done())

	wsManager := websocket.NewManager()

	conversationUseCase := usecase.NewConversationUseCase(s.conversations, rateLimiter)
	messageUseCase := usecase.NewMessageUseCase(s.conversations, wsManager, rateLimiter, cfg.MessageMaxLength)
	notificationDispatcher := usecase.NewNotificationDispatcher(s.notifications, wsManager)
	customOrderUseCase := usecase.NewCustomOrderUseCase(
		s.customOrders,
		s.conversations,
		s.users,
		usecase.NewFulfillmentMaterializer(s.fulfillmentOrders),
		notificationDispatcher,
		wsManager,
		rateLimiter,
		usecase.CustomOrderSettings{
			Validity:         cfg.CustomOrderValidity,
			RequestRecipient: cfg.CustomOrderRequestRecipient,
		},
	)

	wsManager.SetBackend(handler.NewSessionBackend(messageUseCase, conversationUseCase))

	if cfg.UnreadReconcileCron != "" {
		reconciler := usecase.NewUnreadReconciler(s.conversations, wsManager, reconcileLookback, reconcileBatchSize)
		if err := startJob(ctx, "unread-reconcile", cfg.UnreadReconcileCron, reconciler.Run); err != nil {
			logger.Error("Failed to schedule unread reconciliation: %v", err)
			stop()
		}
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("%s %s -> %d (%v)", v.Method, v.URIPath, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowedOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(s.verifier)
	adminMiddleware := apimiddleware.NewAdminMiddleware(s.users)
	names := handler.NewNameResolver(s.users, s.identity)

	handlers := router.Handlers{
		Health:       handler.NewHealthHandler(cfg.StoreBackend),
		Conversation: handler.NewConversationHandler(conversationUseCase, names),
		Message:      handler.NewMessageHandler(messageUseCase, cfg.MessagePageSize, cfg.MessagePageSizeMax),
		CustomOrder:  handler.NewCustomOrderHandler(customOrderUseCase, names, s.uploader),
		Notification: handler.NewNotificationHandler(notificationDispatcher),
		WebSocket:    handler.NewWebSocketHandler(wsManager, s.verifier, cfg.AllowedOrigins),
	}
	if s.devUsers != nil {
		handlers.DevToken = handler.NewDevTokenHandler(s.devUsers)
	}

	router.Setup(e, handlers, authMiddleware, adminMiddleware, rateLimiter)

	go func() {
		logger.Info("Starting server on port %s (store: %s)", cfg.ServerPort, cfg.StoreBackend)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Error("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	wsManager.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}
