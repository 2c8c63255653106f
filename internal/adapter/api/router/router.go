package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/infrastructure/metrics"
	"marketchat/internal/infrastructure/ratelimit"
)

// Handlers groups everything the routes dispatch to. DevToken is nil outside development.
type Handlers struct {
	Health       *handler.HealthHandler
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	CustomOrder  *handler.CustomOrderHandler
	Notification *handler.NotificationHandler
	WebSocket    *handler.WebSocketHandler
	DevToken     *handler.DevTokenHandler
}

func Setup(
	e *echo.Echo,
	h Handlers,
	authMiddleware *middleware.AuthMiddleware,
	adminMiddleware *middleware.AdminMiddleware,
	limiter *ratelimit.RateLimiter,
) {
	SetupHealthRouter(e, h.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.RateLimit(limiter, ratelimit.ActionAPIRequest))
	v1.Use(authMiddleware.Authenticate)

	SetupConversationRouter(v1, h.Conversation, h.Message, h.CustomOrder)
	SetupCustomOrderRouter(v1, h.CustomOrder)
	SetupNotificationRouter(v1, h.Notification)
	SetupAdminRouter(v1, h.CustomOrder, adminMiddleware)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupDevRouter(e, h.DevToken)
}

func SetupHealthRouter(e *echo.Echo, healthHandler *handler.HealthHandler) {
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/metrics", metrics.Handler())
}
