package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
)

func SetupNotificationRouter(v1 *echo.Group, notificationHandler *handler.NotificationHandler) {
	v1.GET("/notifications", notificationHandler.ListNotifications)
}
