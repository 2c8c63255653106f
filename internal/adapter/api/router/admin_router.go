package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
)

func SetupAdminRouter(v1 *echo.Group, customOrderHandler *handler.CustomOrderHandler, adminMiddleware *middleware.AdminMiddleware) {
	admin := v1.Group("/admin")
	admin.Use(adminMiddleware.AdminOnly)

	admin.PUT("/custom-orders/:id/status", customOrderHandler.UpdateCustomOrderStatus)
}
