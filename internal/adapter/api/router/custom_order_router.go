package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
)

func SetupCustomOrderRouter(v1 *echo.Group, customOrderHandler *handler.CustomOrderHandler) {
	orders := v1.Group("/custom-orders")

	orders.POST("", customOrderHandler.CreateCustomOrder)
	orders.POST("/uploads", customOrderHandler.CreateUploadURL)
	orders.GET("/:id", customOrderHandler.GetCustomOrder)
	orders.POST("/:id/accept", customOrderHandler.AcceptCustomOrder)
	orders.PUT("/:id/buyer", customOrderHandler.UpdateCustomOrderBuyer)
	orders.POST("/:id/materialize", customOrderHandler.MaterializeCustomOrder)
}
