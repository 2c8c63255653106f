package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
)

func SetupConversationRouter(
	v1 *echo.Group,
	conversationHandler *handler.ConversationHandler,
	messageHandler *handler.MessageHandler,
	customOrderHandler *handler.CustomOrderHandler,
) {
	conversations := v1.Group("/conversations")

	conversations.POST("", conversationHandler.GetOrCreateConversation)
	conversations.GET("", conversationHandler.ListConversations)
	conversations.GET("/unread", conversationHandler.GetUnreadTotal)
	conversations.GET("/:id", conversationHandler.GetConversation)

	conversations.POST("/:id/messages", messageHandler.SendMessage)
	conversations.GET("/:id/messages", messageHandler.GetMessages)
	conversations.PUT("/:id/read", messageHandler.MarkAsRead)

	conversations.GET("/:id/custom-orders", customOrderHandler.ListConversationCustomOrders)
}
