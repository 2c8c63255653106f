package handler

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/usecase"
	"marketchat/pkg/response"
	"marketchat/pkg/utils"
)

type NotificationHandler struct {
	dispatcher *usecase.NotificationDispatcher
}

func NewNotificationHandler(dispatcher *usecase.NotificationDispatcher) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
	}
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetCursorParams(c, 20, 100)

	notifications, err := h.dispatcher.List(c.Request().Context(), userID, params.Limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, notifications)
}
