package handler

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/internal/usecase"
	"marketchat/pkg/response"
	"marketchat/pkg/utils"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
	pageSize       int
	maxPageSize    int
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase, pageSize, maxPageSize int) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
		pageSize:       pageSize,
		maxPageSize:    maxPageSize,
	}
}

type sendMessageRequest struct {
	Text        string `json:"text" validate:"required"`
	RecipientID string `json:"recipient_id"`
}

func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := h.messageUseCase.SendMessage(c.Request().Context(), usecase.SendMessageInput{
		ConversationID: c.Param("id"),
		SenderID:       userID,
		Text:           req.Text,
		RecipientID:    req.RecipientID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// GetMessages returns the newest page without a cursor and older pages with one.
func (h *MessageHandler) GetMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")
	params := utils.GetCursorParams(c, h.pageSize, h.maxPageSize)

	var (
		page *entity.MessagePage
		err  error
	)
	if params.Cursor == "" {
		page, err = h.messageUseCase.GetRecentMessages(c.Request().Context(), userID, conversationID, params.Limit)
	} else {
		page, err = h.messageUseCase.GetMessagesPaginated(c.Request().Context(), userID, conversationID, params.Limit, params.Cursor)
	}
	if err != nil {
		return response.Error(c, err)
	}

	return response.Cursor(c, page.Messages, page.Cursor, page.HasMore)
}

func (h *MessageHandler) MarkAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	if err := h.messageUseCase.MarkMessagesAsRead(c.Request().Context(), conversationID, userID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"conversation_id": conversationID,
		"unread_count":    0,
	})
}
