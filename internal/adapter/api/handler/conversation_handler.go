package handler

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/internal/usecase"
	"marketchat/pkg/response"
	"marketchat/pkg/utils"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
	names               *NameResolver
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase, names *NameResolver) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
		names:               names,
	}
}

type conversationContextRequest struct {
	Type  string `json:"type" validate:"required,oneof=listing shop user"`
	ID    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"max=200"`
}

type getOrCreateConversationRequest struct {
	OtherID   string                      `json:"other_id" validate:"required"`
	OtherName string                      `json:"other_name" validate:"max=100"`
	Context   *conversationContextRequest `json:"context"`
}

// GetOrCreateConversation answers 201 when the conversation was created by this call.
func (h *ConversationHandler) GetOrCreateConversation(c echo.Context) error {
	var req getOrCreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	userID := c.Get("uid").(string)

	otherName := req.OtherName
	if otherName == "" {
		otherName = h.names.Resolve(ctx, req.OtherID)
	}

	input := usecase.GetOrCreateConversationInput{
		SelfID:    userID,
		OtherID:   req.OtherID,
		SelfName:  h.names.Resolve(ctx, userID),
		OtherName: otherName,
	}
	if req.Context != nil {
		input.Context = &entity.ConversationContext{
			Type:  entity.ContextType(req.Context.Type),
			ID:    req.Context.ID,
			Title: req.Context.Title,
		}
	}

	conversation, created, err := h.conversationUseCase.GetOrCreateConversation(ctx, input)
	if err != nil {
		return response.Error(c, err)
	}

	if created {
		return response.Created(c, conversation)
	}
	return response.Success(c, conversation)
}

func (h *ConversationHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetCursorParams(c, 20, 100)

	conversations, next, err := h.conversationUseCase.ListConversations(c.Request().Context(), userID, params.Limit, params.Cursor)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Cursor(c, conversations, next, next != "")
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	userID := c.Get("uid").(string)

	conversation, err := h.conversationUseCase.GetConversation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversation)
}

func (h *ConversationHandler) GetUnreadTotal(c echo.Context) error {
	userID := c.Get("uid").(string)

	total, err := h.conversationUseCase.GetUnreadTotal(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{"unread_total": total})
}
