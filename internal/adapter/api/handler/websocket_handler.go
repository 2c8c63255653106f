package handler

import (
	"context"
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/domain/entity"
	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
	"marketchat/pkg/errors"
	"marketchat/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	verifier  middleware.TokenVerifier
	upgrader  gorillaws.Upgrader
}

func NewWebSocketHandler(wsManager *ws.Manager, verifier middleware.TokenVerifier, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		verifier:  verifier,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket authenticates with ?token= (browsers cannot set headers on upgrade) or a
// bearer header, then hands the connection to the manager.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	userID, err := h.verifier.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}

	client := ws.NewClient(userID, conn)
	h.wsManager.Register(client)

	go client.WritePump()
	go client.ReadPump(h.wsManager)

	return nil
}

type sessionBackend struct {
	messages      *usecase.MessageUseCase
	conversations *usecase.ConversationUseCase
}

// NewSessionBackend exposes the messaging use cases to websocket sessions.
func NewSessionBackend(messages *usecase.MessageUseCase, conversations *usecase.ConversationUseCase) ws.Backend {
	return &sessionBackend{
		messages:      messages,
		conversations: conversations,
	}
}

func (b *sessionBackend) SubscribeToMessages(ctx context.Context, userID, conversationID string, fn func([]*entity.Message)) error {
	return b.messages.SubscribeToMessages(ctx, userID, conversationID, fn)
}

func (b *sessionBackend) SubscribeToConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) error {
	return b.conversations.SubscribeToConversations(ctx, userID, fn)
}

func (b *sessionBackend) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error {
	return b.messages.MarkMessagesAsRead(ctx, conversationID, userID)
}
