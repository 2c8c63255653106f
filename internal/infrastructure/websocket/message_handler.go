package websocket

import (
	"context"
	"encoding/json"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// Client frames
const (
	MessageTypePing                   = "ping"
	MessageTypeSubscribeMessages      = "subscribe_messages"
	MessageTypeUnsubscribeMessages    = "unsubscribe_messages"
	MessageTypeSubscribeConversations = "subscribe_conversations"
	MessageTypeMarkRead               = "mark_read"
)

// Server frames
const (
	MessageTypePong                  = "pong"
	MessageTypeError                 = "error"
	MessageTypeMessagesSnapshot      = "messages_snapshot"
	MessageTypeConversationsSnapshot = "conversations_snapshot"
)

const conversationsKey = "conversations"

type WSMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      string      `json:"timestamp"`
}

type MessagesSnapshotData struct {
	Messages []*entity.Message `json:"messages"`
	NewCount int               `json:"new_count"`
}

type ConversationsSnapshotData struct {
	Conversations []*entity.Conversation `json:"conversations"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleClientMessage processes one frame sent by client.
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var wsMessage WSMessage
	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		logger.Debug("websocket: bad frame from %s: %v", client.UserID, err)
		m.sendErrorToClient(client, errors.CodeBadRequest, "Invalid message format")
		return
	}

	switch wsMessage.Type {
	case MessageTypePing:
		m.sendToClient(client, WSMessage{Type: MessageTypePong, Data: map[string]string{"status": "alive"}})

	case MessageTypeSubscribeMessages:
		if wsMessage.ConversationID == "" {
			m.sendErrorToClient(client, errors.CodeValidation, "conversation_id is required")
			return
		}
		m.subscribeMessages(client, wsMessage.ConversationID)

	case MessageTypeUnsubscribeMessages:
		client.unsubscribe(messagesKey(wsMessage.ConversationID))

	case MessageTypeSubscribeConversations:
		m.subscribeConversations(client)

	case MessageTypeMarkRead:
		if wsMessage.ConversationID == "" {
			m.sendErrorToClient(client, errors.CodeValidation, "conversation_id is required")
			return
		}
		if err := m.backend.MarkMessagesAsRead(client.ctx, wsMessage.ConversationID, client.UserID); err != nil {
			m.sendAppError(client, err)
		}

	default:
		m.sendErrorToClient(client, errors.CodeBadRequest, "Unknown message type")
	}
}

// subscribeMessages streams the full ascending history of a conversation. Every snapshot
// carries how many messages arrived since the previous one; the first reports zero.
func (m *Manager) subscribeMessages(client *Client, conversationID string) {
	client.subscribe(messagesKey(conversationID), func(ctx context.Context) {
		previous := -1
		err := m.backend.SubscribeToMessages(ctx, client.UserID, conversationID, func(msgs []*entity.Message) {
			newCount := 0
			if previous >= 0 && len(msgs) > previous {
				newCount = len(msgs) - previous
			}
			previous = len(msgs)

			m.sendToClient(client, WSMessage{
				Type:           MessageTypeMessagesSnapshot,
				ConversationID: conversationID,
				Data:           MessagesSnapshotData{Messages: msgs, NewCount: newCount},
			})
		})
		if err != nil && ctx.Err() == nil {
			client.unsubscribe(messagesKey(conversationID))
			m.sendAppError(client, err)
		}
	})
}

func (m *Manager) subscribeConversations(client *Client) {
	client.subscribe(conversationsKey, func(ctx context.Context) {
		err := m.backend.SubscribeToConversations(ctx, client.UserID, func(convs []*entity.Conversation) {
			m.sendToClient(client, WSMessage{
				Type: MessageTypeConversationsSnapshot,
				Data: ConversationsSnapshotData{Conversations: convs},
			})
		})
		if err != nil && ctx.Err() == nil {
			client.unsubscribe(conversationsKey)
			m.sendAppError(client, err)
		}
	})
}

func (m *Manager) sendToClient(client *Client, message WSMessage) {
	if message.Timestamp == "" {
		message.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(message)
	if err != nil {
		logger.Warn("websocket: failed to encode %s for %s: %v", message.Type, client.UserID, err)
		return
	}
	if !client.enqueue(payload) {
		logger.Warn("Dropping slow websocket session of %s", client.UserID)
		m.Unregister(client)
	}
}

func (m *Manager) sendErrorToClient(client *Client, code, message string) {
	m.sendToClient(client, WSMessage{
		Type: MessageTypeError,
		Data: ErrorData{Code: code, Message: message},
	})
}

func (m *Manager) sendAppError(client *Client, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		m.sendErrorToClient(client, appErr.Code, appErr.Message)
		return
	}
	logger.Error("websocket: request from %s failed: %v", client.UserID, err)
	m.sendErrorToClient(client, errors.CodeInternal, "Internal server error")
}

func messagesKey(conversationID string) string {
	return "messages:" + conversationID
}
