package entity

import "time"

const (
	EventMessageUpdated = "message-updated"
	EventMessagesRead   = "messages_read"
	EventNotification   = "notification"
	EventCustomOrder    = "custom_order_updated"
)

// Event is pushed to the sessions of one authenticated user. It is never persisted.
type Event struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Payload        interface{} `json:"payload,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}
