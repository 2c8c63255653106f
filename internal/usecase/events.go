package usecase

import (
	"time"

	"marketchat/internal/domain/entity"
)

// EventPublisher delivers an event to every live session of one user.
type EventPublisher interface {
	PublishToUser(userID string, event entity.Event)
}

type noopPublisher struct{}

func (noopPublisher) PublishToUser(string, entity.Event) {}

// NoopPublisher drops every event.
var NoopPublisher EventPublisher = noopPublisher{}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return NoopPublisher
	}
	return p
}

// UnreadUpdate is the payload of a message-updated event.
type UnreadUpdate struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int    `json:"unread_count"`
}

func publishUnread(p EventPublisher, userID, conversationID string, count int) {
	p.PublishToUser(userID, entity.Event{
		Type:           entity.EventMessageUpdated,
		ConversationID: conversationID,
		Payload:        UnreadUpdate{ConversationID: conversationID, UnreadCount: count},
		Timestamp:      time.Now(),
	})
}
