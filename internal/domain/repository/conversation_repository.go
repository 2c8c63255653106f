package repository

import (
	"context"
	"time"

	"marketchat/internal/domain/entity"
)

// ConversationRepository stores conversations and their messages subcollection.
//
// Message reads return newest-first; cursors are message IDs inside the same conversation.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	// CreateIfAbsent stores conversation under its ID. When the ID is taken it returns the
	// stored conversation and created=false.
	CreateIfAbsent(ctx context.Context, conversation *entity.Conversation) (stored *entity.Conversation, created bool, err error)
	// ListByParticipant orders by last activity, newest first. limit <= 0 returns everything.
	ListByParticipant(ctx context.Context, userID string, limit int, cursor string) ([]*entity.Conversation, string, error)
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*entity.Conversation, error)
	ResetUnread(ctx context.Context, conversationID, userID string) error
	// ReconcileUnread recomputes unreadCount from the unread message flags in one transaction.
	ReconcileUnread(ctx context.Context, conversationID string) (counts map[string]int, changed bool, err error)
	WatchConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) error

	// AppendMessage writes the message, the conversation summary and unreadCount[recipientID]+1 together.
	AppendMessage(ctx context.Context, message *entity.Message, recipientID string) error
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error)
	GetMessagesBefore(ctx context.Context, conversationID, cursor string, limit int) ([]*entity.Message, error)
	ListUnreadMessages(ctx context.Context, conversationID string) ([]*entity.Message, error)
	MarkMessageRead(ctx context.Context, conversationID, messageID string) error
	// WatchMessages blocks, calling fn with the full ascending history on every change, until ctx ends.
	WatchMessages(ctx context.Context, conversationID string, fn func([]*entity.Message)) error
}
