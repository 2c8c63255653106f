package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/metrics"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

type MessageUseCase struct {
	conversationRepo repository.ConversationRepository
	publisher        EventPublisher
	rateLimiter      *ratelimit.RateLimiter
	maxLength        int
}

func NewMessageUseCase(
	conversationRepo repository.ConversationRepository,
	publisher EventPublisher,
	rateLimiter *ratelimit.RateLimiter,
	maxLength int,
) *MessageUseCase {
	return &MessageUseCase{
		conversationRepo: conversationRepo,
		publisher:        publisherOrNoop(publisher),
		rateLimiter:      rateLimiter,
		maxLength:        maxLength,
	}
}

type SendMessageInput struct {
	ConversationID string
	SenderID       string
	SenderName     string
	Text           string
	// RecipientID defaults to the other participant.
	RecipientID string
}

// SendMessage appends a message and bumps the recipient's unread counter in the same write.
func (uc *MessageUseCase) SendMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(input.SenderID, ratelimit.ActionSendMessage); !allowed {
			logger.Warn("SendMessage rate limited: user %s must wait %v", input.SenderID, wait)
			return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", wait)
		}
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.Validation("message text cannot be empty")
	}
	if uc.maxLength > 0 && utf8.RuneCountInString(text) > uc.maxLength {
		return nil, errors.Validation("message text is too long")
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(input.SenderID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	recipientID := input.RecipientID
	if recipientID == "" {
		recipientID = conversation.OtherParticipant(input.SenderID)
	}
	if recipientID == input.SenderID || !conversation.HasParticipant(recipientID) {
		return nil, errors.BadRequest("Recipient is not the other participant of this conversation", nil)
	}

	senderName := strings.TrimSpace(input.SenderName)
	if senderName == "" {
		senderName = conversation.ParticipantNames[input.SenderID]
	}

	message := &entity.Message{
		ConversationID: conversation.ID,
		Text:           text,
		SenderID:       input.SenderID,
		SenderName:     senderName,
		Read:           false,
	}
	if err := uc.conversationRepo.AppendMessage(ctx, message, recipientID); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	// Concurrent sends may have moved the counter since the read above.
	updated, err := uc.conversationRepo.GetByID(ctx, conversation.ID)
	if err != nil {
		logger.Warn("Could not reload conversation %s after send: %v", conversation.ID, err)
		return message, nil
	}
	publishUnread(uc.publisher, recipientID, conversation.ID, updated.UnreadFor(recipientID))

	return message, nil
}

// GetRecentMessages returns the newest pageSize messages in chronological order.
func (uc *MessageUseCase) GetRecentMessages(ctx context.Context, userID, conversationID string, pageSize int) (*entity.MessagePage, error) {
	if pageSize <= 0 {
		return nil, errors.Validation("page size must be positive")
	}
	if err := uc.authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	messages, err := uc.conversationRepo.GetRecentMessages(ctx, conversationID, pageSize+1)
	if err != nil {
		return nil, err
	}
	return buildPage(messages, pageSize), nil
}

// GetMessagesPaginated returns up to pageSize messages strictly older than cursor, in
// chronological order. HasMore reports whether anything older remains.
func (uc *MessageUseCase) GetMessagesPaginated(ctx context.Context, userID, conversationID string, pageSize int, cursor string) (*entity.MessagePage, error) {
	if cursor == "" {
		return uc.GetRecentMessages(ctx, userID, conversationID, pageSize)
	}
	if pageSize <= 0 {
		return nil, errors.Validation("page size must be positive")
	}
	if err := uc.authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	messages, err := uc.conversationRepo.GetMessagesBefore(ctx, conversationID, cursor, pageSize+1)
	if err != nil {
		return nil, err
	}
	return buildPage(messages, pageSize), nil
}

// buildPage takes newest-first messages fetched with one probe record beyond pageSize.
func buildPage(newestFirst []*entity.Message, pageSize int) *entity.MessagePage {
	hasMore := len(newestFirst) > pageSize
	if hasMore {
		newestFirst = newestFirst[:pageSize]
	}

	messages := make([]*entity.Message, len(newestFirst))
	for i, m := range newestFirst {
		messages[len(newestFirst)-1-i] = m
	}

	page := &entity.MessagePage{Messages: messages, HasMore: hasMore}
	if len(messages) > 0 {
		page.Cursor = messages[0].ID
	}
	return page
}

// SubscribeToMessages blocks, delivering the full ascending history on every change.
func (uc *MessageUseCase) SubscribeToMessages(ctx context.Context, userID, conversationID string, fn func([]*entity.Message)) error {
	if err := uc.authorize(ctx, userID, conversationID); err != nil {
		return err
	}
	return uc.conversationRepo.WatchMessages(ctx, conversationID, fn)
}

// MarkMessagesAsRead zeroes the user's unread counter, then flips every unread message
// authored by someone else. Individual flag failures are logged and skipped.
func (uc *MessageUseCase) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant in this conversation", nil)
	}

	if err := uc.conversationRepo.ResetUnread(ctx, conversationID, userID); err != nil {
		return err
	}

	unread, err := uc.conversationRepo.ListUnreadMessages(ctx, conversationID)
	if err != nil {
		return err
	}

	flipped := 0
	for _, m := range unread {
		if m.SenderID == userID {
			continue
		}
		if err := uc.conversationRepo.MarkMessageRead(ctx, conversationID, m.ID); err != nil {
			logger.LogSideEffectError("mark_message_read", m.ID, err)
			continue
		}
		flipped++
	}
	logger.Debug("Marked %d messages read in conversation %s for %s", flipped, conversationID, userID)

	publishUnread(uc.publisher, userID, conversationID, 0)
	if other := conversation.OtherParticipant(userID); other != "" && flipped > 0 {
		uc.publisher.PublishToUser(other, entity.Event{
			Type:           entity.EventMessagesRead,
			ConversationID: conversationID,
			Payload:        map[string]string{"reader_id": userID},
			Timestamp:      time.Now(),
		})
	}
	return nil
}

func (uc *MessageUseCase) authorize(ctx context.Context, userID, conversationID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant in this conversation", nil)
	}
	return nil
}
