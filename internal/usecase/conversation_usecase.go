package usecase

import (
	"context"
	"strings"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/metrics"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

type ConversationUseCase struct {
	conversationRepo repository.ConversationRepository
	rateLimiter      *ratelimit.RateLimiter
}

func NewConversationUseCase(
	conversationRepo repository.ConversationRepository,
	rateLimiter *ratelimit.RateLimiter,
) *ConversationUseCase {
	return &ConversationUseCase{
		conversationRepo: conversationRepo,
		rateLimiter:      rateLimiter,
	}
}

type GetOrCreateConversationInput struct {
	SelfID    string
	OtherID   string
	SelfName  string
	OtherName string
	Context   *entity.ConversationContext
}

// GetOrCreateConversation returns the single conversation between SelfID and OtherID,
// creating it on first contact. Argument order does not matter.
func (uc *ConversationUseCase) GetOrCreateConversation(ctx context.Context, input GetOrCreateConversationInput) (*entity.Conversation, bool, error) {
	if input.SelfID == "" || input.OtherID == "" {
		return nil, false, errors.Validation("both participants are required")
	}
	if input.SelfID == input.OtherID {
		return nil, false, errors.BadRequest("You cannot start a conversation with yourself", nil)
	}
	if input.Context != nil && !input.Context.Type.Valid() {
		return nil, false, errors.Validation("context type must be one of: listing shop user")
	}

	key := entity.PairKey(input.SelfID, input.OtherID)
	existing, err := uc.conversationRepo.GetByID(ctx, key)
	switch {
	case err == nil && existing.IsBetween(input.SelfID, input.OtherID):
		return existing, false, nil
	case err == nil:
		logger.Error("Conversation %s does not belong to %s and %s", key, input.SelfID, input.OtherID)
		return nil, false, errors.Conflict("Conversation key is already taken", nil)
	case !errors.IsNotFound(err):
		return nil, false, err
	}

	// Conversations created before pair keys carry store-generated IDs.
	legacy, err := uc.findByScan(ctx, input.SelfID, input.OtherID)
	if err != nil {
		return nil, false, err
	}
	if legacy != nil {
		return legacy, false, nil
	}

	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(input.SelfID, ratelimit.ActionCreateConversation); !allowed {
			logger.Warn("GetOrCreateConversation rate limited: user %s must wait %v", input.SelfID, wait)
			return nil, false, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another conversation", wait)
		}
	}

	conversation := &entity.Conversation{
		ID:           key,
		Participants: []string{input.SelfID, input.OtherID},
		ParticipantNames: map[string]string{
			input.SelfID:  strings.TrimSpace(input.SelfName),
			input.OtherID: strings.TrimSpace(input.OtherName),
		},
		UnreadCount: map[string]int{
			input.SelfID:  0,
			input.OtherID: 0,
		},
		Context: input.Context,
	}

	stored, created, err := uc.conversationRepo.CreateIfAbsent(ctx, conversation)
	if err != nil {
		return nil, false, err
	}
	if !stored.IsBetween(input.SelfID, input.OtherID) {
		return nil, false, errors.Conflict("Conversation key is already taken", nil)
	}
	if created {
		metrics.ConversationsCreated.Inc()
		logger.Info("Conversation %s created between %s and %s", stored.ID, input.SelfID, input.OtherID)
	}
	return stored, created, nil
}

func (uc *ConversationUseCase) findByScan(ctx context.Context, selfID, otherID string) (*entity.Conversation, error) {
	conversations, _, err := uc.conversationRepo.ListByParticipant(ctx, selfID, 0, "")
	if err != nil {
		return nil, err
	}
	for _, c := range conversations {
		if c.HasParticipant(otherID) {
			return c, nil
		}
	}
	return nil, nil
}

// GetConversation returns the conversation if userID takes part in it.
func (uc *ConversationUseCase) GetConversation(ctx context.Context, userID, conversationID string) (*entity.Conversation, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}
	return conversation, nil
}

func (uc *ConversationUseCase) ListConversations(ctx context.Context, userID string, limit int, cursor string) ([]*entity.Conversation, string, error) {
	return uc.conversationRepo.ListByParticipant(ctx, userID, limit, cursor)
}

// GetUnreadTotal sums unreadCount[userID] across the user's conversations.
func (uc *ConversationUseCase) GetUnreadTotal(ctx context.Context, userID string) (int, error) {
	conversations, _, err := uc.conversationRepo.ListByParticipant(ctx, userID, 0, "")
	if err != nil {
		return 0, err
	}

	total := 0
	for _, c := range conversations {
		total += c.UnreadFor(userID)
	}
	return total, nil
}

// SubscribeToConversations blocks, delivering the user's conversation list on every change.
func (uc *ConversationUseCase) SubscribeToConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) error {
	return uc.conversationRepo.WatchConversations(ctx, userID, fn)
}
