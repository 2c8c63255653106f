package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

type memoryConversationRepository struct {
	mu    sync.RWMutex
	clock *memoryClock

	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message // conversation ID -> append order

	nextWatcherID   int
	convWatchers    map[string]map[int]chan struct{} // user ID -> watchers
	messageWatchers map[string]map[int]chan struct{} // conversation ID -> watchers
}

// NewMemoryConversationRepository keeps conversations in process memory. now may be nil.
func NewMemoryConversationRepository(now func() time.Time) repository.ConversationRepository {
	return &memoryConversationRepository{
		clock:           newMemoryClock(now),
		conversations:   make(map[string]*entity.Conversation),
		messages:        make(map[string][]*entity.Message),
		convWatchers:    make(map[string]map[int]chan struct{}),
		messageWatchers: make(map[string]map[int]chan struct{}),
	}
}

func (r *memoryConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return copyConversation(conversation), nil
}

func (r *memoryConversationRepository) CreateIfAbsent(ctx context.Context, conversation *entity.Conversation) (*entity.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	if existing, ok := r.conversations[conversation.ID]; ok {
		return copyConversation(existing), false, nil
	}

	now := r.clock.Next()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	if conversation.LastMessageTime.IsZero() {
		conversation.LastMessageTime = now
	}
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}

	r.conversations[conversation.ID] = copyConversation(conversation)
	r.notifyConversationLocked(conversation)

	return copyConversation(conversation), true, nil
}

func (r *memoryConversationRepository) ListByParticipant(ctx context.Context, userID string, limit int, cursor string) ([]*entity.Conversation, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.participantConversationsLocked(userID)

	start := 0
	if cursor != "" {
		start = -1
		for i, c := range all {
			if c.ID == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, "", errors.BadRequest("Invalid cursor", nil)
		}
	}

	page := all[start:]
	var next string
	if limit > 0 && len(page) > limit {
		page = page[:limit]
		next = page[limit-1].ID
	}

	result := make([]*entity.Conversation, 0, len(page))
	for _, c := range page {
		result = append(result, copyConversation(c))
	}
	return result, next, nil
}

func (r *memoryConversationRepository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*entity.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*entity.Conversation
	for _, c := range r.conversations {
		if !c.LastMessageTime.Before(since) {
			result = append(result, copyConversation(c))
		}
	}
	sortByActivity(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryConversationRepository) ResetUnread(ctx context.Context, conversationID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	conversation.UnreadCount[userID] = 0
	r.notifyConversationLocked(conversation)
	return nil
}

func (r *memoryConversationRepository) ReconcileUnread(ctx context.Context, conversationID string) (map[string]int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return nil, false, errors.NotFound("Conversation", nil)
	}

	counts := entity.CountUnread(conversation.Participants, r.messages[conversationID])
	changed := false
	for p, n := range counts {
		if conversation.UnreadFor(p) != n {
			changed = true
			break
		}
	}
	if changed {
		conversation.UnreadCount = copyCounts(counts)
		r.notifyConversationLocked(conversation)
	}
	return counts, changed, nil
}

func (r *memoryConversationRepository) WatchConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) error {
	ch, id := r.addWatcher(r.convWatchers, userID)
	defer r.removeWatcher(r.convWatchers, userID, id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			r.mu.RLock()
			all := r.participantConversationsLocked(userID)
			snapshot := make([]*entity.Conversation, 0, len(all))
			for _, c := range all {
				snapshot = append(snapshot, copyConversation(c))
			}
			r.mu.RUnlock()
			fn(snapshot)
		}
	}
}

func (r *memoryConversationRepository) AppendMessage(ctx context.Context, message *entity.Message, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[message.ConversationID]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.Timestamp = r.clock.Next()

	stored := *message
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], &stored)

	conversation.LastMessage = message.Text
	conversation.LastMessageTime = message.Timestamp
	conversation.LastSenderID = message.SenderID
	conversation.UpdatedAt = message.Timestamp
	conversation.UnreadCount[recipientID]++

	r.notifyConversationLocked(conversation)
	r.notifyMessagesLocked(message.ConversationID)
	return nil
}

func (r *memoryConversationRepository) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[conversationID]
	return newestFirst(all, len(all), limit), nil
}

func (r *memoryConversationRepository) GetMessagesBefore(ctx context.Context, conversationID, cursor string, limit int) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[conversationID]
	for i, m := range all {
		if m.ID == cursor {
			return newestFirst(all, i, limit), nil
		}
	}
	return nil, errors.BadRequest("Invalid cursor", nil)
}

func (r *memoryConversationRepository) ListUnreadMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var unread []*entity.Message
	for _, m := range r.messages[conversationID] {
		if !m.Read {
			copied := *m
			unread = append(unread, &copied)
		}
	}
	return unread, nil
}

func (r *memoryConversationRepository) MarkMessageRead(ctx context.Context, conversationID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages[conversationID] {
		if m.ID == messageID {
			m.Read = true
			r.notifyMessagesLocked(conversationID)
			return nil
		}
	}
	return errors.NotFound("Message", nil)
}

func (r *memoryConversationRepository) WatchMessages(ctx context.Context, conversationID string, fn func([]*entity.Message)) error {
	ch, id := r.addWatcher(r.messageWatchers, conversationID)
	defer r.removeWatcher(r.messageWatchers, conversationID, id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			r.mu.RLock()
			all := r.messages[conversationID]
			snapshot := make([]*entity.Message, 0, len(all))
			for _, m := range all {
				copied := *m
				snapshot = append(snapshot, &copied)
			}
			r.mu.RUnlock()
			fn(snapshot)
		}
	}
}

// addWatcher registers a watcher that is already signalled so the first loop iteration
// delivers the initial snapshot.
func (r *memoryConversationRepository) addWatcher(set map[string]map[int]chan struct{}, key string) (chan struct{}, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextWatcherID++
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	if set[key] == nil {
		set[key] = make(map[int]chan struct{})
	}
	set[key][r.nextWatcherID] = ch
	return ch, r.nextWatcherID
}

func (r *memoryConversationRepository) removeWatcher(set map[string]map[int]chan struct{}, key string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(set[key], id)
	if len(set[key]) == 0 {
		delete(set, key)
	}
}

func (r *memoryConversationRepository) notifyConversationLocked(conversation *entity.Conversation) {
	for _, p := range conversation.Participants {
		for _, ch := range r.convWatchers[p] {
			signal(ch)
		}
	}
}

func (r *memoryConversationRepository) notifyMessagesLocked(conversationID string) {
	for _, ch := range r.messageWatchers[conversationID] {
		signal(ch)
	}
}

func (r *memoryConversationRepository) participantConversationsLocked(userID string) []*entity.Conversation {
	var result []*entity.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			result = append(result, c)
		}
	}
	sortByActivity(result)
	return result
}

func sortByActivity(conversations []*entity.Conversation) {
	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.LastMessageTime.Equal(b.LastMessageTime) {
			return a.LastMessageTime.After(b.LastMessageTime)
		}
		return a.ID < b.ID
	})
}

// newestFirst copies up to limit messages from all[:end], newest first.
func newestFirst(all []*entity.Message, end, limit int) []*entity.Message {
	start := end - limit
	if start < 0 || limit <= 0 {
		start = 0
	}

	result := make([]*entity.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		copied := *all[i]
		result = append(result, &copied)
	}
	return result
}

func copyConversation(c *entity.Conversation) *entity.Conversation {
	copied := *c
	copied.Participants = append([]string(nil), c.Participants...)
	copied.UnreadCount = copyCounts(c.UnreadCount)
	if c.ParticipantNames != nil {
		copied.ParticipantNames = make(map[string]string, len(c.ParticipantNames))
		for k, v := range c.ParticipantNames {
			copied.ParticipantNames[k] = v
		}
	}
	if c.Context != nil {
		ctx := *c.Context
		copied.Context = &ctx
	}
	return &copied
}

func copyCounts(counts map[string]int) map[string]int {
	copied := make(map[string]int, len(counts))
	for k, v := range counts {
		copied[k] = v
	}
	return copied
}
