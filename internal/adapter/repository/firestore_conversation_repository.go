package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) conversations() *firestore.CollectionRef {
	return r.client.Collection(conversationsCollection)
}

func (r *firestoreConversationRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.conversations().Doc(conversationID).Collection(messagesCollection)
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.conversations().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	return conversationFromDoc(doc)
}

func (r *firestoreConversationRepository) CreateIfAbsent(ctx context.Context, conversation *entity.Conversation) (*entity.Conversation, bool, error) {
	ref := r.conversations().NewDoc()
	if conversation.ID != "" {
		ref = r.conversations().Doc(conversation.ID)
	}
	conversation.ID = ref.ID

	now := time.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	if conversation.LastMessageTime.IsZero() {
		conversation.LastMessageTime = now
	}

	_, err := ref.Create(ctx, conversation)
	if status.Code(err) == codes.AlreadyExists {
		existing, getErr := r.GetByID(ctx, conversation.ID)
		return existing, false, getErr
	}
	if err != nil {
		return nil, false, errors.Internal("Failed to create conversation", err)
	}

	return conversation, true, nil
}

func (r *firestoreConversationRepository) ListByParticipant(ctx context.Context, userID string, limit int, cursor string) ([]*entity.Conversation, string, error) {
	query := r.conversations().
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageTime", firestore.Desc)

	if cursor != "" {
		snap, err := r.conversations().Doc(cursor).Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, "", errors.BadRequest("Invalid cursor", err)
			}
			return nil, "", errors.Internal("Failed to resolve cursor", err)
		}
		query = query.StartAfter(snap)
	}
	if limit > 0 {
		query = query.Limit(limit + 1)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while listing conversations for user %s: %v", userID, err)
		return nil, "", errors.Internal("Failed to list conversations", err)
	}

	conversations := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		conversation, err := conversationFromDoc(doc)
		if err != nil {
			logger.Warn("Skipping unreadable conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		conversations = append(conversations, conversation)
	}

	var next string
	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
		next = conversations[limit-1].ID
	}

	return conversations, next, nil
}

func (r *firestoreConversationRepository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*entity.Conversation, error) {
	query := r.conversations().
		Where("lastMessageTime", ">=", since).
		OrderBy("lastMessageTime", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list active conversations", err)
	}

	conversations := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		conversation, err := conversationFromDoc(doc)
		if err != nil {
			continue
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

func (r *firestoreConversationRepository) ResetUnread(ctx context.Context, conversationID, userID string) error {
	_, err := r.conversations().Doc(conversationID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"unreadCount", userID}, Value: 0},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to reset unread count", err)
	}
	return nil
}

func (r *firestoreConversationRepository) ReconcileUnread(ctx context.Context, conversationID string) (map[string]int, bool, error) {
	ref := r.conversations().Doc(conversationID)

	var counts map[string]int
	var changed bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = false

		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		conversation, err := conversationFromDoc(doc)
		if err != nil {
			return err
		}

		unreadDocs, err := tx.Documents(r.messages(conversationID).Where("read", "==", false)).GetAll()
		if err != nil {
			return err
		}
		unread := make([]*entity.Message, 0, len(unreadDocs))
		for _, d := range unreadDocs {
			message, err := messageFromDoc(d, conversationID)
			if err != nil {
				return err
			}
			unread = append(unread, message)
		}

		counts = entity.CountUnread(conversation.Participants, unread)
		for p, n := range counts {
			if conversation.UnreadFor(p) != n {
				changed = true
				break
			}
		}
		if !changed {
			return nil
		}

		return tx.Update(ref, []firestore.Update{{Path: "unreadCount", Value: counts}})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, errors.NotFound("Conversation", err)
		}
		return nil, false, errors.Internal("Failed to reconcile unread counts", err)
	}

	return counts, changed, nil
}

func (r *firestoreConversationRepository) WatchConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) error {
	it := r.conversations().
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageTime", firestore.Desc).
		Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if isWatchClosed(ctx, err) {
				return nil
			}
			return errors.Internal("Conversation listener failed", err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			return errors.Internal("Failed to read conversation snapshot", err)
		}

		conversations := make([]*entity.Conversation, 0, len(docs))
		for _, doc := range docs {
			conversation, err := conversationFromDoc(doc)
			if err != nil {
				continue
			}
			conversations = append(conversations, conversation)
		}
		fn(conversations)
	}
}

func (r *firestoreConversationRepository) AppendMessage(ctx context.Context, message *entity.Message, recipientID string) error {
	conversationRef := r.conversations().Doc(message.ConversationID)
	messageRef := r.messages(message.ConversationID).NewDoc()
	if message.ID != "" {
		messageRef = r.messages(message.ConversationID).Doc(message.ID)
	}
	message.ID = messageRef.ID

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(messageRef, message); err != nil {
			return err
		}
		return tx.Update(conversationRef, []firestore.Update{
			{Path: "lastMessage", Value: message.Text},
			{Path: "lastMessageTime", Value: firestore.ServerTimestamp},
			{Path: "lastSenderId", Value: message.SenderID},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
			{FieldPath: firestore.FieldPath{"unreadCount", recipientID}, Value: firestore.Increment(1)},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to send message", err)
	}

	// The timestamp is assigned by the server; read it back so callers see the stored value.
	if doc, err := messageRef.Get(ctx); err == nil {
		if stored, err := messageFromDoc(doc, message.ConversationID); err == nil {
			message.Timestamp = stored.Timestamp
		}
	} else {
		logger.Debug("Could not read back message %s timestamp: %v", message.ID, err)
		message.Timestamp = time.Now()
	}

	return nil
}

func (r *firestoreConversationRepository) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	query := r.messages(conversationID).OrderBy("timestamp", firestore.Desc).Limit(limit)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching messages for conversation %s: %v", conversationID, err)
		return nil, errors.Internal("Failed to fetch messages", err)
	}
	return messagesFromDocs(docs, conversationID)
}

func (r *firestoreConversationRepository) GetMessagesBefore(ctx context.Context, conversationID, cursor string, limit int) ([]*entity.Message, error) {
	cursorDoc, err := r.messages(conversationID).Doc(cursor).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.BadRequest("Invalid cursor", err)
		}
		return nil, errors.Internal("Failed to resolve cursor", err)
	}

	query := r.messages(conversationID).
		OrderBy("timestamp", firestore.Desc).
		StartAfter(cursorDoc).
		Limit(limit)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while paginating messages for conversation %s: %v", conversationID, err)
		return nil, errors.Internal("Failed to fetch messages", err)
	}
	return messagesFromDocs(docs, conversationID)
}

func (r *firestoreConversationRepository) ListUnreadMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	iter := r.messages(conversationID).Where("read", "==", false).Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate unread messages", err)
		}

		message, err := messageFromDoc(doc, conversationID)
		if err != nil {
			logger.Warn("Skipping unreadable message %s in conversation %s: %v", doc.Ref.ID, conversationID, err)
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (r *firestoreConversationRepository) MarkMessageRead(ctx context.Context, conversationID, messageID string) error {
	_, err := r.messages(conversationID).Doc(messageID).Update(ctx, []firestore.Update{
		{Path: "read", Value: true},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to update message read status", err)
	}
	return nil
}

func (r *firestoreConversationRepository) WatchMessages(ctx context.Context, conversationID string, fn func([]*entity.Message)) error {
	it := r.messages(conversationID).OrderBy("timestamp", firestore.Asc).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if isWatchClosed(ctx, err) {
				return nil
			}
			return errors.Internal("Message listener failed", err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			return errors.Internal("Failed to read message snapshot", err)
		}

		messages, err := messagesFromDocs(docs, conversationID)
		if err != nil {
			return err
		}
		fn(messages)
	}
}

func isWatchClosed(ctx context.Context, err error) bool {
	if err == iterator.Done || ctx.Err() != nil {
		return true
	}
	return status.Code(err) == codes.Canceled
}

func conversationFromDoc(doc *firestore.DocumentSnapshot) (*entity.Conversation, error) {
	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	conversation.ID = doc.Ref.ID
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}
	return &conversation, nil
}

func messageFromDoc(doc *firestore.DocumentSnapshot, conversationID string) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	message.ID = doc.Ref.ID
	message.ConversationID = conversationID
	return &message, nil
}

func messagesFromDocs(docs []*firestore.DocumentSnapshot, conversationID string) ([]*entity.Message, error) {
	messages := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		message, err := messageFromDoc(doc, conversationID)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}
