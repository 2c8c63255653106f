package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

const notificationsCollection = "notifications"

type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) repository.NotificationRepository {
	return &firestoreNotificationRepository{
		client: client,
	}
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	ref := r.client.Collection(notificationsCollection).NewDoc()
	notification.ID = ref.ID
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	if _, err := ref.Set(ctx, notification); err != nil {
		return errors.Internal("Failed to create notification", err)
	}
	return nil
}

func (r *firestoreNotificationRepository) ListByRecipient(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	query := r.client.Collection(notificationsCollection).
		Where("recipientId", "==", userID).
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list notifications", err)
	}

	notifications := make([]*entity.Notification, 0, len(docs))
	for _, doc := range docs {
		var n entity.Notification
		if err := doc.DataTo(&n); err != nil {
			return nil, errors.Internal("Failed to parse notification data", err)
		}
		n.ID = doc.Ref.ID
		notifications = append(notifications, &n)
	}
	return notifications, nil
}
