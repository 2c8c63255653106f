package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/metrics"
	"marketchat/pkg/logger"
)

// NotificationDispatcher stores a notification and pushes it to the recipient's sessions.
// It never fails the calling operation.
type NotificationDispatcher struct {
	notificationRepo repository.NotificationRepository
	publisher        EventPublisher
}

func NewNotificationDispatcher(notificationRepo repository.NotificationRepository, publisher EventPublisher) *NotificationDispatcher {
	return &NotificationDispatcher{
		notificationRepo: notificationRepo,
		publisher:        publisherOrNoop(publisher),
	}
}

func (d *NotificationDispatcher) Dispatch(ctx context.Context, notification *entity.Notification) {
	if d == nil {
		return
	}
	if notification.RecipientID == "" {
		logger.Warn("Dropping %s notification without recipient", notification.Kind)
		return
	}

	if err := d.notificationRepo.Create(ctx, notification); err != nil {
		metrics.NotificationFailures.Inc()
		logger.LogSideEffectError("notify_"+string(notification.Kind), notification.CustomOrderID, err)
		return
	}

	d.publisher.PublishToUser(notification.RecipientID, entity.Event{
		Type:           entity.EventNotification,
		ConversationID: notification.ConversationID,
		Payload:        notification,
		Timestamp:      time.Now(),
	})
}

func (d *NotificationDispatcher) List(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	return d.notificationRepo.ListByRecipient(ctx, userID, limit)
}

// summarizeItems renders "2 x Bag, 1 x Hat" for notification text.
func summarizeItems(items []entity.CustomOrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%d x %s", item.Quantity, item.Name))
	}
	return strings.Join(parts, ", ")
}
