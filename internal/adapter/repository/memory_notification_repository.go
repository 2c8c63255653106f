package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
)

type memoryNotificationRepository struct {
	mu            sync.Mutex
	clock         *memoryClock
	notifications []*entity.Notification
}

func NewMemoryNotificationRepository(now func() time.Time) repository.NotificationRepository {
	return &memoryNotificationRepository{
		clock: newMemoryClock(now),
	}
}

func (r *memoryNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notification.ID = uuid.NewString()
	notification.CreatedAt = r.clock.Next()
	stored := *notification
	r.notifications = append(r.notifications, &stored)
	return nil
}

func (r *memoryNotificationRepository) ListByRecipient(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		n := r.notifications[i]
		if n.RecipientID != userID {
			continue
		}
		copied := *n
		result = append(result, &copied)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}
