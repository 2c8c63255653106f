package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ListByRecipient(ctx context.Context, userID string, limit int) ([]*entity.Notification, error)
}
