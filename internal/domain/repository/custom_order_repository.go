package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

type CustomOrderRepository interface {
	Create(ctx context.Context, order *entity.CustomOrder) error
	GetByID(ctx context.Context, id string) (*entity.CustomOrder, error)
	// Update runs mutate against the current stored order and writes the result atomically.
	// An error from mutate aborts the write and is returned unchanged.
	Update(ctx context.Context, id string, mutate func(order *entity.CustomOrder) error) (*entity.CustomOrder, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.CustomOrder, error)
}
