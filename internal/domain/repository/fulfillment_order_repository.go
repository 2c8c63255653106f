package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

type FulfillmentOrderRepository interface {
	// CreateIfAbsent returns created=false without error when an order with the same ID exists.
	CreateIfAbsent(ctx context.Context, order *entity.FulfillmentOrder) (created bool, err error)
	ListByCustomOrder(ctx context.Context, customOrderID string) ([]*entity.FulfillmentOrder, error)
}
