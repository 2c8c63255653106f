package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

const ordersCollection = "orders"

type firestoreFulfillmentOrderRepository struct {
	client *firestore.Client
}

func NewFirestoreFulfillmentOrderRepository(client *firestore.Client) repository.FulfillmentOrderRepository {
	return &firestoreFulfillmentOrderRepository{
		client: client,
	}
}

func (r *firestoreFulfillmentOrderRepository) CreateIfAbsent(ctx context.Context, order *entity.FulfillmentOrder) (bool, error) {
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := r.client.Collection(ordersCollection).Doc(order.ID).Create(ctx, order)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, errors.Internal("Failed to create order", err)
	}
	return true, nil
}

func (r *firestoreFulfillmentOrderRepository) ListByCustomOrder(ctx context.Context, customOrderID string) ([]*entity.FulfillmentOrder, error) {
	docs, err := r.client.Collection(ordersCollection).
		Where("customOrderId", "==", customOrderID).
		OrderBy("itemIndex", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list orders", err)
	}

	orders := make([]*entity.FulfillmentOrder, 0, len(docs))
	for _, doc := range docs {
		var order entity.FulfillmentOrder
		if err := doc.DataTo(&order); err != nil {
			return nil, errors.Internal("Failed to parse order data", err)
		}
		order.ID = doc.Ref.ID
		orders = append(orders, &order)
	}
	return orders, nil
}
