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

const customOrdersCollection = "customOrders"

type firestoreCustomOrderRepository struct {
	client *firestore.Client
}

func NewFirestoreCustomOrderRepository(client *firestore.Client) repository.CustomOrderRepository {
	return &firestoreCustomOrderRepository{
		client: client,
	}
}

func (r *firestoreCustomOrderRepository) Create(ctx context.Context, order *entity.CustomOrder) error {
	ref := r.client.Collection(customOrdersCollection).NewDoc()
	if order.ID != "" {
		ref = r.client.Collection(customOrdersCollection).Doc(order.ID)
	}
	order.ID = ref.ID

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	if _, err := ref.Create(ctx, order); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Custom order already exists", err)
		}
		return errors.Internal("Failed to create custom order", err)
	}
	return nil
}

func (r *firestoreCustomOrderRepository) GetByID(ctx context.Context, id string) (*entity.CustomOrder, error) {
	doc, err := r.client.Collection(customOrdersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Custom order", err)
		}
		return nil, errors.Internal("Failed to get custom order", err)
	}
	return customOrderFromDoc(doc)
}

func (r *firestoreCustomOrderRepository) Update(ctx context.Context, id string, mutate func(order *entity.CustomOrder) error) (*entity.CustomOrder, error) {
	ref := r.client.Collection(customOrdersCollection).Doc(id)

	var updated *entity.CustomOrder
	var mutateErr error
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		mutateErr = nil

		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		order, err := customOrderFromDoc(doc)
		if err != nil {
			return err
		}

		if err := mutate(order); err != nil {
			mutateErr = err
			return err
		}
		order.UpdatedAt = time.Now()
		updated = order

		return tx.Set(ref, order)
	})
	if mutateErr != nil {
		return nil, mutateErr
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Custom order", err)
		}
		return nil, errors.Internal("Failed to update custom order", err)
	}

	return updated, nil
}

func (r *firestoreCustomOrderRepository) ListByConversation(ctx context.Context, conversationID string) ([]*entity.CustomOrder, error) {
	docs, err := r.client.Collection(customOrdersCollection).
		Where("conversationId", "==", conversationID).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list custom orders", err)
	}

	orders := make([]*entity.CustomOrder, 0, len(docs))
	for _, doc := range docs {
		order, err := customOrderFromDoc(doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func customOrderFromDoc(doc *firestore.DocumentSnapshot) (*entity.CustomOrder, error) {
	var order entity.CustomOrder
	if err := doc.DataTo(&order); err != nil {
		return nil, errors.Internal("Failed to parse custom order data", err)
	}
	order.ID = doc.Ref.ID
	return &order, nil
}
