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

type memoryCustomOrderRepository struct {
	mu     sync.Mutex
	clock  *memoryClock
	orders map[string]*entity.CustomOrder
}

func NewMemoryCustomOrderRepository(now func() time.Time) repository.CustomOrderRepository {
	return &memoryCustomOrderRepository{
		clock:  newMemoryClock(now),
		orders: make(map[string]*entity.CustomOrder),
	}
}

func (r *memoryCustomOrderRepository) Create(ctx context.Context, order *entity.CustomOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if _, ok := r.orders[order.ID]; ok {
		return errors.Conflict("Custom order already exists", nil)
	}

	now := r.clock.Next()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = copyCustomOrder(order)
	return nil
}

func (r *memoryCustomOrderRepository) GetByID(ctx context.Context, id string) (*entity.CustomOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, errors.NotFound("Custom order", nil)
	}
	return copyCustomOrder(order), nil
}

func (r *memoryCustomOrderRepository) Update(ctx context.Context, id string, mutate func(order *entity.CustomOrder) error) (*entity.CustomOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return nil, errors.NotFound("Custom order", nil)
	}

	working := copyCustomOrder(stored)
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.ID = id
	working.UpdatedAt = r.clock.Next()

	r.orders[id] = copyCustomOrder(working)
	return working, nil
}

func (r *memoryCustomOrderRepository) ListByConversation(ctx context.Context, conversationID string) ([]*entity.CustomOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orders []*entity.CustomOrder
	for _, o := range r.orders {
		if o.ConversationID == conversationID {
			orders = append(orders, copyCustomOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func copyCustomOrder(o *entity.CustomOrder) *entity.CustomOrder {
	copied := *o
	copied.Items = append([]entity.CustomOrderItem(nil), o.Items...)
	copied.FulfillmentOrderIDs = append([]string(nil), o.FulfillmentOrderIDs...)
	if o.SellerBankAccount != nil {
		account := *o.SellerBankAccount
		copied.SellerBankAccount = &account
	}
	if o.AcceptedAt != nil {
		acceptedAt := *o.AcceptedAt
		copied.AcceptedAt = &acceptedAt
	}
	return &copied
}
