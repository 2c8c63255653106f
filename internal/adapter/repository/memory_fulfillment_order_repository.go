package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
)

type memoryFulfillmentOrderRepository struct {
	mu     sync.Mutex
	clock  *memoryClock
	orders map[string]*entity.FulfillmentOrder
}

func NewMemoryFulfillmentOrderRepository(now func() time.Time) repository.FulfillmentOrderRepository {
	return &memoryFulfillmentOrderRepository{
		clock:  newMemoryClock(now),
		orders: make(map[string]*entity.FulfillmentOrder),
	}
}

func (r *memoryFulfillmentOrderRepository) CreateIfAbsent(ctx context.Context, order *entity.FulfillmentOrder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return false, nil
	}

	now := r.clock.Next()
	order.CreatedAt = now
	order.UpdatedAt = now
	stored := *order
	r.orders[order.ID] = &stored
	return true, nil
}

func (r *memoryFulfillmentOrderRepository) ListByCustomOrder(ctx context.Context, customOrderID string) ([]*entity.FulfillmentOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orders []*entity.FulfillmentOrder
	for _, o := range r.orders {
		if o.CustomOrderID == customOrderID {
			copied := *o
			orders = append(orders, &copied)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ItemIndex < orders[j].ItemIndex
	})
	return orders, nil
}
