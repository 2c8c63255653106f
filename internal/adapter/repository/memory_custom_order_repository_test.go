package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/errors"
)

func TestMemoryCustomOrderUpdateIsolation(t *testing.T) {
	repo := NewMemoryCustomOrderRepository(nil)
	ctx := context.Background()

	order := &entity.CustomOrder{
		SellerID: "seller",
		BuyerID:  "buyer",
		Status:   entity.CustomOrderPending,
		Items:    []entity.CustomOrderItem{{Name: "Bag", Quantity: 1, UnitPrice: 10}},
	}
	require.NoError(t, repo.Create(ctx, order))
	require.NotEmpty(t, order.ID)

	_, err := repo.Update(ctx, order.ID, func(o *entity.CustomOrder) error {
		o.Status = entity.CustomOrderAccepted
		o.Items[0].Name = "changed"
		return errors.Conflict("stop", nil)
	})
	assert.True(t, errors.Is(err, errors.CodeConflict))

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.CustomOrderPending, stored.Status)
	assert.Equal(t, "Bag", stored.Items[0].Name)

	updated, err := repo.Update(ctx, order.ID, func(o *entity.CustomOrder) error {
		o.Status = entity.CustomOrderAccepted
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, entity.CustomOrderAccepted, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
}

func TestMemoryCustomOrderNotFound(t *testing.T) {
	repo := NewMemoryCustomOrderRepository(nil)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))

	_, err = repo.Update(context.Background(), "missing", func(*entity.CustomOrder) error { return nil })
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryFulfillmentCreateIfAbsent(t *testing.T) {
	repo := NewMemoryFulfillmentOrderRepository(nil)
	ctx := context.Background()

	order := &entity.FulfillmentOrder{ID: entity.FulfillmentOrderID("co1", 0), CustomOrderID: "co1"}
	created, err := repo.CreateIfAbsent(ctx, order)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, &entity.FulfillmentOrder{ID: order.ID, CustomOrderID: "co1"})
	require.NoError(t, err)
	assert.False(t, created)

	orders, err := repo.ListByCustomOrder(ctx, "co1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestMemoryNotificationsNewestFirst(t *testing.T) {
	repo := NewMemoryNotificationRepository(nil)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Notification{RecipientID: "u1", ItemsSummary: "first"}))
	require.NoError(t, repo.Create(ctx, &entity.Notification{RecipientID: "u2", ItemsSummary: "other"}))
	require.NoError(t, repo.Create(ctx, &entity.Notification{RecipientID: "u1", ItemsSummary: "second"}))

	got, err := repo.ListByRecipient(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].ItemsSummary)

	got, err = repo.ListByRecipient(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
