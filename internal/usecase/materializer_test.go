package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapter "marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
)

func TestMaterializeRequestSplitsShippingEvenly(t *testing.T) {
	req := NewMaterializeRequest(&entity.CustomOrder{
		ID:           "co-1",
		ShippingCost: 90,
		Items: []entity.CustomOrderItem{
			{Name: "cheap", UnitPrice: 1, Quantity: 1},
			{Name: "pricey", UnitPrice: 1000, Quantity: 1},
			{Name: "mid", UnitPrice: 50, Quantity: 2},
		},
	})

	assert.Equal(t, 30.0, req.ShippingShare)
	assert.Len(t, req.Items, 3)
	assert.Equal(t, 0.0, NewMaterializeRequest(&entity.CustomOrder{ShippingCost: 10}).ShippingShare)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	repo := adapter.NewMemoryFulfillmentOrderRepository(nil)
	m := NewFulfillmentMaterializer(repo)
	ctx := context.Background()

	req := MaterializeRequest{
		CustomOrderID: "co-1",
		SellerID:      "seller-1",
		BuyerID:       "buyer-1",
		Items: []entity.CustomOrderItem{
			{Name: "Bag", UnitPrice: 1500, Quantity: 1, ItemType: entity.ItemPhysical},
			{Name: "Wallet", UnitPrice: 800, Quantity: 2, ItemType: entity.ItemPhysical},
		},
		ShippingShare: 100,
		PaymentMethod: entity.PaymentCashOnDelivery,
	}

	first, err := m.Materialize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"co-1-0", "co-1-1"}, first.Created)
	assert.Empty(t, first.Existing)

	second, err := m.Materialize(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, first.OrderIDs, second.OrderIDs)

	orders, err := repo.ListByCustomOrder(ctx, "co-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, 1700.0, orders[1].TotalAmount)
	assert.Equal(t, 2, orders[1].Quantity)
}
