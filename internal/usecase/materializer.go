package usecase

import (
	"context"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/metrics"
	"marketchat/pkg/logger"
)

// MaterializeRequest is everything the fulfillment side needs from an accepted proposal.
type MaterializeRequest struct {
	CustomOrderID string
	SellerID      string
	SellerName    string
	BuyerID       string
	BuyerName     string
	Items         []entity.CustomOrderItem
	// ShippingShare is shippingCost split evenly across items, not weighted by value.
	ShippingShare float64
	PaymentMethod entity.PaymentMethod
	BuyerAddress  string
	BuyerPhone    string
}

func NewMaterializeRequest(order *entity.CustomOrder) MaterializeRequest {
	var share float64
	if len(order.Items) > 0 {
		share = order.ShippingCost / float64(len(order.Items))
	}
	return MaterializeRequest{
		CustomOrderID: order.ID,
		SellerID:      order.SellerID,
		SellerName:    order.SellerName,
		BuyerID:       order.BuyerID,
		BuyerName:     order.BuyerName,
		Items:         append([]entity.CustomOrderItem(nil), order.Items...),
		ShippingShare: share,
		PaymentMethod: order.PaymentMethod,
		BuyerAddress:  order.BuyerAddress,
		BuyerPhone:    order.BuyerPhone,
	}
}

type MaterializeFailure struct {
	ItemIndex int    `json:"item_index"`
	Error     string `json:"error"`
}

type MaterializeResult struct {
	// OrderIDs lists the fulfillment orders that exist after this call, in item order.
	OrderIDs []string             `json:"order_ids"`
	Created  []string             `json:"created"`
	Existing []string             `json:"existing"`
	Failed   []MaterializeFailure `json:"failed,omitempty"`
}

func (r *MaterializeResult) Partial() bool {
	return len(r.Failed) > 0
}

// OrderMaterializer turns an accepted proposal into one fulfillment order per item.
type OrderMaterializer interface {
	Materialize(ctx context.Context, req MaterializeRequest) (*MaterializeResult, error)
	// Existing lists the fulfillment orders already written for a proposal.
	Existing(ctx context.Context, customOrderID string) ([]string, error)
}

type FulfillmentMaterializer struct {
	orderRepo repository.FulfillmentOrderRepository
}

func NewFulfillmentMaterializer(orderRepo repository.FulfillmentOrderRepository) *FulfillmentMaterializer {
	return &FulfillmentMaterializer{orderRepo: orderRepo}
}

// Materialize creates the orders one by one under IDs derived from the item index, so a
// retry after a partial failure only fills the gaps.
func (m *FulfillmentMaterializer) Materialize(ctx context.Context, req MaterializeRequest) (*MaterializeResult, error) {
	result := &MaterializeResult{}

	for idx, item := range req.Items {
		order := &entity.FulfillmentOrder{
			ID:            entity.FulfillmentOrderID(req.CustomOrderID, idx),
			CustomOrderID: req.CustomOrderID,
			ItemIndex:     idx,
			SellerID:      req.SellerID,
			SellerName:    req.SellerName,
			BuyerID:       req.BuyerID,
			BuyerName:     req.BuyerName,
			ItemName:      item.Name,
			Description:   item.Description,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			ImageURL:      item.ImageURL,
			ItemType:      item.ItemType,
			ShippingCost:  req.ShippingShare,
			TotalAmount:   item.Subtotal() + req.ShippingShare,
			PaymentMethod: req.PaymentMethod,
			BuyerAddress:  req.BuyerAddress,
			BuyerPhone:    req.BuyerPhone,
			Status:        entity.FulfillmentPending,
		}

		created, err := m.orderRepo.CreateIfAbsent(ctx, order)
		if err != nil {
			logger.Warn("Failed to materialize item %d of custom order %s: %v", idx, req.CustomOrderID, err)
			metrics.FulfillmentOrders.WithLabelValues("failed").Inc()
			result.Failed = append(result.Failed, MaterializeFailure{ItemIndex: idx, Error: err.Error()})
			continue
		}

		result.OrderIDs = append(result.OrderIDs, order.ID)
		if created {
			metrics.FulfillmentOrders.WithLabelValues("created").Inc()
			result.Created = append(result.Created, order.ID)
		} else {
			metrics.FulfillmentOrders.WithLabelValues("existing").Inc()
			result.Existing = append(result.Existing, order.ID)
		}
	}

	return result, nil
}

func (m *FulfillmentMaterializer) Existing(ctx context.Context, customOrderID string) ([]string, error) {
	orders, err := m.orderRepo.ListByCustomOrder(ctx, customOrderID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids, nil
}
