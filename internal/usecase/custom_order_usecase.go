package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/metrics"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/config"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

type CustomOrderUseCase struct {
	orderRepo        repository.CustomOrderRepository
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	materializer     OrderMaterializer
	notifier         *NotificationDispatcher
	publisher        EventPublisher
	rateLimiter      *ratelimit.RateLimiter

	validity         time.Duration
	requestRecipient string
	now              func() time.Time
}

type CustomOrderSettings struct {
	// Validity is how long a proposal can be accepted after creation.
	Validity time.Duration
	// RequestRecipient is config.NotifyBuyer or config.NotifySeller.
	RequestRecipient string
}

func NewCustomOrderUseCase(
	orderRepo repository.CustomOrderRepository,
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	materializer OrderMaterializer,
	notifier *NotificationDispatcher,
	publisher EventPublisher,
	rateLimiter *ratelimit.RateLimiter,
	settings CustomOrderSettings,
) *CustomOrderUseCase {
	if settings.Validity <= 0 {
		settings.Validity = 7 * 24 * time.Hour
	}
	if settings.RequestRecipient == "" {
		settings.RequestRecipient = config.NotifyBuyer
	}

	return &CustomOrderUseCase{
		orderRepo:        orderRepo,
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		materializer:     materializer,
		notifier:         notifier,
		publisher:        publisherOrNoop(publisher),
		rateLimiter:      rateLimiter,
		validity:         settings.Validity,
		requestRecipient: settings.RequestRecipient,
		now:              time.Now,
	}
}

type CreateCustomOrderInput struct {
	SellerID       string
	SellerName     string
	BuyerID        string
	BuyerName      string
	ConversationID string
	Items          []entity.CustomOrderItem
	ShippingCost   float64
	PaymentMethod  entity.PaymentMethod
	ItemType       entity.ItemType
	Notes          string
}

// normalizeCustomOrder applies the item-type rules in place and rejects invalid proposals.
// Digital items force quantity 1 and zero shipping, and require bank transfer.
func normalizeCustomOrder(input *CreateCustomOrderInput) error {
	if len(input.Items) == 0 {
		return errors.Validation("at least one item is required")
	}
	if input.ItemType == "" {
		input.ItemType = entity.ItemPhysical
	}
	if !input.ItemType.Valid() {
		return errors.Validation("item type must be one of: physical digital")
	}

	digital := input.ItemType == entity.ItemDigital
	for i := range input.Items {
		item := &input.Items[i]
		item.Name = strings.TrimSpace(item.Name)
		item.Description = strings.TrimSpace(item.Description)
		if item.ItemType == "" {
			item.ItemType = input.ItemType
		}
		if !item.ItemType.Valid() {
			return errors.Validation("item type must be one of: physical digital")
		}
		if item.ItemType == entity.ItemDigital {
			digital = true
			item.Quantity = 1
		}

		if item.Name == "" {
			return errors.Validation("every item needs a name")
		}
		if item.UnitPrice <= 0 {
			return errors.Validation("unit price must be greater than 0")
		}
		if item.Quantity <= 0 {
			return errors.Validation("quantity must be greater than 0")
		}
	}

	if input.ShippingCost < 0 {
		return errors.Validation("shipping cost cannot be negative")
	}
	if input.PaymentMethod == "" {
		return errors.Validation("a payment method is required")
	}
	if !input.PaymentMethod.Valid() {
		return errors.Validation("payment method must be one of: cash_on_delivery bank_transfer")
	}

	if digital {
		input.ShippingCost = 0
		if input.PaymentMethod != entity.PaymentBankTransfer {
			return errors.Validation("digital items can only be paid by bank transfer")
		}
	}
	return nil
}

// CreateCustomOrder stores a PENDING proposal valid for the configured window and notifies
// the configured recipient.
func (uc *CustomOrderUseCase) CreateCustomOrder(ctx context.Context, input CreateCustomOrderInput) (*entity.CustomOrder, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(input.SellerID, ratelimit.ActionCreateCustomOrder); !allowed {
			logger.Warn("CreateCustomOrder rate limited: user %s must wait %v", input.SellerID, wait)
			return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another custom order", wait)
		}
	}

	if input.SellerID == "" || input.BuyerID == "" {
		return nil, errors.Validation("seller and buyer are required")
	}
	if input.SellerID == input.BuyerID {
		return nil, errors.BadRequest("You cannot send a custom order to yourself", nil)
	}
	if input.ConversationID == "" {
		return nil, errors.Validation("conversation is required")
	}
	if err := normalizeCustomOrder(&input); err != nil {
		return nil, err
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(input.SellerID) || !conversation.HasParticipant(input.BuyerID) {
		return nil, errors.Forbidden("Seller and buyer must both take part in the conversation", nil)
	}

	for i := range input.Items {
		if input.Items[i].ID == "" {
			input.Items[i].ID = uuid.NewString()
		}
	}

	now := uc.now()
	total, grand := entity.CalculateTotals(input.Items, input.ShippingCost)
	order := &entity.CustomOrder{
		SellerID:       input.SellerID,
		SellerName:     input.SellerName,
		BuyerID:        input.BuyerID,
		BuyerName:      input.BuyerName,
		ConversationID: input.ConversationID,
		Items:          input.Items,
		ItemType:       input.ItemType,
		ShippingCost:   input.ShippingCost,
		PaymentMethod:  input.PaymentMethod,
		Notes:          strings.TrimSpace(input.Notes),
		Status:         entity.CustomOrderPending,
		TotalAmount:    total,
		GrandTotal:     grand,
		ValidUntil:     now.Add(uc.validity),
	}

	if order.PaymentMethod == entity.PaymentBankTransfer {
		order.SellerBankAccount = uc.sellerBankAccount(ctx, input.SellerID)
	}

	if err := uc.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	metrics.CustomOrders.WithLabelValues("created").Inc()
	logger.Info("Custom order %s created by %s for %s (%.2f)", order.ID, order.SellerID, order.BuyerID, order.GrandTotal)

	uc.notifier.Dispatch(ctx, uc.requestNotification(order))
	uc.publishOrder(order)

	return order, nil
}

func (uc *CustomOrderUseCase) sellerBankAccount(ctx context.Context, sellerID string) *entity.BankAccount {
	seller, err := uc.userRepo.GetByID(ctx, sellerID)
	if err != nil {
		logger.Warn("Could not load bank account for seller %s: %v", sellerID, err)
		return nil
	}
	if seller.BankAccount == nil {
		logger.Warn("Seller %s has no bank account on file", sellerID)
	}
	return seller.BankAccount
}

func (uc *CustomOrderUseCase) requestNotification(order *entity.CustomOrder) *entity.Notification {
	n := &entity.Notification{
		Kind:           entity.NotificationCustomOrderRequest,
		ItemsSummary:   summarizeItems(order.Items),
		CustomOrderID:  order.ID,
		ConversationID: order.ConversationID,
	}
	if uc.requestRecipient == config.NotifySeller {
		n.RecipientID = order.SellerID
		n.CounterpartyName = order.BuyerName
	} else {
		n.RecipientID = order.BuyerID
		n.CounterpartyName = order.SellerName
	}
	return n
}

// GetCustomOrder returns nil without error when the order does not exist or the caller is
// neither a party to it nor a participant of its conversation.
func (uc *CustomOrderUseCase) GetCustomOrder(ctx context.Context, callerID, orderID string) (*entity.CustomOrder, error) {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if callerID == order.SellerID || callerID == order.BuyerID {
		return order, nil
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, order.ConversationID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !conversation.HasParticipant(callerID) {
		return nil, nil
	}
	return order, nil
}

// ListCustomOrders returns the proposals negotiated in a conversation, newest first.
func (uc *CustomOrderUseCase) ListCustomOrders(ctx context.Context, userID, conversationID string) ([]*entity.CustomOrder, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}
	return uc.orderRepo.ListByConversation(ctx, conversationID)
}

type AcceptCustomOrderInput struct {
	OrderID string
	// BuyerID is the authenticated caller. When it differs from the addressed buyer the
	// proposal is re-addressed to the caller first.
	BuyerID   string
	BuyerName string
	Address   string
	Phone     string
}

type AcceptCustomOrderResult struct {
	Order           *entity.CustomOrder `json:"order"`
	Materialization *MaterializeResult  `json:"materialization,omitempty"`
}

// AcceptCustomOrder moves a PENDING, unexpired proposal to ACCEPTED and materializes it.
// A second accept is rejected with a conflict. Materialization failures do not undo the
// acceptance; they are logged and reported in the result.
func (uc *CustomOrderUseCase) AcceptCustomOrder(ctx context.Context, input AcceptCustomOrderInput) (*AcceptCustomOrderResult, error) {
	address := strings.TrimSpace(input.Address)
	phone := strings.TrimSpace(input.Phone)
	if address == "" {
		return nil, errors.Validation("delivery address is required")
	}
	if phone == "" {
		return nil, errors.Validation("phone number is required")
	}

	current, err := uc.orderRepo.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if current.SellerID == input.BuyerID {
		return nil, errors.Forbidden("Sellers cannot accept their own custom order", nil)
	}
	if current.BuyerID != input.BuyerID {
		if current.Status != entity.CustomOrderPending {
			return nil, errors.Conflict("Custom order is no longer pending", nil)
		}
		if _, err := uc.UpdateCustomOrderBuyer(ctx, input.OrderID, input.BuyerID, input.BuyerID, input.BuyerName); err != nil {
			return nil, err
		}
	}

	now := uc.now()
	order, err := uc.orderRepo.Update(ctx, input.OrderID, func(o *entity.CustomOrder) error {
		if o.Status != entity.CustomOrderPending {
			return errors.Conflict("Custom order is no longer pending", nil)
		}
		if o.IsExpired(now) {
			return errors.BadRequest("custom order has expired", nil)
		}
		if o.BuyerID != input.BuyerID {
			return errors.Conflict("Custom order was re-addressed to another buyer", nil)
		}

		o.Status = entity.CustomOrderAccepted
		o.BuyerAddress = address
		o.BuyerPhone = phone
		acceptedAt := now
		o.AcceptedAt = &acceptedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.CustomOrders.WithLabelValues("accepted").Inc()
	logger.Info("Custom order %s accepted by %s", order.ID, order.BuyerID)

	uc.notifier.Dispatch(ctx, &entity.Notification{
		RecipientID:      order.SellerID,
		Kind:             entity.NotificationCustomOrderAccepted,
		CounterpartyName: order.BuyerName,
		ItemsSummary:     summarizeItems(order.Items),
		CustomOrderID:    order.ID,
		ConversationID:   order.ConversationID,
	})

	result := &AcceptCustomOrderResult{Order: order}
	materialized, updated := uc.materialize(ctx, order)
	result.Materialization = materialized
	if updated != nil {
		result.Order = updated
	}

	uc.publishOrder(result.Order)
	return result, nil
}

// materialize hands an accepted order to the materializer and records the resulting IDs.
// Errors are logged, never returned.
func (uc *CustomOrderUseCase) materialize(ctx context.Context, order *entity.CustomOrder) (*MaterializeResult, *entity.CustomOrder) {
	if uc.materializer == nil {
		return nil, nil
	}

	result, err := uc.materializer.Materialize(ctx, NewMaterializeRequest(order))
	if err != nil {
		logger.LogSideEffectError("materialize_custom_order", order.ID, err)
		return nil, nil
	}
	if result.Partial() {
		logger.Warn("Custom order %s materialized partially: %d of %d items failed", order.ID, len(result.Failed), len(order.Items))
	}
	if len(result.OrderIDs) == 0 {
		return result, nil
	}

	updated, err := uc.orderRepo.Update(ctx, order.ID, func(o *entity.CustomOrder) error {
		o.FulfillmentOrderIDs = result.OrderIDs
		return nil
	})
	if err != nil {
		logger.LogSideEffectError("record_fulfillment_orders", order.ID, err)
		return result, nil
	}
	return result, updated
}

// RetryMaterialization re-runs materialization for an accepted order. Items that already
// have a fulfillment order are left alone.
func (uc *CustomOrderUseCase) RetryMaterialization(ctx context.Context, orderID, callerID string) (*MaterializeResult, error) {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if callerID != order.SellerID && callerID != order.BuyerID {
		return nil, errors.Forbidden("Only the seller or buyer can materialize this order", nil)
	}
	if order.Status == entity.CustomOrderPending || order.Status == entity.CustomOrderCancelled {
		return nil, errors.Conflict("Only accepted custom orders can be materialized", nil)
	}
	if uc.materializer == nil {
		return nil, errors.Internal("Order materialization is not configured", nil)
	}

	result, _ := uc.materialize(ctx, order)
	if result == nil {
		return nil, errors.Internal("Failed to materialize custom order", nil)
	}
	return result, nil
}

// UpdateCustomOrderBuyer re-opens the proposal for newBuyerID: status returns to PENDING and
// any delivery details of the previous acceptance are cleared. The new buyer must take part
// in the order's conversation, and only the seller or the new buyer may make the change.
// Once accepted, the buyer is fixed; the same buyer can still re-open until a fulfillment
// order exists.
func (uc *CustomOrderUseCase) UpdateCustomOrderBuyer(ctx context.Context, orderID, callerID, newBuyerID, newBuyerName string) (*entity.CustomOrder, error) {
	if newBuyerID == "" {
		return nil, errors.Validation("buyer is required")
	}

	current, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.SellerID == newBuyerID {
		return nil, errors.Forbidden("Sellers cannot buy their own custom order", nil)
	}
	if callerID != current.SellerID && callerID != newBuyerID {
		return nil, errors.Forbidden("Only the seller or the new buyer can change the buyer", nil)
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, current.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(newBuyerID) {
		return nil, errors.Forbidden("The buyer must take part in the conversation", nil)
	}

	if current.Status == entity.CustomOrderAccepted && uc.materializer != nil {
		existing, err := uc.materializer.Existing(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, errors.Conflict("Custom order already has fulfillment orders", nil)
		}
	}

	now := uc.now()
	order, err := uc.orderRepo.Update(ctx, orderID, func(o *entity.CustomOrder) error {
		switch o.Status {
		case entity.CustomOrderPending:
		case entity.CustomOrderAccepted:
			if o.BuyerID != newBuyerID {
				return errors.Conflict("An accepted custom order cannot change buyer", nil)
			}
			if len(o.FulfillmentOrderIDs) > 0 {
				return errors.Conflict("Custom order already has fulfillment orders", nil)
			}
		default:
			return errors.Conflict("Custom order can no longer change buyer", nil)
		}
		if o.IsExpired(now) {
			return errors.BadRequest("custom order has expired", nil)
		}

		o.Status = entity.CustomOrderPending
		o.BuyerID = newBuyerID
		o.BuyerName = newBuyerName
		o.BuyerAddress = ""
		o.BuyerPhone = ""
		o.AcceptedAt = nil
		o.FulfillmentOrderIDs = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.CustomOrders.WithLabelValues("reopened").Inc()
	logger.Info("Custom order %s re-addressed to %s by %s", order.ID, newBuyerID, callerID)

	uc.publishOrder(order)
	return order, nil
}

// UpdateCustomOrderStatus applies a status write coming from the fulfillment pipeline.
func (uc *CustomOrderUseCase) UpdateCustomOrderStatus(ctx context.Context, orderID string, status entity.CustomOrderStatus) (*entity.CustomOrder, error) {
	if !status.Valid() {
		return nil, errors.Validation("status must be one of: ACCEPTED PAID SHIPPED DELIVERED CANCELLED")
	}
	if status == entity.CustomOrderPending {
		return nil, errors.BadRequest("Proposals are re-opened by changing the buyer", nil)
	}

	order, err := uc.orderRepo.Update(ctx, orderID, func(o *entity.CustomOrder) error {
		if !entity.CanTransition(o.Status, status) {
			return errors.Conflict("Cannot move custom order from "+string(o.Status)+" to "+string(status), nil)
		}
		o.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.CustomOrders.WithLabelValues(strings.ToLower(string(status))).Inc()

	uc.publishOrder(order)
	return order, nil
}

func (uc *CustomOrderUseCase) publishOrder(order *entity.CustomOrder) {
	event := entity.Event{
		Type:           entity.EventCustomOrder,
		ConversationID: order.ConversationID,
		Payload:        order,
		Timestamp:      uc.now(),
	}
	uc.publisher.PublishToUser(order.SellerID, event)
	uc.publisher.PublishToUser(order.BuyerID, event)
}
