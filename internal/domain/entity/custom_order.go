package entity

import "time"

type CustomOrderStatus string

const (
	CustomOrderPending   CustomOrderStatus = "PENDING"
	CustomOrderAccepted  CustomOrderStatus = "ACCEPTED"
	CustomOrderPaid      CustomOrderStatus = "PAID"
	CustomOrderShipped   CustomOrderStatus = "SHIPPED"
	CustomOrderDelivered CustomOrderStatus = "DELIVERED"
	CustomOrderCancelled CustomOrderStatus = "CANCELLED"
)

func (s CustomOrderStatus) Valid() bool {
	switch s {
	case CustomOrderPending, CustomOrderAccepted, CustomOrderPaid,
		CustomOrderShipped, CustomOrderDelivered, CustomOrderCancelled:
		return true
	}
	return false
}

func (s CustomOrderStatus) IsTerminal() bool {
	return s == CustomOrderDelivered || s == CustomOrderCancelled
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCashOnDelivery || p == PaymentBankTransfer
}

type ItemType string

const (
	ItemPhysical ItemType = "physical"
	ItemDigital  ItemType = "digital"
)

func (t ItemType) Valid() bool {
	return t == ItemPhysical || t == ItemDigital
}

type CustomOrderItem struct {
	ID          string   `json:"id" firestore:"id"`
	Name        string   `json:"name" firestore:"name"`
	Description string   `json:"description,omitempty" firestore:"description,omitempty"`
	Quantity    int      `json:"quantity" firestore:"quantity"`
	UnitPrice   float64  `json:"unit_price" firestore:"unitPrice"`
	ImageURL    string   `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	ItemType    ItemType `json:"item_type" firestore:"itemType"`
}

func (i CustomOrderItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

type BankAccount struct {
	BankName      string `json:"bank_name" firestore:"bankName"`
	AccountName   string `json:"account_name" firestore:"accountName"`
	AccountNumber string `json:"account_number" firestore:"accountNumber"`
	Branch        string `json:"branch,omitempty" firestore:"branch,omitempty"`
}

type CustomOrder struct {
	ID             string            `json:"id" firestore:"id"`
	SellerID       string            `json:"seller_id" firestore:"sellerId"`
	SellerName     string            `json:"seller_name" firestore:"sellerName"`
	BuyerID        string            `json:"buyer_id" firestore:"buyerId"`
	BuyerName      string            `json:"buyer_name" firestore:"buyerName"`
	ConversationID string            `json:"conversation_id" firestore:"conversationId"`
	Items          []CustomOrderItem `json:"items" firestore:"items"`
	ItemType       ItemType          `json:"item_type" firestore:"itemType"`
	ShippingCost   float64           `json:"shipping_cost" firestore:"shippingCost"`
	PaymentMethod  PaymentMethod     `json:"payment_method" firestore:"paymentMethod"`
	Notes          string            `json:"notes,omitempty" firestore:"notes,omitempty"`
	Status         CustomOrderStatus `json:"status" firestore:"status"`
	TotalAmount    float64           `json:"total_amount" firestore:"totalAmount"`
	GrandTotal     float64           `json:"grand_total" firestore:"grandTotal"`

	BuyerAddress      string       `json:"buyer_address,omitempty" firestore:"buyerAddress,omitempty"`
	BuyerPhone        string       `json:"buyer_phone,omitempty" firestore:"buyerPhone,omitempty"`
	SellerBankAccount *BankAccount `json:"seller_bank_account,omitempty" firestore:"sellerBankAccount,omitempty"`

	FulfillmentOrderIDs []string `json:"fulfillment_order_ids,omitempty" firestore:"fulfillmentOrderIds,omitempty"`

	ValidUntil time.Time  `json:"valid_until" firestore:"validUntil"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty" firestore:"acceptedAt,omitempty"`
	CreatedAt  time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt  time.Time  `json:"updated_at" firestore:"updatedAt"`
}

// IsExpired reports whether the proposal's validity window has passed. Status is not
// flipped on expiry; callers treat an expired PENDING proposal as unacceptable.
func (o *CustomOrder) IsExpired(now time.Time) bool {
	return now.After(o.ValidUntil)
}

func (o *CustomOrder) HasDigitalItems() bool {
	if o.ItemType == ItemDigital {
		return true
	}
	for _, item := range o.Items {
		if item.ItemType == ItemDigital {
			return true
		}
	}
	return false
}

// CalculateTotals returns Σ(unitPrice × quantity) and that sum plus shipping.
func CalculateTotals(items []CustomOrderItem, shippingCost float64) (totalAmount, grandTotal float64) {
	for _, item := range items {
		totalAmount += item.Subtotal()
	}
	return totalAmount, totalAmount + shippingCost
}

var customOrderTransitions = map[CustomOrderStatus][]CustomOrderStatus{
	CustomOrderPending:  {CustomOrderAccepted, CustomOrderCancelled},
	CustomOrderAccepted: {CustomOrderPaid, CustomOrderPending, CustomOrderCancelled},
	CustomOrderPaid:     {CustomOrderShipped, CustomOrderCancelled},
	CustomOrderShipped:  {CustomOrderDelivered, CustomOrderCancelled},
}

// CanTransition reports whether a status write from -> to is allowed.
func CanTransition(from, to CustomOrderStatus) bool {
	for _, next := range customOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
