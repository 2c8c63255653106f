package entity

import (
	"fmt"
	"time"
)

const FulfillmentPending = "pending"

// FulfillmentOrder is one trackable order produced from one line item of an accepted proposal.
type FulfillmentOrder struct {
	ID            string        `json:"id" firestore:"id"`
	CustomOrderID string        `json:"custom_order_id" firestore:"customOrderId"`
	ItemIndex     int           `json:"item_index" firestore:"itemIndex"`
	SellerID      string        `json:"seller_id" firestore:"sellerId"`
	SellerName    string        `json:"seller_name" firestore:"sellerName"`
	BuyerID       string        `json:"buyer_id" firestore:"buyerId"`
	BuyerName     string        `json:"buyer_name" firestore:"buyerName"`
	ItemName      string        `json:"item_name" firestore:"itemName"`
	Description   string        `json:"description,omitempty" firestore:"description,omitempty"`
	Quantity      int           `json:"quantity" firestore:"quantity"`
	UnitPrice     float64       `json:"unit_price" firestore:"unitPrice"`
	ImageURL      string        `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	ItemType      ItemType      `json:"item_type" firestore:"itemType"`
	ShippingCost  float64       `json:"shipping_cost" firestore:"shippingCost"`
	TotalAmount   float64       `json:"total_amount" firestore:"totalAmount"`
	PaymentMethod PaymentMethod `json:"payment_method" firestore:"paymentMethod"`
	BuyerAddress  string        `json:"buyer_address,omitempty" firestore:"buyerAddress,omitempty"`
	BuyerPhone    string        `json:"buyer_phone,omitempty" firestore:"buyerPhone,omitempty"`
	Status        string        `json:"status" firestore:"status"`
	CreatedAt     time.Time     `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time     `json:"updated_at" firestore:"updatedAt"`
}

// FulfillmentOrderID is stable per (custom order, item index) so retries never duplicate.
func FulfillmentOrderID(customOrderID string, itemIndex int) string {
	return fmt.Sprintf("%s-%d", customOrderID, itemIndex)
}
