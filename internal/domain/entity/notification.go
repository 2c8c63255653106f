package entity

import "time"

type NotificationKind string

const (
	NotificationCustomOrderRequest  NotificationKind = "custom_order_request"
	NotificationCustomOrderAccepted NotificationKind = "custom_order_accepted"
)

type Notification struct {
	ID               string           `json:"id" firestore:"id"`
	RecipientID      string           `json:"recipient_id" firestore:"recipientId"`
	Kind             NotificationKind `json:"kind" firestore:"kind"`
	CounterpartyName string           `json:"counterparty_name" firestore:"counterpartyName"`
	ItemsSummary     string           `json:"items_summary" firestore:"itemsSummary"`
	CustomOrderID    string           `json:"custom_order_id,omitempty" firestore:"customOrderId,omitempty"`
	ConversationID   string           `json:"conversation_id,omitempty" firestore:"conversationId,omitempty"`
	Read             bool             `json:"read" firestore:"read"`
	CreatedAt        time.Time        `json:"created_at" firestore:"createdAt"`
}
