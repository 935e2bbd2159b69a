package domain

import "time"

// OrderStatusEvent is published when a payment reaches a terminal
// state, for fulfillment and notification consumers.
type OrderStatusEvent struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	PaymentID     string    `json:"payment_id"`
	Provider      string    `json:"provider"`
	PaymentStatus string    `json:"payment_status"`
	OrderStatus   string    `json:"order_status"`
	Amount        string    `json:"amount"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
