package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusFailed     OrderStatus = "FAILED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidOrder  = errors.New("invalid order data")
)

type Order struct {
	ID          string
	OrderNumber string
	UserID      string
	Total       decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewOrder(id, orderNumber, userID string, total decimal.Decimal) (*Order, error) {
	if id == "" || orderNumber == "" || userID == "" || !total.IsPositive() {
		return nil, ErrInvalidOrder
	}
	now := time.Now()
	return &Order{
		ID:          id,
		OrderNumber: orderNumber,
		UserID:      userID,
		Total:       total,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Confirm advances a pending order after its payment completed. Orders
// that already progressed past PENDING are left as they are.
func (o *Order) Confirm() error {
	if o.Status == OrderStatusConfirmed {
		return nil
	}
	if o.Status != OrderStatusPending {
		return errors.New("order cannot be confirmed from status " + string(o.Status))
	}
	o.Status = OrderStatusConfirmed
	o.UpdatedAt = time.Now()
	return nil
}
