package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anupamdas/zevar-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order produced from a cart checkout.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	UserID          uuid.UUID           `json:"user_id"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Currency        enums.Currency      `json:"currency"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	RazorpayOrderID *string             `json:"razorpay_order_id,omitempty"`
	ItemCount       int                 `json:"item_count"`
}

// OrderPaidEvent is emitted when a payment settles and the order moves to processing.
type OrderPaidEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	PaymentID string    `json:"payment_id"`
	PaidAt    time.Time `json:"paid_at"`
}

// PaymentFailedEvent is emitted when the gateway reports a failed payment.
type PaymentFailedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

// OrderStatusChangedEvent reports a fulfillment status transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderExpiredEvent reports that a stale unpaid order was cancelled by the TTL job.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiredAt time.Time `json:"expired_at"`
}
