package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutKey records an idempotency token consumed by order creation.
// A (user_id, token) pair can create exactly one order.
type CheckoutKey struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_checkout_keys_user_token"`
	Token     string    `gorm:"column:token;not null;uniqueIndex:ux_checkout_keys_user_token"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name used by the checkout transaction.
func (CheckoutKey) TableName() string {
	return "checkout_keys"
}
