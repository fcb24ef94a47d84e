package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anupamdas/zevar-backend/pkg/enums"
	"github.com/anupamdas/zevar-backend/pkg/types"
)

// Order represents a customer order produced from a cart checkout.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	User            *User               `gorm:"foreignKey:UserID"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Currency        enums.Currency      `gorm:"column:currency;type:text;not null;default:'INR'"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'razorpay'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	RazorpayOrderID *string             `gorm:"column:razorpay_order_id;uniqueIndex"`
	PaymentID       *string             `gorm:"column:payment_id"`
	PaymentEventAt  *time.Time          `gorm:"column:payment_event_at"`
	ShippingAddress *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
