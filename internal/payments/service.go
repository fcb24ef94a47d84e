package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/internal/orders"
	"github.com/anupamdas/zevar-backend/pkg/db/models"
	"github.com/anupamdas/zevar-backend/pkg/enums"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
	"github.com/anupamdas/zevar-backend/pkg/logger"
	"github.com/anupamdas/zevar-backend/pkg/outbox"
	"github.com/anupamdas/zevar-backend/pkg/outbox/payloads"
	"github.com/anupamdas/zevar-backend/pkg/razorpay"
)

const (
	gatewayStatusCaptured = "captured"
	gatewayStatusFailed   = "failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayClient interface {
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// WebhookEvent is the razorpay webhook body, reduced to the fields the
// reconciliation path reads.
type WebhookEvent struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity *PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentEntity is the nested payment record inside a webhook event.
type PaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// ConfirmPaymentInput carries a client-submitted payment confirmation.
type ConfirmPaymentInput struct {
	OrderID   uuid.UUID
	Method    enums.PaymentMethod
	PaymentID string
}

// ConfirmPaymentResult reports the order state after confirmation.
type ConfirmPaymentResult struct {
	Order     *models.Order
	PaymentID string
	Captured  bool
}

// Service reconciles payment outcomes onto orders.
type Service interface {
	HandleWebhook(ctx context.Context, event *WebhookEvent) error
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*ConfirmPaymentResult, error)
	PaymentMethods() []enums.PaymentMethod
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	gateway gatewayClient
	outbox  outboxPublisher
	logg    *logger.Logger
}

// NewService builds the payment reconciliation service.
func NewService(repo orders.Repository, tx txRunner, gateway gatewayClient, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, gateway: gateway, outbox: publisher, logg: logg}, nil
}

// HandleWebhook applies an asynchronous gateway event to the matching order.
// Unknown orders, terminal orders, stale events, and demoting events are all
// acknowledged without changing state.
func (s *service) HandleWebhook(ctx context.Context, event *WebhookEvent) error {
	if event == nil || event.Payload.Payment.Entity == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing payment entity")
	}
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing order id")
	}

	occurredAt := time.Now().UTC()
	if event.CreatedAt > 0 {
		occurredAt = time.Unix(event.CreatedAt, 0).UTC()
	}

	ctx = s.logg.WithGatewayOrderID(ctx, entity.OrderID)

	order, err := s.repo.FindByRazorpayOrderID(ctx, entity.OrderID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.logg.Warn(ctx, "webhook for unknown order ignored")
			return nil
		}
		return err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	switch entity.Status {
	case gatewayStatusCaptured:
		return s.reconcile(ctx, order, true, entity.ID, occurredAt)
	case gatewayStatusFailed:
		return s.reconcile(ctx, order, false, entity.ID, occurredAt)
	default:
		s.logg.Info(ctx, fmt.Sprintf("ignoring webhook payment status %q", entity.Status))
		return nil
	}
}

// ConfirmPayment is the synchronous confirmation path. Gateway-backed methods
// are verified against the gateway; upi and card confirmations are trusted.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*ConfirmPaymentResult, error) {
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.Method})
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if order.Status.IsTerminal() {
		if order.PaymentStatus == enums.PaymentStatusCompleted {
			return &ConfirmPaymentResult{Order: order, PaymentID: derefString(order.PaymentID), Captured: true}, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state").
			WithDetails(map[string]any{"status": order.Status})
	}

	captured := false
	paymentID := input.PaymentID
	if input.Method.RequiresGatewayVerification() {
		if paymentID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
		}
		payment, err := s.gateway.FetchPayment(ctx, paymentID)
		switch {
		case err != nil:
			s.logg.Error(ctx, "gateway payment lookup failed", err)
		case !paymentBelongsToOrder(payment, order):
			// A captured payment for some other gateway order must not
			// settle this one.
			s.logg.Warn(s.logg.WithGatewayOrderID(ctx, payment.OrderID), "payment belongs to a different gateway order")
		default:
			captured = payment.Captured()
		}
	} else {
		captured = true
		if paymentID == "" {
			paymentID = fmt.Sprintf("%s_%d", input.Method, time.Now().Unix())
		}
	}

	updates := map[string]any{"payment_method": input.Method}
	if err := s.reconcileWithUpdates(ctx, order, captured, paymentID, time.Now().UTC(), updates); err != nil {
		return nil, err
	}
	return &ConfirmPaymentResult{Order: order, PaymentID: paymentID, Captured: captured}, nil
}

// PaymentMethods lists the methods accepted at checkout.
func (s *service) PaymentMethods() []enums.PaymentMethod {
	return enums.PaymentMethods()
}

func (s *service) reconcile(ctx context.Context, order *models.Order, captured bool, paymentID string, occurredAt time.Time) error {
	return s.reconcileWithUpdates(ctx, order, captured, paymentID, occurredAt, nil)
}

// reconcileWithUpdates applies the combined (status, payment_status)
// transition under one transaction. Guards, in order: terminal orders stay
// put, events at or before the last applied one are stale, and a paid order
// is never demoted by a late failure.
func (s *service) reconcileWithUpdates(ctx context.Context, order *models.Order, captured bool, paymentID string, occurredAt time.Time, extra map[string]any) error {
	if order.Status.IsTerminal() {
		s.logg.Info(ctx, "payment event for terminal order ignored")
		return nil
	}
	if order.PaymentEventAt != nil && !occurredAt.After(*order.PaymentEventAt) {
		s.logg.Info(ctx, "stale payment event ignored")
		return nil
	}
	if order.PaymentStatus == enums.PaymentStatusCompleted {
		if !captured {
			s.logg.Warn(ctx, "failure event for settled order ignored")
		}
		return nil
	}

	updates := map[string]any{
		"payment_event_at": occurredAt,
	}
	for key, value := range extra {
		updates[key] = value
	}

	var event outbox.DomainEvent
	if captured {
		updates["status"] = enums.OrderStatusProcessing
		updates["payment_status"] = enums.PaymentStatusCompleted
		updates["payment_id"] = paymentID
		event = outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:   order.ID,
				UserID:    order.UserID,
				PaymentID: paymentID,
				PaidAt:    occurredAt,
			},
		}
	} else {
		updates["status"] = enums.OrderStatusCancelled
		updates["payment_status"] = enums.PaymentStatusFailed
		if paymentID != "" {
			updates["payment_id"] = paymentID
		}
		event = outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.PaymentFailedEvent{
				OrderID:   order.ID,
				UserID:    order.UserID,
				PaymentID: paymentID,
				FailedAt:  occurredAt,
			},
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdatePayment(ctx, order.ID, updates); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	if captured {
		order.Status = enums.OrderStatusProcessing
		order.PaymentStatus = enums.PaymentStatusCompleted
		order.PaymentID = &paymentID
	} else {
		order.Status = enums.OrderStatusCancelled
		order.PaymentStatus = enums.PaymentStatusFailed
	}
	order.PaymentEventAt = &occurredAt
	s.logg.Info(ctx, fmt.Sprintf("order reconciled to %s/%s", order.Status, order.PaymentStatus))
	return nil
}

// paymentBelongsToOrder checks the payment's gateway order against the order
// under confirmation. Orders without a gateway id cannot be matched and are
// treated as foreign.
func paymentBelongsToOrder(payment *razorpay.Payment, order *models.Order) bool {
	if payment == nil || order.RazorpayOrderID == nil {
		return false
	}
	return payment.OrderID == *order.RazorpayOrderID
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
