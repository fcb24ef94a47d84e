package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/internal/cart"
	"github.com/anupamdas/zevar-backend/internal/orders"
	"github.com/anupamdas/zevar-backend/internal/products"
	dbpkg "github.com/anupamdas/zevar-backend/pkg/db"
	"github.com/anupamdas/zevar-backend/pkg/db/models"
	"github.com/anupamdas/zevar-backend/pkg/enums"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
	"github.com/anupamdas/zevar-backend/pkg/outbox"
	"github.com/anupamdas/zevar-backend/pkg/outbox/payloads"
	"github.com/anupamdas/zevar-backend/pkg/razorpay"
	"github.com/anupamdas/zevar-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayClient interface {
	CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service executes the checkout orchestration.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
}

// PlaceOrderInput carries everything needed to turn a cart into an order.
type PlaceOrderInput struct {
	UserID          uuid.UUID
	PaymentMethod   enums.PaymentMethod
	ShippingAddress *types.Address
	IdempotencyKey  string
}

// PlaceOrderResult is the checkout outcome. GatewayOrder is nil for methods
// without a gateway leg, and Replayed marks an idempotent token hit.
type PlaceOrderResult struct {
	Order        *models.Order
	GatewayOrder *razorpay.Order
	Replayed     bool
}

type service struct {
	tx       txRunner
	cartRepo cart.Repository
	orders   orders.Repository
	products products.Repository
	keys     KeyRepository
	gateway  gatewayClient
	outbox   outboxPublisher
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	ordersRepo orders.Repository,
	productsRepo products.Repository,
	keys KeyRepository,
	gateway gatewayClient,
	publisher outboxPublisher,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if keys == nil {
		return nil, fmt.Errorf("checkout key repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:       tx,
		cartRepo: cartRepo,
		orders:   ordersRepo,
		products: productsRepo,
		keys:     keys,
		gateway:  gateway,
		outbox:   publisher,
	}, nil
}

// PlaceOrder converts the user's cart into an order inside one transaction:
// lock cart lines, snapshot prices, create the gateway order when the method
// needs one, persist the order with its items, clear the cart, and queue the
// order_created event. Any failure rolls the whole thing back.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodRazorpay
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.PaymentMethod})
	}
	token := strings.TrimSpace(input.IdempotencyKey)

	result := &PlaceOrderResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		keys := s.keys.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)
		productsRepo := s.products.WithTx(tx)

		orderID := uuid.New()
		if token != "" {
			err := keys.Insert(ctx, &models.CheckoutKey{
				UserID:  input.UserID,
				Token:   token,
				OrderID: orderID,
			})
			if err != nil {
				if dbpkg.IsUniqueViolation(err, "ux_checkout_keys_user_token") {
					return errTokenReplayed
				}
				return err
			}
		}

		lines, err := cartRepo.FindLinesByUserForUpdate(ctx, input.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		productIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			productIDs = append(productIDs, line.ProductID)
		}
		catalog, err := productsRepo.FindByIDs(ctx, productIDs)
		if err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, ok := catalog[line.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart references missing product").
					WithDetails(map[string]any{"product_id": line.ProductID})
			}
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			items = append(items, models.OrderItem{
				OrderID:   orderID,
				ProductID: product.ID,
				Name:      product.Name,
				Quantity:  line.Quantity,
				Price:     product.Price,
			})
		}
		total = total.Round(2)

		var razorpayOrderID *string
		if method.RequiresGatewayVerification() {
			gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderParams{
				Amount:   total,
				Currency: enums.CurrencyINR.String(),
				Receipt:  orderID.String(),
			})
			if err != nil {
				return err
			}
			razorpayOrderID = &gatewayOrder.ID
			result.GatewayOrder = gatewayOrder
		}

		order := &models.Order{
			ID:              orderID,
			UserID:          input.UserID,
			TotalAmount:     total,
			Currency:        enums.CurrencyINR,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   method,
			PaymentStatus:   enums.PaymentStatusPending,
			RazorpayOrderID: razorpayOrderID,
			ShippingAddress: input.ShippingAddress,
		}
		if _, err := ordersRepo.Create(ctx, order); err != nil {
			return err
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return err
		}
		order.Items = items

		if err := cartRepo.Clear(ctx, input.UserID); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.OrderCreatedEvent{
				OrderID:         order.ID,
				UserID:          input.UserID,
				TotalAmount:     total,
				Currency:        enums.CurrencyINR,
				PaymentMethod:   method,
				RazorpayOrderID: razorpayOrderID,
				ItemCount:       len(items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result.Order = order
		return nil
	})
	if err == errTokenReplayed {
		return s.replayOrder(ctx, input.UserID, token)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

var errTokenReplayed = fmt.Errorf("checkout token already consumed")

// replayOrder resolves a reused idempotency token to the order it originally
// created, after the insert-time unique violation rolled the new attempt back.
func (s *service) replayOrder(ctx context.Context, userID uuid.UUID, token string) (*PlaceOrderResult, error) {
	key, err := s.keys.Find(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already in use")
	}
	order, err := s.orders.FindByID(ctx, key.OrderID)
	if err != nil {
		return nil, err
	}
	return &PlaceOrderResult{Order: order, Replayed: true}, nil
}
