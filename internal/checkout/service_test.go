package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/internal/cart"
	"github.com/anupamdas/zevar-backend/internal/orders"
	"github.com/anupamdas/zevar-backend/internal/products"
	"github.com/anupamdas/zevar-backend/pkg/db/models"
	"github.com/anupamdas/zevar-backend/pkg/enums"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
	"github.com/anupamdas/zevar-backend/pkg/outbox"
	"github.com/anupamdas/zevar-backend/pkg/pagination"
	"github.com/anupamdas/zevar-backend/pkg/razorpay"
)

func TestPlaceOrderRequiresUser(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()

	_, err := env.svc.PlaceOrder(context.Background(), PlaceOrderInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()

	_, err := env.svc.PlaceOrder(context.Background(), PlaceOrderInput{UserID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.ordersRepo.created != nil {
		t.Fatal("no order should be created for an empty cart")
	}
	if !env.tx.rolledBack {
		t.Fatal("expected transaction rollback")
	}
}

func TestPlaceOrderComputesTotalAndSnapshotsPrices(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	userID := uuid.New()
	ring := models.Product{ID: uuid.New(), Name: "Gold Ring", Price: decimal.RequireFromString("1299.00"), IsActive: true}
	chain := models.Product{ID: uuid.New(), Name: "Silver Chain", Price: decimal.RequireFromString("99.00"), IsActive: true}
	env.cartRepo.lines = []models.CartLine{
		{UserID: userID, ProductID: ring.ID, Quantity: 1},
		{UserID: userID, ProductID: chain.ID, Quantity: 2},
	}
	env.productsRepo.products = map[uuid.UUID]models.Product{ring.ID: ring, chain.ID: chain}

	result, err := env.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodRazorpay,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := decimal.RequireFromString("1497.00")
	if !result.Order.TotalAmount.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, result.Order.TotalAmount)
	}
	if got := env.gateway.lastParams.Amount; !got.Equal(want) {
		t.Fatalf("gateway should receive the order total, got %s", got)
	}
	if result.Order.Status != enums.OrderStatusPending || result.Order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending/pending, got %s/%s", result.Order.Status, result.Order.PaymentStatus)
	}
	if result.Order.RazorpayOrderID == nil || *result.Order.RazorpayOrderID != "order_test123" {
		t.Fatalf("expected gateway order id on the order, got %v", result.Order.RazorpayOrderID)
	}

	if len(env.ordersRepo.items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(env.ordersRepo.items))
	}
	for _, item := range env.ordersRepo.items {
		product := env.productsRepo.products[item.ProductID]
		if !item.Price.Equal(product.Price) {
			t.Fatalf("item price %s should snapshot product price %s", item.Price, product.Price)
		}
		if item.Name != product.Name {
			t.Fatalf("item name %q should snapshot product name %q", item.Name, product.Name)
		}
	}

	if !env.cartRepo.cleared {
		t.Fatal("cart must be cleared in the same transaction")
	}
	if len(env.events.emitted) != 1 || env.events.emitted[0].EventType != enums.EventOrderCreated {
		t.Fatalf("unexpected events: %+v", env.events.emitted)
	}
}

func TestPlaceOrderGatewayFailureRollsBack(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	userID := uuid.New()
	ring := models.Product{ID: uuid.New(), Name: "Gold Ring", Price: decimal.RequireFromString("1299.00"), IsActive: true}
	env.cartRepo.lines = []models.CartLine{{UserID: userID, ProductID: ring.ID, Quantity: 1}}
	env.productsRepo.products = map[uuid.UUID]models.Product{ring.ID: ring}
	env.gateway.err = pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")

	_, err := env.svc.PlaceOrder(context.Background(), PlaceOrderInput{UserID: userID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.ordersRepo.created != nil {
		t.Fatal("no order should persist when the gateway call fails")
	}
	if env.cartRepo.cleared {
		t.Fatal("cart must survive a failed checkout")
	}
	if !env.tx.rolledBack {
		t.Fatal("expected transaction rollback")
	}
}

func TestPlaceOrderSkipsGatewayForTrustedMethods(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	userID := uuid.New()
	ring := models.Product{ID: uuid.New(), Name: "Gold Ring", Price: decimal.RequireFromString("1299.00"), IsActive: true}
	env.cartRepo.lines = []models.CartLine{{UserID: userID, ProductID: ring.ID, Quantity: 1}}
	env.productsRepo.products = map[uuid.UUID]models.Product{ring.ID: ring}

	result, err := env.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodUPI,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.gateway.calls != 0 {
		t.Fatal("upi checkout must not call the gateway")
	}
	if result.GatewayOrder != nil || result.Order.RazorpayOrderID != nil {
		t.Fatal("upi order should carry no gateway reference")
	}
}

func TestPlaceOrderReplaysConsumedToken(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	userID := uuid.New()
	prior := &models.Order{ID: uuid.New(), UserID: userID, Status: enums.OrderStatusPending}
	env.keys.insertErr = uniqueViolationErr{}
	env.keys.existing = &models.CheckoutKey{UserID: userID, Token: "tok-1", OrderID: prior.ID}
	env.ordersRepo.found = prior

	result, err := env.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:         userID,
		IdempotencyKey: "tok-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Replayed {
		t.Fatal("expected replayed result")
	}
	if result.Order.ID != prior.ID {
		t.Fatalf("expected prior order, got %s", result.Order.ID)
	}
	if env.ordersRepo.created != nil {
		t.Fatal("token reuse must not create a second order")
	}
}

type checkoutEnv struct {
	svc          Service
	tx           *trackingTxRunner
	cartRepo     *stubCartRepo
	ordersRepo   *stubOrdersRepo
	productsRepo *stubProductsRepo
	keys         *stubKeyRepo
	gateway      *stubGateway
	events       *stubOutbox
}

func newCheckoutEnv() *checkoutEnv {
	env := &checkoutEnv{
		tx:           &trackingTxRunner{},
		cartRepo:     &stubCartRepo{},
		ordersRepo:   &stubOrdersRepo{},
		productsRepo: &stubProductsRepo{},
		keys:         &stubKeyRepo{},
		gateway:      &stubGateway{},
		events:       &stubOutbox{},
	}
	svc, err := NewService(env.tx, env.cartRepo, env.ordersRepo, env.productsRepo, env.keys, env.gateway, env.events)
	if err != nil {
		panic(err)
	}
	env.svc = svc
	return env
}

type trackingTxRunner struct {
	rolledBack bool
}

func (r *trackingTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := fn(&gorm.DB{}); err != nil {
		r.rolledBack = true
		return err
	}
	return nil
}

type stubCartRepo struct {
	lines   []models.CartLine
	cleared bool
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCartRepo) FindLinesByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	return s.lines, nil
}

func (s *stubCartRepo) FindLinesByUserForUpdate(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	return s.lines, nil
}

func (s *stubCartRepo) FindLine(ctx context.Context, userID, productID uuid.UUID) (*models.CartLine, error) {
	return nil, nil
}

func (s *stubCartRepo) Upsert(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	return line, nil
}

func (s *stubCartRepo) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCartRepo) Remove(ctx context.Context, userID, productID uuid.UUID) error { return nil }

func (s *stubCartRepo) RemoveByID(ctx context.Context, lineID uuid.UUID) (*models.CartLine, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	s.cleared = true
	return nil
}

type stubOrdersRepo struct {
	created *models.Order
	found   *models.Order
	items   []models.OrderItem
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.created = order
	return order, nil
}

func (s *stubOrdersRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	s.items = items
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.found != nil {
		return s.found, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrdersRepo) FindByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrdersRepo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.List, error) {
	return &orders.List{}, nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return nil
}

func (s *stubOrdersRepo) UpdatePayment(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *stubOrdersRepo) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

type stubProductsRepo struct {
	products map[uuid.UUID]models.Product
}

func (s *stubProductsRepo) WithTx(tx *gorm.DB) products.Repository { return s }

func (s *stubProductsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := s.products[id]; ok {
		return &product, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubProductsRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	result := make(map[uuid.UUID]models.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (s *stubProductsRepo) List(ctx context.Context, params products.ListParams) ([]models.Product, error) {
	return nil, nil
}

type stubKeyRepo struct {
	existing  *models.CheckoutKey
	insertErr error
}

func (s *stubKeyRepo) WithTx(tx *gorm.DB) KeyRepository { return s }

func (s *stubKeyRepo) Find(ctx context.Context, userID uuid.UUID, token string) (*models.CheckoutKey, error) {
	return s.existing, nil
}

func (s *stubKeyRepo) Insert(ctx context.Context, key *models.CheckoutKey) error {
	return s.insertErr
}

type stubGateway struct {
	lastParams razorpay.CreateOrderParams
	calls      int
	err        error
}

func (s *stubGateway) CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error) {
	s.calls++
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &razorpay.Order{
		ID:       "order_test123",
		Amount:   razorpay.MinorUnits(params.Amount),
		Currency: params.Currency,
		Receipt:  params.Receipt,
		Status:   "created",
	}, nil
}

type uniqueViolationErr struct{}

func (uniqueViolationErr) Error() string {
	return `duplicate key value violates unique constraint "ux_checkout_keys_user_token"`
}

type stubOutbox struct {
	emitted []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.emitted = append(s.emitted, event)
	return nil
}
