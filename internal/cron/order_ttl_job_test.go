package cron

import (
	"context"
	"testing"
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
	"github.com/anupamdas/zevar-backend/pkg/pagination"
)

func TestOrderTTLJob_expiresStalePendingOrder(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	order := models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
	}
	helper := newOrderTTLJobTest(t, &fakeStaleReader{orders: []models.Order{order}})
	helper.job.now = func() time.Time { return now }
	helper.repo.order = cloneOrder(order)

	if err := helper.job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(helper.repo.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(helper.repo.updates))
	}
	update := helper.repo.updates[0]
	if update["status"] != enums.OrderStatusCancelled || update["payment_status"] != enums.PaymentStatusFailed {
		t.Fatalf("unexpected update: %+v", update)
	}

	if len(helper.outboxSvc.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(helper.outboxSvc.events))
	}
	event := helper.outboxSvc.events[0]
	if event.EventType != enums.EventOrderExpired {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.OrderExpiredEvent)
	if !ok {
		t.Fatal("expected expiration event payload")
	}
	if payload.OrderID != order.ID || !payload.ExpiredAt.Equal(now) {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestOrderTTLJob_skipsOrderPaidSinceSweep(t *testing.T) {
	order := models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
	}
	helper := newOrderTTLJobTest(t, &fakeStaleReader{orders: []models.Order{order}})

	paid := cloneOrder(order)
	paid.Status = enums.OrderStatusProcessing
	paid.PaymentStatus = enums.PaymentStatusCompleted
	helper.repo.order = paid

	if err := helper.job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(helper.repo.updates) != 0 {
		t.Fatal("paid order must not be expired")
	}
	if len(helper.outboxSvc.events) != 0 {
		t.Fatal("no event expected for paid order")
	}
}

func TestOrderTTLJob_continuesPastFailures(t *testing.T) {
	broken := models.Order{ID: uuid.New(), Status: enums.OrderStatusPending, PaymentStatus: enums.PaymentStatusPending}
	healthy := models.Order{ID: uuid.New(), Status: enums.OrderStatusPending, PaymentStatus: enums.PaymentStatusPending}
	helper := newOrderTTLJobTest(t, &fakeStaleReader{orders: []models.Order{broken, healthy}})
	helper.repo.failFindFor = broken.ID
	helper.repo.order = cloneOrder(healthy)

	err := helper.job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(helper.repo.updates) != 1 {
		t.Fatalf("healthy order should still expire, got %d updates", len(helper.repo.updates))
	}
}

type orderTTLJobTest struct {
	job       *orderTTLJob
	repo      *fakeOrderRepo
	outboxSvc *fakeOutboxEmitter
}

func newOrderTTLJobTest(t *testing.T, reader *fakeStaleReader) *orderTTLJobTest {
	t.Helper()

	repo := &fakeOrderRepo{}
	outboxSvc := &fakeOutboxEmitter{}
	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:            fakeTxRunner{},
		PendingReader: reader,
		Outbox:        outboxSvc,
		TTL:           168 * time.Hour,
		TransactionalRepoFactory: func(tx *gorm.DB) orders.Repository {
			return repo
		},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	typed, ok := job.(*orderTTLJob)
	if !ok {
		t.Fatal("unexpected job type")
	}
	return &orderTTLJobTest{job: typed, repo: repo, outboxSvc: outboxSvc}
}

func cloneOrder(order models.Order) *models.Order {
	copied := order
	return &copied
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeStaleReader struct {
	orders []models.Order
}

func (f *fakeStaleReader) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return f.orders, nil
}

type fakeOutboxEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeOutboxEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeOrderRepo struct {
	order       *models.Order
	failFindFor uuid.UUID
	updates     []map[string]any
}

func (f *fakeOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (f *fakeOrderRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == f.failFindFor {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lookup failed")
	}
	if f.order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *f.order
	copied.ID = id
	return &copied, nil
}

func (f *fakeOrderRepo) FindByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (f *fakeOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.List, error) {
	return &orders.List{}, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return nil
}

func (f *fakeOrderRepo) UpdatePayment(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	f.updates = append(f.updates, updates)
	return nil
}

func (f *fakeOrderRepo) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}
