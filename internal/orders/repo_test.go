package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/pkg/db/models"
	"github.com/anupamdas/zevar-backend/pkg/enums"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
	"github.com/anupamdas/zevar-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL DEFAULT 'razorpay',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  razorpay_order_id TEXT,
  payment_id TEXT,
  payment_event_at DATETIME,
  shipping_address TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  images TEXT NOT NULL DEFAULT '{}',
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  category_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func newOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time, razorpayOrderID *string) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		TotalAmount:     decimal.RequireFromString("1497.00"),
		Currency:        enums.CurrencyINR,
		Status:          enums.OrderStatusPending,
		PaymentMethod:   enums.PaymentMethodRazorpay,
		PaymentStatus:   enums.PaymentStatusPending,
		RazorpayOrderID: razorpayOrderID,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func strPtr(s string) *string { return &s }

func TestRepositoryCreateWithItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, uuid.New(), time.Now().UTC(), strPtr("order_A1"))
	items := []models.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: uuid.New(), Name: "Gold Ring", Quantity: 1, Price: decimal.RequireFromString("1299.00")},
		{ID: uuid.New(), OrderID: order.ID, ProductID: uuid.New(), Name: "Silver Chain", Quantity: 2, Price: decimal.RequireFromString("99.00")},
	}
	require.NoError(t, repo.CreateItems(ctx, items))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("1497.00")))
}

func TestRepositoryFindByIDNestsProductAndUser(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "asha@example.in", FirstName: "Asha", LastName: "Verma"}
	require.NoError(t, db.Create(user).Error)
	product := &models.Product{ID: uuid.New(), Name: "Gold Ring", Price: decimal.RequireFromString("1299.00"), Images: pq.StringArray{"https://cdn.zevar.in/gold-ring.jpg"}, Stock: 3, IsActive: true}
	require.NoError(t, db.Create(product).Error)

	order := newOrder(t, db, user.ID, time.Now().UTC(), strPtr("order_C3"))
	require.NoError(t, repo.CreateItems(ctx, []models.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: product.ID, Name: product.Name, Quantity: 1, Price: product.Price},
	}))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, "asha@example.in", got.User.Email)
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Items[0].Product)
	assert.Equal(t, product.ID, got.Items[0].Product.ID)
	assert.Equal(t, "Gold Ring", got.Items[0].Product.Name)

	list, err := repo.ListByUser(ctx, user.ID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	require.Len(t, list.Orders[0].Items, 1)
	require.NotNil(t, list.Orders[0].Items[0].Product)
	assert.Equal(t, product.ID, list.Orders[0].Items[0].Product.ID)
}

func TestRepositoryFindByIDNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryFindByRazorpayOrderID(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, uuid.New(), time.Now().UTC(), strPtr("order_B2"))

	got, err := repo.FindByRazorpayOrderID(ctx, "order_B2")
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = repo.FindByRazorpayOrderID(ctx, "order_missing")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryListByUserPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	now := time.Now().UTC()
	older := newOrder(t, db, userID, now.Add(-time.Hour), nil)
	newer := newOrder(t, db, userID, now, nil)
	newOrder(t, db, uuid.New(), now, nil)

	first, err := repo.ListByUser(ctx, userID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first.Orders, 1)
	assert.Equal(t, newer.ID, first.Orders[0].ID)
	assert.NotEmpty(t, first.NextCursor)

	second, err := repo.ListByUser(ctx, userID, pagination.Params{Limit: 1, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, older.ID, second.Orders[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestRepositoryUpdateStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, uuid.New(), time.Now().UTC(), nil)

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, got.Status)

	err = repo.UpdateStatus(ctx, uuid.New(), enums.OrderStatusShipped)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryFindStalePending(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	stale := newOrder(t, db, uuid.New(), now.Add(-200*time.Hour), strPtr("order_stale"))
	newOrder(t, db, uuid.New(), now, strPtr("order_fresh"))
	noGateway := newOrder(t, db, uuid.New(), now.Add(-200*time.Hour), nil)

	paid := newOrder(t, db, uuid.New(), now.Add(-200*time.Hour), strPtr("order_paid"))
	require.NoError(t, repo.UpdatePayment(ctx, paid.ID, map[string]any{
		"status":         enums.OrderStatusProcessing,
		"payment_status": enums.PaymentStatusCompleted,
	}))

	rows, err := repo.FindStalePending(ctx, now.Add(-168*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
	assert.NotEqual(t, noGateway.ID, rows[0].ID)
}
