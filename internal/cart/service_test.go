package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/internal/products"
	"github.com/anupamdas/zevar-backend/pkg/db/models"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
)

func TestServiceAddItemRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	svc := newTestService(&stubCartRepo{}, &stubProductsRepo{})

	_, err := svc.AddItem(context.Background(), AddItemInput{
		UserID:    uuid.New(),
		ProductID: uuid.New(),
		Quantity:  0,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceAddItemRejectsInactiveProduct(t *testing.T) {
	t.Parallel()

	product := models.Product{ID: uuid.New(), Price: decimal.NewFromInt(100), Stock: 5, IsActive: false}
	svc := newTestService(&stubCartRepo{}, &stubProductsRepo{product: &product})

	_, err := svc.AddItem(context.Background(), AddItemInput{
		UserID:    uuid.New(),
		ProductID: product.ID,
		Quantity:  1,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceAddItemRejectsInsufficientStock(t *testing.T) {
	t.Parallel()

	product := models.Product{ID: uuid.New(), Price: decimal.NewFromInt(100), Stock: 2, IsActive: true}
	svc := newTestService(&stubCartRepo{}, &stubProductsRepo{product: &product})

	_, err := svc.AddItem(context.Background(), AddItemInput{
		UserID:    uuid.New(),
		ProductID: product.ID,
		Quantity:  3,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceAddItemUpsertsAndReturnsView(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	product := models.Product{ID: uuid.New(), Price: decimal.RequireFromString("499.50"), Stock: 10, IsActive: true}
	repo := &stubCartRepo{}
	repo.lines = []models.CartLine{
		{UserID: userID, ProductID: product.ID, Quantity: 2, Product: &product},
	}
	svc := newTestService(repo, &stubProductsRepo{product: &product})

	view, err := svc.AddItem(context.Background(), AddItemInput{
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.upserted {
		t.Fatal("expected upsert to be called")
	}
	if want := decimal.RequireFromString("999.00"); !view.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, view.Total)
	}
}

func TestServiceUpdateItemMissingLine(t *testing.T) {
	t.Parallel()

	svc := newTestService(&stubCartRepo{}, &stubProductsRepo{})

	_, err := svc.UpdateItem(context.Background(), UpdateItemInput{
		UserID:    uuid.New(),
		ProductID: uuid.New(),
		Quantity:  1,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceGetCartTotalsAcrossLines(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	ring := models.Product{ID: uuid.New(), Price: decimal.RequireFromString("1299.00")}
	chain := models.Product{ID: uuid.New(), Price: decimal.RequireFromString("99.00")}
	repo := &stubCartRepo{lines: []models.CartLine{
		{UserID: userID, ProductID: ring.ID, Quantity: 1, Product: &ring},
		{UserID: userID, ProductID: chain.ID, Quantity: 2, Product: &chain},
	}}
	svc := newTestService(repo, &stubProductsRepo{})

	view, err := svc.GetCart(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := decimal.RequireFromString("1497.00"); !view.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, view.Total)
	}
	if len(view.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(view.Lines))
	}
}

func newTestService(repo Repository, productsRepo products.Repository) Service {
	svc, err := NewService(repo, productsRepo)
	if err != nil {
		panic(err)
	}
	return svc
}

type stubCartRepo struct {
	lines    []models.CartLine
	line     *models.CartLine
	upserted bool
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCartRepo) FindLinesByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	return s.lines, nil
}

func (s *stubCartRepo) FindLinesByUserForUpdate(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	return s.lines, nil
}

func (s *stubCartRepo) FindLine(ctx context.Context, userID, productID uuid.UUID) (*models.CartLine, error) {
	return s.line, nil
}

func (s *stubCartRepo) Upsert(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	s.upserted = true
	return line, nil
}

func (s *stubCartRepo) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCartRepo) Remove(ctx context.Context, userID, productID uuid.UUID) error { return nil }

func (s *stubCartRepo) RemoveByID(ctx context.Context, lineID uuid.UUID) (*models.CartLine, error) {
	if s.line == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.line, nil
}

func (s *stubCartRepo) Clear(ctx context.Context, userID uuid.UUID) error { return nil }

type stubProductsRepo struct {
	product *models.Product
}

func (s *stubProductsRepo) WithTx(tx *gorm.DB) products.Repository { return s }

func (s *stubProductsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.product, nil
}

func (s *stubProductsRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	result := map[uuid.UUID]models.Product{}
	if s.product != nil {
		result[s.product.ID] = *s.product
	}
	return result, nil
}

func (s *stubProductsRepo) List(ctx context.Context, params products.ListParams) ([]models.Product, error) {
	return nil, nil
}
