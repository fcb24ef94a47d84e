package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/internal/products"
	"github.com/anupamdas/zevar-backend/pkg/db/models"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
)

// Service defines cart operations exposed to the API layer.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, input AddItemInput) (*View, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*View, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error)
	RemoveLine(ctx context.Context, lineID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// AddItemInput carries the fields required to add a product to a cart.
type AddItemInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// UpdateItemInput overwrites the quantity of an existing cart line.
type UpdateItemInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// View is the cart as returned to clients: lines plus a computed total.
type View struct {
	UserID uuid.UUID         `json:"user_id"`
	Lines  []models.CartLine `json:"items"`
	Total  decimal.Decimal   `json:"total"`
}

type service struct {
	repo     Repository
	products products.Repository
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, productsRepo products.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo, products: productsRepo}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	lines, err := s.repo.FindLinesByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching cart")
	}
	return buildView(userID, lines), nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*View, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	if product.Stock < input.Quantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
			WithDetails(map[string]any{"product_id": input.ProductID, "stock": product.Stock})
	}

	line := &models.CartLine{
		UserID:    input.UserID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
	}
	if _, err := s.repo.Upsert(ctx, line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adding cart item")
	}
	return s.GetCart(ctx, input.UserID)
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*View, error) {
	existing, err := s.repo.FindLine(ctx, input.UserID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching cart item")
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	if err := s.repo.UpdateQuantity(ctx, input.UserID, input.ProductID, input.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating cart item")
	}
	return s.GetCart(ctx, input.UserID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart item")
	}
	return s.GetCart(ctx, userID)
}

// RemoveLine deletes a cart row by its own id and returns the owner's
// refreshed cart.
func (s *service) RemoveLine(ctx context.Context, lineID uuid.UUID) (*View, error) {
	line, err := s.repo.RemoveByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart item")
	}
	return s.GetCart(ctx, line.UserID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart")
	}
	return nil
}

func buildView(userID uuid.UUID, lines []models.CartLine) *View {
	total := decimal.Zero
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		total = total.Add(line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if lines == nil {
		lines = []models.CartLine{}
	}
	return &View{UserID: userID, Lines: lines, Total: total}
}
