package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/pkg/db/models"
)

// Repository defines persistence operations for cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLinesByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error)
	FindLinesByUserForUpdate(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error)
	FindLine(ctx context.Context, userID, productID uuid.UUID) (*models.CartLine, error)
	Upsert(ctx context.Context, line *models.CartLine) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	RemoveByID(ctx context.Context, lineID uuid.UUID) (*models.CartLine, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}
