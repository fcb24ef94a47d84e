package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/pkg/db/models"
)

// KeyRepository persists the idempotency tokens consumed by order creation.
type KeyRepository interface {
	WithTx(tx *gorm.DB) KeyRepository
	Find(ctx context.Context, userID uuid.UUID, token string) (*models.CheckoutKey, error)
	Insert(ctx context.Context, key *models.CheckoutKey) error
}

type keyRepository struct {
	db *gorm.DB
}

// NewKeyRepository builds a checkout key repository bound to the provided DB.
func NewKeyRepository(db *gorm.DB) KeyRepository {
	return &keyRepository{db: db}
}

func (r *keyRepository) WithTx(tx *gorm.DB) KeyRepository {
	if tx == nil {
		return r
	}
	return &keyRepository{db: tx}
}

func (r *keyRepository) Find(ctx context.Context, userID uuid.UUID, token string) (*models.CheckoutKey, error) {
	var key models.CheckoutKey
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

func (r *keyRepository) Insert(ctx context.Context, key *models.CheckoutKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}
