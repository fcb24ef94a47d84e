package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/pkg/db/models"
)

// Driver errors can embed whole statements; cap what lands in the DLQ row.
const maxDLQErrorLen = 1024

// DLQRepository persists outbox events that exhausted their publish attempts.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		trimmed := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &trimmed
	}
	return tx.Create(&entry).Error
}
