package orders

import (
	"github.com/anupamdas/zevar-backend/pkg/db/models"
)

// List is one page of a user's order history, newest first.
type List struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
