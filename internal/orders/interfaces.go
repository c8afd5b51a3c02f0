package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborlane/storefront-backend/pkg/db/models"
	"github.com/harborlane/storefront-backend/pkg/pagination"
)

// TxRunner executes fn inside a database transaction. Satisfied by db.Client.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Repository persists order headers and line items. Placement writes go
// through WithTx so header, items and stock movements share one transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
}
