package catalog

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

// Repository is the persistence surface the catalog service depends on. The
// orders service reuses FindByIDs through WithTx to read authoritative prices
// inside its placement transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context, cursor *pagination.Cursor, limit int, category string) ([]models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}
