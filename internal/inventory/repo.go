package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborlane/storefront-backend/internal/repo"
	"github.com/harborlane/storefront-backend/pkg/db/models"
)

// Repository owns stock movements on the products table. Decrements are
// conditional so the database, not the application, arbitrates concurrent
// claims on the same row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Restock(ctx context.Context, productID uuid.UUID, qty int) error
	StockLevel(ctx context.Context, productID uuid.UUID) (int, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

// WithTx rebinds the repository to an open transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	return NewRepository(tx)
}

// DecrementStock atomically subtracts qty from the product's stock, but only
// when enough stock remains. Returns false when the guard rejected the update,
// which callers must treat as an oversell and abort.
func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("decrement qty must be positive, got %d", qty)
	}

	res := r.base.DB(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_qty >= ?", productID, qty).
		Update("stock_qty", gorm.Expr("stock_qty - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Restock adds qty back to the product's stock.
func (r *repository) Restock(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("restock qty must be positive, got %d", qty)
	}

	res := r.base.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_qty", gorm.Expr("stock_qty + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// StockLevel reads the current stock for a product.
func (r *repository) StockLevel(ctx context.Context, productID uuid.UUID) (int, error) {
	var product models.Product
	if err := r.base.DB(ctx).
		Select("stock_qty").
		First(&product, "id = ?", productID).Error; err != nil {
		return 0, err
	}
	return product.StockQty, nil
}
