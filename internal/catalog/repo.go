package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborlane/storefront-backend/internal/repo"
	"github.com/harborlane/storefront-backend/pkg/db/models"
	"github.com/harborlane/storefront-backend/pkg/pagination"
)

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return NewRepository(tx)
}

// List returns active products newest first using keyset pagination.
func (r *repository) List(ctx context.Context, cursor *pagination.Cursor, limit int, category string) ([]models.Product, error) {
	query := r.base.DB(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Limit(limit)

	if category != "" {
		query = query.Where("category = ?", category)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs reads all requested products in one query. Callers compare the
// result count against the request to detect unknown ids.
func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.base.DB(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	return r.base.DB(ctx).Create(product).Error
}

// Update writes the row but never stock_qty. The service loads the product
// first, so a zero field here means "cleared", not "unchanged"; stock moves
// only through the inventory expressions, and writing the snapshot back would
// resurrect units a concurrent placement already claimed.
func (r *repository) Update(ctx context.Context, product *models.Product) error {
	return r.base.DB(ctx).Omit("stock_qty").Save(product).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.base.DB(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
