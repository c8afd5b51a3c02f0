package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harborlane/storefront-backend/pkg/db/models"
)

// ProductResponse is the wire shape for catalog reads. Price renders as a
// string so clients never receive binary floating point.
type ProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Category    string    `json:"category"`
	Price       string    `json:"price"`
	StockQty    int       `json:"stock_qty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateProductRequest is the admin payload for adding catalog entries.
type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category    string          `json:"category" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	StockQty    int             `json:"stock_qty" validate:"gte=0"`
	ImageURL    *string         `json:"image_url,omitempty" validate:"omitempty,url"`
}

// UpdateProductRequest carries a partial patch; nil fields stay untouched.
type UpdateProductRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	StockQty    *int             `json:"stock_qty,omitempty" validate:"omitempty,gte=0"`
	ImageURL    *string          `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// ListProductsQuery captures catalog listing filters.
type ListProductsQuery struct {
	Category string
	Limit    int
	Cursor   string
}

func toProductResponse(product models.Product) ProductResponse {
	return ProductResponse{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Category:    string(product.Category),
		Price:       product.Price.StringFixed(2),
		StockQty:    product.StockQty,
		ImageURL:    product.ImageURL,
		IsActive:    product.IsActive,
		CreatedAt:   product.CreatedAt,
	}
}

func toProductResponses(products []models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		out = append(out, toProductResponse(product))
	}
	return out
}
