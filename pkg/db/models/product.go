package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborlane/storefront-backend/pkg/enums"
)

// Product represents a sellable catalog listing. StockQty is written only
// through the inventory expressions (conditional decrement, restock); row
// updates elsewhere must omit it.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name        string                `gorm:"column:name;not null;uniqueIndex"`
	Description *string               `gorm:"column:description"`
	Category    enums.ProductCategory `gorm:"column:category;type:text;not null;default:'other'"`
	Price       decimal.Decimal       `gorm:"column:price;type:numeric(10,2);not null"`
	StockQty    int                   `gorm:"column:stock_qty;not null;default:0"`
	ImageURL    *string               `gorm:"column:image_url"`
	IsActive    bool                  `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not provide one.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
