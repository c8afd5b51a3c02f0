package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborlane/storefront-backend/internal/authz"
	"github.com/harborlane/storefront-backend/internal/inventory"
	"github.com/harborlane/storefront-backend/pkg/db"
	"github.com/harborlane/storefront-backend/pkg/db/models"
	"github.com/harborlane/storefront-backend/pkg/enums"
	pkgerrors "github.com/harborlane/storefront-backend/pkg/errors"
	"github.com/harborlane/storefront-backend/pkg/logger"
	"github.com/harborlane/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads to the storefront and writes to admins.
type Service struct {
	runner    TxRunner
	repo      Repository
	inventory inventory.Repository
	auth      *authz.Authorizer
	logg      *logger.Logger
}

func NewService(runner TxRunner, repo Repository, inv inventory.Repository, auth *authz.Authorizer, logg *logger.Logger) *Service {
	return &Service{runner: runner, repo: repo, inventory: inv, auth: auth, logg: logg}
}

// List returns a page of active products plus the cursor for the next page.
func (s *Service) List(ctx context.Context, query ListProductsQuery) ([]ProductResponse, string, error) {
	if query.Category != "" {
		if _, err := enums.ParseProductCategory(query.Category); err != nil {
			return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "unknown category").
				WithDetails(map[string]any{"category": query.Category})
		}
	}

	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(query.Limit)
	products, err := s.repo.List(ctx, cursor, limit+1, query.Category)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}

	nextCursor := ""
	if len(products) > limit {
		products = products[:limit]
		last := products[len(products)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return toProductResponses(products), nextCursor, nil
}

// Get returns one product by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, productNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	resp := toProductResponse(*product)
	return &resp, nil
}

// Create adds a catalog entry. Admin only.
func (s *Service) Create(ctx context.Context, actor authz.Actor, req CreateProductRequest) (*ProductResponse, error) {
	if err := s.auth.Require(ctx, actor, authz.ActionWriteCatalog); err != nil {
		return nil, err
	}

	category, err := enums.ParseProductCategory(req.Category)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown category").
			WithDetails(map[string]any{"category": req.Category})
	}
	if req.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    category,
		Price:       req.Price.Round(2),
		StockQty:    req.StockQty,
		ImageURL:    req.ImageURL,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, &product); err != nil {
		if db.IsUniqueViolation(err, "name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product name already exists").
				WithDetails(map[string]any{"name": req.Name})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": product.ID.String(),
		"actor_id":   actor.UserID.String(),
	}), "product created")

	resp := toProductResponse(product)
	return &resp, nil
}

// Update patches a catalog entry. Admin only. Stock is never written from the
// loaded snapshot; a stock_qty patch moves the level through the same atomic
// expressions placement uses, so a decrement committed after the read survives.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	if err := s.auth.Require(ctx, actor, authz.ActionWriteCatalog); err != nil {
		return nil, err
	}
	if req.StockQty != nil && *req.StockQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_qty must not be negative")
	}

	var updated models.Product
	txErr := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return productNotFound(id)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
		}

		if err := applyPatch(product, req); err != nil {
			return err
		}
		if err := repo.Update(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "name") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product name already exists").
					WithDetails(map[string]any{"name": product.Name})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating product")
		}

		if req.StockQty != nil {
			if err := s.adjustStock(ctx, tx, product, *req.StockQty); err != nil {
				return err
			}
		}

		updated = *product
		return nil
	})
	if txErr != nil {
		if typed := pkgerrors.As(txErr); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "updating product")
	}

	resp := toProductResponse(updated)
	return &resp, nil
}

// adjustStock moves the product to the requested level as a delta against the
// in-transaction read. Increases go through Restock, decreases through the
// conditional decrement; a zero-row decrement means stock moved under us and
// the admin must re-read before retrying.
func (s *Service) adjustStock(ctx context.Context, tx *gorm.DB, product *models.Product, target int) error {
	inv := s.inventory.WithTx(tx)

	delta := target - product.StockQty
	switch {
	case delta > 0:
		if err := inv.Restock(ctx, product.ID, delta); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restocking product")
		}
	case delta < 0:
		ok, err := inv.DecrementStock(ctx, product.ID, -delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reducing stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "stock changed concurrently").
				WithDetails(map[string]any{
					"product_id":      product.ID.String(),
					"requested_stock": target,
				})
		}
	}

	level, err := inv.StockLevel(ctx, product.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading stock")
	}
	product.StockQty = level
	return nil
}

// Delete removes a catalog entry. Admin only.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := s.auth.Require(ctx, actor, authz.ActionWriteCatalog); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return productNotFound(id)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting product")
	}
	return nil
}

func applyPatch(product *models.Product, req UpdateProductRequest) error {
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = req.Description
	}
	if req.Category != nil {
		category, err := enums.ParseProductCategory(*req.Category)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown category").
				WithDetails(map[string]any{"category": *req.Category})
		}
		product.Category = category
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		product.Price = req.Price.Round(2)
	}
	if req.ImageURL != nil {
		product.ImageURL = req.ImageURL
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	return nil
}

func productNotFound(id uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"product_id": id.String()})
}
