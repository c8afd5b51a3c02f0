package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborlane/storefront-backend/internal/authz"
	"github.com/harborlane/storefront-backend/internal/catalog"
	"github.com/harborlane/storefront-backend/internal/inventory"
	"github.com/harborlane/storefront-backend/pkg/config"
	"github.com/harborlane/storefront-backend/pkg/db/models"
	"github.com/harborlane/storefront-backend/pkg/enums"
	pkgerrors "github.com/harborlane/storefront-backend/pkg/errors"
	"github.com/harborlane/storefront-backend/pkg/logger"
	"github.com/harborlane/storefront-backend/pkg/metrics"
	"github.com/harborlane/storefront-backend/pkg/pagination"
)

// Service owns order placement and history. Placement validates the request,
// reads authoritative prices, writes the order and claims stock inside a
// single transaction; any rejection leaves the store untouched.
type Service struct {
	runner    TxRunner
	repo      Repository
	catalog   catalog.Repository
	inventory inventory.Repository
	auth      *authz.Authorizer
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	cfg       config.OrdersConfig
}

func NewService(
	runner TxRunner,
	repo Repository,
	catalogRepo catalog.Repository,
	inventoryRepo inventory.Repository,
	auth *authz.Authorizer,
	met *metrics.OrderMetrics,
	logg *logger.Logger,
	cfg config.OrdersConfig,
) *Service {
	return &Service{
		runner:    runner,
		repo:      repo,
		catalog:   catalogRepo,
		inventory: inventoryRepo,
		auth:      auth,
		metrics:   met,
		logg:      logg,
		cfg:       cfg,
	}
}

// PlaceOrder commits a new order or rejects it without side effects.
func (s *Service) PlaceOrder(ctx context.Context, actor authz.Actor, req PlaceOrderRequest) (*PlaceOrderResponse, error) {
	if err := validatePlacement(req); err != nil {
		s.metrics.IncRejected("validation")
		return nil, err
	}
	if err := s.auth.Require(ctx, actor, authz.ActionPlaceOrder); err != nil {
		s.metrics.IncRejected(rejectionReason(pkgerrors.As(err).Code()))
		return nil, err
	}

	if s.cfg.CommitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CommitTimeout)
		defer cancel()
	}

	attempts := s.cfg.ConflictRetryLimit
	if attempts <= 0 {
		attempts = 1
	}

	var (
		order models.Order
		lines []models.OrderLineItem
		err   error
	)

	start := time.Now()
	for attempt := 1; attempt <= attempts; attempt++ {
		order = models.Order{}
		lines = nil
		err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			return s.placeInTx(ctx, tx, actor, req, &order, &lines)
		})
		if err == nil {
			break
		}
		if isSerializationConflict(err) && attempt < attempts {
			s.metrics.IncCommitConflict()
			continue
		}
		break
	}
	elapsed := time.Since(start)

	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.ObserveCommitDuration("aborted", elapsed)
			s.metrics.IncRejected(rejectionReason(typed.Code()))
			return nil, err
		}
		s.metrics.ObserveCommitDuration("failed", elapsed)
		s.metrics.IncRejected("commit_failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeCommitFailed, err, "placing order")
	}

	s.metrics.ObserveCommitDuration("committed", elapsed)
	s.metrics.IncPlaced(actor.Role.String())

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"user_id":      actor.UserID.String(),
		"total_amount": order.TotalAmount.StringFixed(2),
		"line_items":   len(lines),
	})
	s.logg.Info(logCtx, "order placed")

	return &PlaceOrderResponse{
		Success: true,
		Order:   toOrderResponse(order),
		Items:   toLineItemResponses(lines),
	}, nil
}

// placeInTx runs the placement checks and writes against one transaction.
// Returning an error rolls everything back.
func (s *Service) placeInTx(
	ctx context.Context,
	tx *gorm.DB,
	actor authz.Actor,
	req PlaceOrderRequest,
	outOrder *models.Order,
	outLines *[]models.OrderLineItem,
) error {
	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		if product.IsActive {
			byID[product.ID] = product
		}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"missing_product_ids": missing})
	}

	for _, item := range req.Items {
		product := byID[item.ProductID]
		if product.StockQty < item.Qty {
			return insufficientStock(item.ProductID, item.Qty, product.StockQty)
		}
	}

	total := decimal.Zero
	lines := make([]models.OrderLineItem, 0, len(req.Items))
	for _, item := range req.Items {
		product := byID[item.ProductID]
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Qty)))
		total = total.Add(lineTotal)
		lines = append(lines, models.OrderLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Qty:       item.Qty,
			Total:     lineTotal,
		})
	}

	order := models.Order{
		UserID:      actor.UserID,
		TotalAmount: total,
		Status:      enums.OrderStatusPending,
	}

	ordersRepo := s.repo.WithTx(tx)
	if err := ordersRepo.CreateOrder(ctx, &order); err != nil {
		return err
	}
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	if err := ordersRepo.CreateLineItems(ctx, lines); err != nil {
		return err
	}

	// Claim stock last; the conditional update is the final arbiter under
	// concurrency. A zero-row update means another order won the race.
	invRepo := s.inventory.WithTx(tx)
	for _, item := range req.Items {
		ok, err := invRepo.DecrementStock(ctx, item.ProductID, item.Qty)
		if err != nil {
			return err
		}
		if !ok {
			// A zero-row update leaves the transaction usable, so re-read
			// the level the race left behind and report it to the caller.
			available, readErr := invRepo.StockLevel(ctx, item.ProductID)
			if readErr != nil {
				return readErr
			}
			return insufficientStock(item.ProductID, item.Qty, available)
		}
	}

	*outOrder = order
	*outLines = lines
	return nil
}

// Get returns one order with its line items. Customers may only read their own.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*OrderDetailResponse, error) {
	if err := s.auth.Require(ctx, actor, authz.ActionReadOwnOrders); err != nil {
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}

	if order.UserID != actor.UserID {
		if !s.auth.Can(ctx, actor, authz.ActionReadAnyOrder) {
			// Hide the order's existence from other customers.
			return nil, orderNotFound(id)
		}
	}

	items, err := s.repo.FindLineItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order items")
	}

	return &OrderDetailResponse{
		Order: toOrderResponse(*order),
		Items: toLineItemResponses(items),
	}, nil
}

// List returns the actor's order history, newest first.
func (s *Service) List(ctx context.Context, actor authz.Actor, query ListOrdersQuery) ([]OrderResponse, string, error) {
	if err := s.auth.Require(ctx, actor, authz.ActionReadOwnOrders); err != nil {
		return nil, "", err
	}

	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(query.Limit)
	rows, err := s.repo.ListByUser(ctx, actor.UserID, cursor, limit+1)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return toOrderResponses(rows), nextCursor, nil
}

func validatePlacement(req PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID.String(), "quantity": item.Qty})
		}
		if seen[item.ProductID] {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		seen[item.ProductID] = true
	}
	return nil
}

func insufficientStock(productID uuid.UUID, requested, available int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"requested":  requested,
			"available":  available,
		})
}

func orderNotFound(id uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{"order_id": id.String()})
}

func rejectionReason(code pkgerrors.Code) string {
	switch code {
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeUnauthorized:
		return "unauthorized"
	case pkgerrors.CodeForbidden:
		return "forbidden"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	default:
		return "other"
	}
}

// isSerializationConflict reports whether the error is a Postgres
// serialization failure (40001) or deadlock (40P01), both safe to retry.
func isSerializationConflict(err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == "40001" || pgxErr.Code == "40P01"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "40001" || string(pqErr.Code) == "40P01"
	}
	return false
}
