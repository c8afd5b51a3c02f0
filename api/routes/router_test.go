package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harborlane/storefront-backend/internal/authz"
	"github.com/harborlane/storefront-backend/internal/catalog"
	"github.com/harborlane/storefront-backend/internal/inventory"
	"github.com/harborlane/storefront-backend/internal/orders"
	"github.com/harborlane/storefront-backend/pkg/auth"
	"github.com/harborlane/storefront-backend/pkg/config"
	"github.com/harborlane/storefront-backend/pkg/db"
	"github.com/harborlane/storefront-backend/pkg/db/models"
	"github.com/harborlane/storefront-backend/pkg/enums"
	"github.com/harborlane/storefront-backend/pkg/logger"
	"github.com/harborlane/storefront-backend/pkg/metrics"
)

type routerFixture struct {
	handler  http.Handler
	cfg      *config.Config
	conn     *gorm.DB
	product  models.Product
	customer models.User
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:routes_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}, &models.OrderLineItem{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	customer := models.User{
		Email:     "shopper@example.com",
		FirstName: "Sam",
		LastName:  "Shopper",
		Role:      enums.MemberRoleCustomer,
		IsActive:  true,
	}
	if err := conn.Create(&customer).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	product := models.Product{
		Name:     "Trail Bottle",
		Category: enums.ProductCategorySports,
		Price:    decimal.RequireFromString("9.99"),
		StockQty: 5,
		IsActive: true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}

	cfg := &config.Config{
		App: config.AppConfig{Env: "development", LogLevel: "error"},
		JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "storefront-test", ExpirationMinutes: 15},
	}
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})

	client := db.FromConn(conn)
	authorizer := authz.New()
	catalogRepo := catalog.NewRepository(conn)
	inventoryRepo := inventory.NewRepository(conn)

	deps := Dependencies{
		Config:  cfg,
		Logger:  logg,
		Catalog: catalog.NewService(client, catalogRepo, inventoryRepo, authorizer, logg),
		Orders: orders.NewService(
			client,
			orders.NewRepository(conn),
			catalogRepo,
			inventoryRepo,
			authorizer,
			metrics.NewOrderMetrics(nil),
			logg,
			config.OrdersConfig{ConflictRetryLimit: 3},
		),
	}

	return &routerFixture{handler: NewRouter(deps), cfg: cfg, conn: conn, product: product, customer: customer}
}

func (f *routerFixture) token(t *testing.T, userID uuid.UUID, role enums.MemberRole) string {
	t.Helper()
	signed, err := auth.MintAccessToken(f.cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return signed
}

func (f *routerFixture) do(t *testing.T, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthLive(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Storefront-Env"); got != "development" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestPublicCatalogReads(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	data, ok := body["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("expected one product, got %v", body["data"])
	}

	rec = f.do(t, http.MethodGet, "/api/v1/products/"+f.product.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	product := decodeJSON(t, rec)
	if product["price"] != "9.99" {
		t.Fatalf("expected price 9.99, got %v", product["price"])
	}
}

func TestOrdersRequireAuthentication(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", "", map[string]any{
		"items": []map[string]any{{"product_id": f.product.ID, "quantity": 1}},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", body["code"])
	}
}

func TestPlaceOrderEndToEnd(t *testing.T) {
	f := newRouterFixture(t)
	token := f.token(t, f.customer.ID, enums.MemberRoleCustomer)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"items": []map[string]any{{"product_id": f.product.ID, "quantity": 2}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success true, got %v", body["success"])
	}
	order, ok := body["order"].(map[string]any)
	if !ok {
		t.Fatalf("expected order object, got %v", body["order"])
	}
	if order["total_amount"] != "19.98" {
		t.Fatalf("expected total 19.98, got %v", order["total_amount"])
	}
	if order["status"] != "pending" {
		t.Fatalf("expected pending, got %v", order["status"])
	}

	// Stock is visible as decremented on the public catalog.
	rec = f.do(t, http.MethodGet, "/api/v1/products/"+f.product.ID.String(), "", nil)
	product := decodeJSON(t, rec)
	if product["stock_qty"] != float64(3) {
		t.Fatalf("expected stock 3, got %v", product["stock_qty"])
	}

	// The owner can read the order back; another customer cannot see it.
	orderID, _ := order["id"].(string)
	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+orderID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d: %s", rec.Code, rec.Body.String())
	}

	otherToken := f.token(t, uuid.New(), enums.MemberRoleCustomer)
	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+orderID, otherToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/orders", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	list := decodeJSON(t, rec)
	data, _ := list["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("expected one order in history, got %d", len(data))
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	f := newRouterFixture(t)
	token := f.token(t, uuid.New(), enums.MemberRoleCustomer)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"items": []map[string]any{{"product_id": f.product.ID, "quantity": 50}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["code"] != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", body["code"])
	}
}

func TestAdminRoutesEnforceRole(t *testing.T) {
	f := newRouterFixture(t)
	customerToken := f.token(t, uuid.New(), enums.MemberRoleCustomer)
	adminToken := f.token(t, uuid.New(), enums.MemberRoleAdmin)

	payload := map[string]any{
		"name":      "Canvas Tote",
		"category":  "apparel",
		"price":     "24.50",
		"stock_qty": 10,
	}

	rec := f.do(t, http.MethodPost, "/api/v1/admin/products", customerToken, payload)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/admin/products", adminToken, payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeJSON(t, rec)
	if created["price"] != "24.50" {
		t.Fatalf("expected price 24.50, got %v", created["price"])
	}

	id, _ := created["id"].(string)
	rec = f.do(t, http.MethodDelete, "/api/v1/admin/products/"+id, adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}
