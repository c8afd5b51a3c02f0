package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborlane/storefront-backend/api/controllers"
	"github.com/harborlane/storefront-backend/api/middleware"
	"github.com/harborlane/storefront-backend/internal/catalog"
	"github.com/harborlane/storefront-backend/internal/orders"
	"github.com/harborlane/storefront-backend/pkg/config"
	"github.com/harborlane/storefront-backend/pkg/db"
	"github.com/harborlane/storefront-backend/pkg/logger"
	"github.com/harborlane/storefront-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface needs. Redis may be nil in
// tests; idempotency protection is skipped in that case.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry
	Catalog  *catalog.Service
	Orders   *orders.Service
}

// NewRouter assembles the chi router with the full middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var redisPinger redis.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Catalog reads are public; anyone can browse.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(deps.Catalog, logg))
		r.Get("/{productId}", controllers.GetProduct(deps.Catalog, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// Placement is the only surface that moves stock, so only it gets
		// the rate limiter and idempotency replay.
		place := chi.Chain()
		if deps.Redis != nil {
			policy := middleware.NewRateLimitPolicy(
				"orders",
				cfg.RateLimit.PlacementWindow,
				cfg.RateLimit.PlacementIPLimit,
				cfg.RateLimit.PlacementUserLimit,
			)
			place = chi.Chain(
				middleware.RateLimit(policy, deps.Redis, logg),
				middleware.Idempotency(deps.Redis, logg),
			)
		}
		r.With(place...).Post("/", controllers.PlaceOrder(deps.Orders, logg))
		r.Get("/", controllers.ListOrders(deps.Orders, logg))
		r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}
		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(deps.Catalog, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(deps.Catalog, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.Catalog, logg))
		})
	})

	return r
}
