package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siyana/storefront/internal/service"
	"github.com/siyana/storefront/pkg/health"
	"github.com/siyana/storefront/pkg/middleware"
)

const serviceName = "storefront"

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Cart     *service.CartService
	Checkout *service.CheckoutService
	Catalog  *service.CatalogService
	Health   *health.Handler
	Logger   *slog.Logger

	// TokenValidator authenticates bearer tokens. When nil the user is
	// taken from the X-User-ID header set by a trusted gateway.
	TokenValidator middleware.TokenValidator

	// CheckoutLimiter throttles POST /checkout per user; nil disables it.
	CheckoutLimiter *middleware.RateLimiter

	CORS           middleware.CORSConfig
	CatalogMaxAge  time.Duration
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authenticate := middleware.TrustedHeader()
	if cfg.TokenValidator != nil {
		authenticate = middleware.Auth(cfg.TokenValidator)
	}

	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.Logger)
	cartHandler := NewCartHandler(cfg.Cart, cfg.Logger)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Public catalog
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestLogger(cfg.Logger))
			if cfg.CatalogMaxAge > 0 {
				r.Use(middleware.CacheControl(cfg.CatalogMaxAge))
			}

			r.Get("/categories", catalogHandler.ListCategories)
			r.Get("/categories/{categoryId}/products", catalogHandler.ListCategoryProducts)
			r.Get("/products/{productId}", catalogHandler.GetProduct)
			r.Get("/offers", catalogHandler.ListOffers)
			r.Get("/carousel", catalogHandler.ListCarousel)
			r.Get("/gold-rate", catalogHandler.GoldRate)
		})

		// Per-user endpoints
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequestLogger(cfg.Logger))
			r.Use(middleware.NoStore)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Get("/count", cartHandler.CartCount)

				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{itemId}", cartHandler.SetQuantity)
				r.Delete("/items/{itemId}", cartHandler.RemoveItem)
				r.Post("/items/{itemId}/wishlist", cartHandler.MoveToWishlist)
			})

			r.Get("/wishlist", cartHandler.ListWishlist)
			r.Delete("/wishlist/{itemId}", cartHandler.RemoveFromWishlist)

			r.With(limit(cfg.CheckoutLimiter)).Post("/checkout", checkoutHandler.Checkout)

			r.Get("/orders/{orderId}", checkoutHandler.GetOrder)
			r.Get("/orders/{orderId}/whatsapp-qr", checkoutHandler.WhatsAppQR)
		})
	})

	return r
}

func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Limit
}
