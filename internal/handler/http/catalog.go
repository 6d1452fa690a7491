package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/service"
	"github.com/siyana/storefront/pkg/httputil"
	"github.com/siyana/storefront/pkg/pagination"
	"github.com/siyana/storefront/pkg/validator"
)

// CatalogHandler serves the public catalog endpoints.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: svc, logger: logger}
}

// categoryPage is one page of a category's products.
type categoryPage struct {
	Category *domain.Category `json:"category"`
	httputil.PaginatedResponse[domain.Product]
}

// ListCategories handles GET /api/v1/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cats)
}

// ListCategoryProducts handles GET /api/v1/categories/{categoryId}/products
func (h *CatalogHandler) ListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")
	if err := validator.Var("categoryId", categoryID, "required,itemid"); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	page := pagination.FromRequest(r)
	res, err := h.service.ListProductsByCategory(r.Context(), categoryID, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, categoryPage{
		Category:          res.Category,
		PaginatedResponse: httputil.NewPaginatedResponse(res.Products, res.Total, page.Page, page.PerPage),
	})
}

// GetProduct handles GET /api/v1/products/{productId}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if err := validator.Var("productId", productID, "required,itemid"); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	p, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// ListOffers handles GET /api/v1/offers
func (h *CatalogHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.service.ListOffers(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, offers)
}

// ListCarousel handles GET /api/v1/carousel
func (h *CatalogHandler) ListCarousel(w http.ResponseWriter, r *http.Request) {
	slides, err := h.service.ListCarousel(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, slides)
}

// GoldRate handles GET /api/v1/gold-rate
func (h *CatalogHandler) GoldRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.LatestGoldRate(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rate)
}
