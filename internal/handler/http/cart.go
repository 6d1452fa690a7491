package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/siyana/storefront/internal/service"
	"github.com/siyana/storefront/pkg/httputil"
	"github.com/siyana/storefront/pkg/middleware"
	"github.com/siyana/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for cart and wishlist endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

type countResponse struct {
	Count int `json:"count"`
}

// itemID reads and validates the {itemId} path parameter.
func itemID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "itemId")
	if err := validator.Var("itemId", id, "required,itemid"); err != nil {
		httputil.WriteValidationError(w, err)
		return "", false
	}
	return id, true
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart := h.service.LoadCart(r.Context(), middleware.UserIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, service.NewCartView(cart))
}

// CartCount handles GET /api/v1/cart/count
func (h *CartHandler) CartCount(w http.ResponseWriter, r *http.Request) {
	n := h.service.CartCount(r.Context(), middleware.UserIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, countResponse{Count: n})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.ClearCart(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, service.NewCartView(cart))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.AddItem(r.Context(), middleware.UserIDFromContext(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, service.NewCartView(cart))
}

// SetQuantity handles PUT /api/v1/cart/items/{itemId}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req service.SetQuantityInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.SetQuantity(r.Context(), middleware.UserIDFromContext(r.Context()), id, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, service.NewCartView(cart))
}

// RemoveItem handles DELETE /api/v1/cart/items/{itemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), middleware.UserIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, service.NewCartView(cart))
}

// MoveToWishlist handles POST /api/v1/cart/items/{itemId}/wishlist
func (h *CartHandler) MoveToWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	cart, err := h.service.MoveToWishlist(r.Context(), middleware.UserIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, service.NewCartView(cart))
}

// ListWishlist handles GET /api/v1/wishlist
func (h *CartHandler) ListWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListWishlist(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, items)
}

// RemoveFromWishlist handles DELETE /api/v1/wishlist/{itemId}
func (h *CartHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveFromWishlist(r.Context(), middleware.UserIDFromContext(r.Context()), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
