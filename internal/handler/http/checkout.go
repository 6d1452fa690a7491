package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/service"
	apperrors "github.com/siyana/storefront/pkg/errors"
	"github.com/siyana/storefront/pkg/httputil"
	"github.com/siyana/storefront/pkg/middleware"
	"github.com/siyana/storefront/pkg/validator"
)

// IdempotencyKeyHeader makes checkout retries safe.
const IdempotencyKeyHeader = "Idempotency-Key"

const checkoutMessage = "Order placed. Continue on WhatsApp to confirm it with us."

// CheckoutHandler handles checkout and order endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: svc, logger: logger}
}

// CheckoutResponse is returned by POST /api/v1/checkout.
type CheckoutResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderId"`
	WhatsAppURL string `json:"whatsappUrl"`
	Message     string `json:"message"`
	Replayed    bool   `json:"replayed,omitempty"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if err := validator.Var(IdempotencyKeyHeader, key, "omitempty,max=128,printascii"); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		claims = &middleware.Claims{}
	}
	if req.UserID != "" && req.UserID != claims.UserID {
		httputil.WriteError(w, r, apperrors.Forbidden("userId does not match the signed-in user"), h.logger)
		return
	}

	actor := domain.Actor{
		UserID: claims.UserID,
		Email:  firstNonEmpty(claims.Email, req.UserEmail),
		Name:   firstNonEmpty(claims.Name, req.UserName),
	}

	res, err := h.service.Checkout(r.Context(), actor, key)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	httputil.WriteData(w, status, CheckoutResponse{
		Success:     true,
		OrderID:     res.Order.OrderID,
		WhatsAppURL: res.WhatsAppURL,
		Message:     checkoutMessage,
		Replayed:    res.Replayed,
	})
}

// GetOrder handles GET /api/v1/orders/{orderId}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if err := validator.Var("orderId", orderID, "required,itemid"); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	o, err := h.service.GetOrder(r.Context(), middleware.UserIDFromContext(r.Context()), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, o)
}

// WhatsAppQR handles GET /api/v1/orders/{orderId}/whatsapp-qr?size=256
func (h *CheckoutHandler) WhatsAppQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if err := validator.Var("orderId", orderID, "required,itemid"); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	size := 0
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("size must be an integer"), h.logger)
			return
		}
		size = n
	}

	png, err := h.service.OrderQRCode(r.Context(), middleware.UserIDFromContext(r.Context()), orderID, size)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
