package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siyana/storefront/internal/dispatch"
	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/event"
	"github.com/siyana/storefront/internal/repository"
	apperrors "github.com/siyana/storefront/pkg/errors"
)

// maxOrderIDAttempts bounds retries after an order ID collision.
const maxOrderIDAttempts = 3

// CheckoutInput is the checkout request body. The user ID must match the
// authenticated caller; email and name are informational.
type CheckoutInput struct {
	UserID    string `json:"userId" validate:"omitempty,max=128"`
	UserEmail string `json:"userEmail" validate:"omitempty,email,max=254"`
	UserName  string `json:"userName" validate:"omitempty,max=120"`
}

// CheckoutResult is a recorded order ready for WhatsApp handoff.
type CheckoutResult struct {
	Order       *domain.Order
	Summary     string
	WhatsAppURL string
	// Replayed is set when the idempotency key matched an earlier order.
	Replayed bool
}

// CheckoutService turns carts into orders.
type CheckoutService struct {
	carts         repository.CartRepository
	orders        repository.OrderRepository
	events        OrderEventPublisher
	logger        *slog.Logger
	merchantPhone string
	storeTimeout  time.Duration
	newOrderID    domain.OrderIDGenerator
	now           func() time.Time
}

// NewCheckoutService creates a new checkout service. merchantPhone is the
// WhatsApp number customers are sent to.
func NewCheckoutService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	events OrderEventPublisher,
	logger *slog.Logger,
	merchantPhone string,
	storeTimeout time.Duration,
) *CheckoutService {
	return &CheckoutService{
		carts:         carts,
		orders:        orders,
		events:        events,
		logger:        logger,
		merchantPhone: merchantPhone,
		storeTimeout:  storeTimeout,
		newOrderID:    domain.NewOrderID,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Checkout records the caller's cart as an order and removes the ordered
// lines from the cart. The order is durably stored before the cart is
// touched; any failure up to that point leaves the cart intact and returns
// CheckoutFailed. Items added to the cart after the order was taken stay.
//
// A non-empty idempotencyKey makes retries safe: a key already used by
// this user returns the order recorded the first time.
func (s *CheckoutService) Checkout(ctx context.Context, actor domain.Actor, idempotencyKey string) (*CheckoutResult, error) {
	if actor.UserID == "" {
		return nil, apperrors.Unauthorized("sign in to check out")
	}

	if idempotencyKey != "" {
		prior, err := s.orderByKey(ctx, actor.UserID, idempotencyKey)
		if err != nil {
			checkoutsTotal.WithLabelValues(outcomeFailed).Inc()
			return nil, apperrors.CheckoutFailed(err)
		}
		if prior != nil {
			return s.replay(ctx, prior), nil
		}
	}

	items, err := s.listCart(ctx, actor.UserID)
	if err != nil {
		checkoutsTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, apperrors.CheckoutFailed(err)
	}
	if len(items) == 0 {
		checkoutsTotal.WithLabelValues(outcomeEmptyCart).Inc()
		return nil, apperrors.EmptyCart()
	}

	order, err := s.record(ctx, actor, items, idempotencyKey)
	if err != nil {
		var conflict *conflictingKeyError
		if errors.As(err, &conflict) {
			return s.replay(ctx, conflict.order), nil
		}
		checkoutsTotal.WithLabelValues(outcomeFailed).Inc()
		s.logger.ErrorContext(ctx, "checkout failed",
			slog.String("user_id", actor.UserID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.CheckoutFailed(err)
	}

	remaining, removed := s.removeOrdered(ctx, order)

	result := s.result(order)
	checkoutsTotal.WithLabelValues(outcomeCreated).Inc()
	orderValueRupees.Observe(order.TotalAmount.InexactFloat64())

	s.logger.InfoContext(ctx, "order recorded",
		slog.String("order_id", order.OrderID),
		slog.String("user_id", order.UserID),
		slog.Int("lines", len(order.Items)),
		slog.String("total_amount", order.TotalAmount.String()),
	)

	if s.events != nil {
		if err := s.events.PublishOrderSubmitted(ctx, order, result.Summary, result.WhatsAppURL); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.submitted event",
				slog.String("order_id", order.OrderID),
				slog.String("error", err.Error()),
			)
		}
		if removed {
			s.publishCartChanged(ctx, actor.UserID, remaining)
		}
	}
	return result, nil
}

type conflictingKeyError struct {
	order *domain.Order
}

func (e *conflictingKeyError) Error() string {
	return "idempotency key already used by order " + e.order.OrderID
}

// record persists a new order, drawing a fresh ID after each collision.
func (s *CheckoutService) record(ctx context.Context, actor domain.Actor, items []domain.CartItem, key string) (*domain.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= maxOrderIDAttempts; attempt++ {
		now := s.now()
		id, err := s.newOrderID(now)
		if err != nil {
			return nil, err
		}

		order := domain.NewOrder(id, actor, items, now)
		order.IdempotencyKey = key

		err = s.createOrder(ctx, order)
		switch {
		case err == nil:
			return order, nil
		case errors.Is(err, apperrors.ErrAlreadyExists):
			checkoutsTotal.WithLabelValues(outcomeIDConflict).Inc()
			s.logger.WarnContext(ctx, "order id collision, retrying",
				slog.String("order_id", id),
				slog.Int("attempt", attempt),
			)
			lastErr = err
		case errors.Is(err, apperrors.ErrConflict) && key != "":
			// A concurrent request with the same key won the race.
			prior, gerr := s.orderByKey(ctx, actor.UserID, key)
			if gerr != nil {
				return nil, gerr
			}
			if prior == nil {
				return nil, err
			}
			return nil, &conflictingKeyError{order: prior}
		default:
			return nil, storeError("order", err)
		}
	}
	return nil, fmt.Errorf("allocate order id after %d attempts: %w", maxOrderIDAttempts, lastErr)
}

func (s *CheckoutService) createOrder(ctx context.Context, order *domain.Order) error {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.orders.Create(ctx, order)
}

func (s *CheckoutService) listCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	items, err := s.carts.List(ctx, userID)
	if err != nil {
		return nil, storeError("cart", err)
	}
	return items, nil
}

// orderByKey returns nil without error when the key is unused.
func (s *CheckoutService) orderByKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	o, err := s.orders.GetByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("order", err)
	}
	return o, nil
}

// removeOrdered deletes the order's lines from the cart and returns how
// many lines are left. It runs after the order is stored, so a failure is
// logged rather than returned: the order stands and a retry with the same
// idempotency key removes the lines again.
func (s *CheckoutService) removeOrdered(ctx context.Context, order *domain.Order) (int, bool) {
	cctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	remaining, err := s.carts.RemoveLines(cctx, order.UserID, order.Items)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to remove ordered items from cart",
			slog.String("order_id", order.OrderID),
			slog.String("user_id", order.UserID),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	return remaining, true
}

func (s *CheckoutService) replay(ctx context.Context, order *domain.Order) *CheckoutResult {
	remaining, removed := s.removeOrdered(ctx, order)
	if s.events != nil && removed {
		s.publishCartChanged(ctx, order.UserID, remaining)
	}
	checkoutsTotal.WithLabelValues(outcomeReplayed).Inc()

	s.logger.InfoContext(ctx, "checkout replayed",
		slog.String("order_id", order.OrderID),
		slog.String("user_id", order.UserID),
	)

	result := s.result(order)
	result.Replayed = true
	return result
}

func (s *CheckoutService) publishCartChanged(ctx context.Context, userID string, count int) {
	if err := s.events.PublishCartChanged(ctx, userID, count, event.ReasonCheckedOut); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.changed event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) result(order *domain.Order) *CheckoutResult {
	summary := domain.OrderSummary(order.Items, order.Totals())
	return &CheckoutResult{
		Order:       order,
		Summary:     summary,
		WhatsAppURL: dispatch.ClickToChatURL(s.merchantPhone, summary),
	}
}

// GetOrder returns one of the caller's orders. Orders of other users are
// reported as not found.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to view orders")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError("order", err)
	}
	if o.UserID != userID {
		return nil, apperrors.NotFound("order", orderID)
	}
	return o, nil
}

// OrderQRCode renders a PNG QR code opening a WhatsApp chat with the
// merchant about the order.
func (s *CheckoutService) OrderQRCode(ctx context.Context, userID, orderID string, size int) ([]byte, error) {
	if size == 0 {
		size = dispatch.DefaultQRSize
	}
	if size < dispatch.MinQRSize || size > dispatch.MaxQRSize {
		return nil, apperrors.InvalidInput(fmt.Sprintf("size must be between %d and %d", dispatch.MinQRSize, dispatch.MaxQRSize))
	}

	o, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	png, err := dispatch.QRCodePNG(dispatch.ClickToChatURL(s.merchantPhone, dispatch.OrderFollowUpText(o.OrderID)), size)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return png, nil
}
