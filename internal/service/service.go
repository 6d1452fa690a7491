// Package service holds the storefront's business operations: cart
// mutations, checkout, and catalog reads.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/siyana/storefront/internal/domain"
	apperrors "github.com/siyana/storefront/pkg/errors"
)

// DefaultStoreTimeout bounds every call to a backing store.
const DefaultStoreTimeout = 5 * time.Second

// CartEventPublisher announces cart badge changes.
type CartEventPublisher interface {
	PublishCartChanged(ctx context.Context, userID string, count int, reason string) error
}

// OrderEventPublisher announces recorded orders.
type OrderEventPublisher interface {
	CartEventPublisher
	PublishOrderSubmitted(ctx context.Context, order *domain.Order, summary, whatsappURL string) error
}

// withStoreTimeout derives the per-call deadline. A non-positive d keeps
// the caller's context as is.
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// storeError passes application errors through untouched and turns
// anything else into StoreUnavailable for the named store.
func storeError(store string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.StoreUnavailable(store, err)
}
