package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/repository"
)

// --- Cart repository ---

type mockCartRepository struct {
	mock.Mock
	written []domain.CartItem
}

func (m *mockCartRepository) List(ctx context.Context, userID string) ([]domain.CartItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CartItem), args.Error(1)
}

// Mutate returns (current, lines, err) from the expectation and runs fn
// against them, recording whatever fn decides to write.
func (m *mockCartRepository) Mutate(ctx context.Context, userID, itemID string, fn repository.MutateFunc) (*domain.CartItem, error) {
	args := m.Called(ctx, userID, itemID)
	if err := args.Error(2); err != nil {
		return nil, err
	}
	var current *domain.CartItem
	if v := args.Get(0); v != nil {
		current = v.(*domain.CartItem)
	}
	next, err := fn(current, args.Int(1))
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}
	m.written = append(m.written, *next)
	return next, nil
}

func (m *mockCartRepository) Delete(ctx context.Context, userID, itemID string) error {
	return m.Called(ctx, userID, itemID).Error(0)
}

func (m *mockCartRepository) Clear(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockCartRepository) RemoveLines(ctx context.Context, userID string, lines []domain.CartItem) (int, error) {
	args := m.Called(ctx, userID, lines)
	return args.Int(0), args.Error(1)
}

func (m *mockCartRepository) Count(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// --- Wishlist repository ---

type mockWishlistRepository struct {
	mock.Mock
}

func (m *mockWishlistRepository) Exists(ctx context.Context, userID, itemID string) (bool, error) {
	args := m.Called(ctx, userID, itemID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWishlistRepository) Upsert(ctx context.Context, userID string, item domain.WishlistItem) error {
	return m.Called(ctx, userID, item).Error(0)
}

func (m *mockWishlistRepository) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WishlistItem), args.Error(1)
}

func (m *mockWishlistRepository) Delete(ctx context.Context, userID, itemID string) error {
	return m.Called(ctx, userID, itemID).Error(0)
}

// --- Order repository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// --- Catalog repository ---

type mockCatalogRepository struct {
	mock.Mock
}

func (m *mockCatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCatalogRepository) GetCategory(ctx context.Context, idOrSlug string) (*domain.Category, error) {
	args := m.Called(ctx, idOrSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCatalogRepository) ListProductsByCategory(ctx context.Context, categoryID string, offset, limit int) ([]domain.Product, int, error) {
	args := m.Called(ctx, categoryID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockCatalogRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogRepository) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Offer), args.Error(1)
}

func (m *mockCatalogRepository) ListCarousel(ctx context.Context) ([]domain.CarouselItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CarouselItem), args.Error(1)
}

func (m *mockCatalogRepository) LatestGoldRate(ctx context.Context) (*domain.GoldRate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GoldRate), args.Error(1)
}

// --- Event publisher ---

type cartChange struct {
	UserID string
	Count  int
	Reason string
}

type recordingPublisher struct {
	mu       sync.Mutex
	changes  []cartChange
	orders   []*domain.Order
	summary  string
	url      string
	failWith error
}

func (p *recordingPublisher) PublishCartChanged(_ context.Context, userID string, count int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, cartChange{UserID: userID, Count: count, Reason: reason})
	return p.failWith
}

func (p *recordingPublisher) PublishOrderSubmitted(_ context.Context, order *domain.Order, summary, whatsappURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, order)
	p.summary = summary
	p.url = whatsappURL
	return p.failWith
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
