package repository

import (
	"context"

	"github.com/siyana/storefront/internal/domain"
)

// MutateFunc receives the stored item (nil when absent) and the number of
// lines currently in the cart. It returns the item to write, or nil to leave
// the cart untouched.
type MutateFunc func(current *domain.CartItem, lines int) (*domain.CartItem, error)

// CartRepository stores each user's cart as a collection of item documents
// keyed by item ID.
type CartRepository interface {
	// List returns every decodable item. Malformed documents are skipped.
	List(ctx context.Context, userID string) ([]domain.CartItem, error)

	// Mutate performs an atomic read-modify-write of one item.
	Mutate(ctx context.Context, userID, itemID string, fn MutateFunc) (*domain.CartItem, error)

	// Delete removes one item. Deleting an absent item is not an error.
	Delete(ctx context.Context, userID, itemID string) error

	// Clear removes every item of the user.
	Clear(ctx context.Context, userID string) error

	// RemoveLines deletes each stored item that is still the same line as
	// one of lines (see domain.CartItem.SameLine) and returns how many
	// lines remain. Other items are left alone.
	RemoveLines(ctx context.Context, userID string, lines []domain.CartItem) (int, error)

	// Count returns the number of lines in the cart.
	Count(ctx context.Context, userID string) (int, error)
}

// WishlistRepository stores saved products per user.
type WishlistRepository interface {
	// Exists reports whether the user already saved itemID.
	Exists(ctx context.Context, userID, itemID string) (bool, error)

	// Upsert inserts or replaces the item with the same ID.
	Upsert(ctx context.Context, userID string, item domain.WishlistItem) error

	// List returns the wishlist, most recently added first.
	List(ctx context.Context, userID string) ([]domain.WishlistItem, error)

	// Delete removes one item. Deleting an absent item is not an error.
	Delete(ctx context.Context, userID, itemID string) error
}

// OrderRepository persists order snapshots.
type OrderRepository interface {
	// Create inserts an order. A duplicate order ID yields ErrAlreadyExists;
	// a reused idempotency key for the same user yields ErrConflict.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID returns ErrNotFound when no order has the ID.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetByIdempotencyKey returns ErrNotFound when the key is unused.
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
}

// CatalogRepository is the read-only product catalog.
type CatalogRepository interface {
	// ListCategories returns categories newest first.
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// GetCategory resolves a category by ID or slug.
	GetCategory(ctx context.Context, idOrSlug string) (*domain.Category, error)

	// ListProductsByCategory matches products on category_id and falls back
	// to the embedded category.id when nothing matches.
	ListProductsByCategory(ctx context.Context, categoryID string, offset, limit int) ([]domain.Product, int, error)

	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListOffers(ctx context.Context) ([]domain.Offer, error)
	ListCarousel(ctx context.Context) ([]domain.CarouselItem, error)

	// LatestGoldRate returns ErrNotFound when no rate was published.
	LatestGoldRate(ctx context.Context) (*domain.GoldRate, error)
}
