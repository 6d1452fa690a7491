package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/event"
	"github.com/siyana/storefront/internal/repository"
	apperrors "github.com/siyana/storefront/pkg/errors"
)

// AddItemInput is the body of an add-to-cart request.
type AddItemInput struct {
	ProductID string `json:"productId" validate:"required,itemid"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1,lte=100"`
}

// SetQuantityInput is the body of a quantity change.
type SetQuantityInput struct {
	Quantity int `json:"quantity"`
}

// CartView is a cart together with its derived totals.
type CartView struct {
	domain.Cart
	Totals domain.Totals `json:"totals"`
}

// NewCartView prices c.
func NewCartView(c domain.Cart) CartView {
	return CartView{Cart: c, Totals: c.Totals()}
}

// CartService implements cart and wishlist operations.
type CartService struct {
	carts        repository.CartRepository
	wishlist     repository.WishlistRepository
	catalog      repository.CatalogRepository
	events       CartEventPublisher
	logger       *slog.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(
	carts repository.CartRepository,
	wishlist repository.WishlistRepository,
	catalog repository.CatalogRepository,
	events CartEventPublisher,
	logger *slog.Logger,
	storeTimeout time.Duration,
) *CartService {
	return &CartService{
		carts:        carts,
		wishlist:     wishlist,
		catalog:      catalog,
		events:       events,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// LoadCart returns the user's cart. It never fails: an anonymous user or an
// unreachable store yields the empty cart, and the failure is logged.
func (s *CartService) LoadCart(ctx context.Context, userID string) domain.Cart {
	if userID == "" {
		return domain.EmptyCart("")
	}

	cart, err := s.fetch(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "cart unavailable, serving empty cart",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return domain.EmptyCart(userID)
	}
	return cart
}

func (s *CartService) fetch(ctx context.Context, userID string) (domain.Cart, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	items, err := s.carts.List(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.NewCart(userID, items), nil
}

// reload reads the cart after a successful write. Unlike LoadCart it
// reports store failures so a client never mistakes them for an empty cart.
func (s *CartService) reload(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.fetch(ctx, userID)
	if err != nil {
		return domain.Cart{}, storeError("cart", err)
	}
	return cart, nil
}

// CartCount is the navbar badge: the number of distinct lines. Failures
// degrade to zero.
func (s *CartService) CartCount(ctx context.Context, userID string) int {
	if userID == "" {
		return 0
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.carts.Count(sctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "cart count unavailable",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return 0
	}
	return n
}

// AddItem puts qty units of a catalog product in the cart, merging with an
// existing line for the same product. The price is always taken from the
// catalog.
func (s *CartService) AddItem(ctx context.Context, userID string, input AddItemInput) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, apperrors.Unauthorized("sign in to use the cart")
	}
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 || qty > domain.MaxQuantityPerItem {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("quantity must be between 1 and %d", domain.MaxQuantityPerItem))
	}

	product, err := s.product(ctx, input.ProductID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !product.InStock {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("%s is out of stock", product.Name))
	}

	now := s.now()
	mctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	_, err = s.carts.Mutate(mctx, userID, product.ID, func(current *domain.CartItem, lines int) (*domain.CartItem, error) {
		if current == nil {
			if lines >= domain.MaxItemsPerCart {
				return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", domain.MaxItemsPerCart))
			}
			it := product.ToCartItem(qty, now)
			return &it, nil
		}

		merged := current.Quantity + qty
		if merged > domain.MaxQuantityPerItem {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", domain.MaxQuantityPerItem))
		}
		it := product.ToCartItem(merged, current.AddedAt)
		return &it, nil
	})
	if err != nil {
		return domain.Cart{}, storeError("cart", err)
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("item_id", product.ID),
		slog.Int("quantity", qty),
	)
	return s.afterMutation(ctx, userID, event.ReasonItemAdded)
}

func (s *CartService) product(ctx context.Context, productID string) (*domain.Product, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, storeError("catalog", err)
	}
	return p, nil
}

// SetQuantity replaces an item's quantity. A quantity below one changes
// nothing and returns the current cart; removal goes through RemoveItem.
// An absent item is NotFound.
func (s *CartService) SetQuantity(ctx context.Context, userID, itemID string, qty int) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, apperrors.Unauthorized("sign in to use the cart")
	}
	if qty < 1 {
		return s.LoadCart(ctx, userID), nil
	}
	if qty > domain.MaxQuantityPerItem {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantityPerItem))
	}

	mctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	changed := false
	_, err := s.carts.Mutate(mctx, userID, itemID, func(current *domain.CartItem, _ int) (*domain.CartItem, error) {
		if current == nil {
			return nil, apperrors.NotFound("cart item", itemID)
		}
		if current.Quantity == qty {
			return nil, nil
		}
		next := current.Clone()
		next.Quantity = qty
		changed = true
		return &next, nil
	})
	if err != nil {
		return domain.Cart{}, storeError("cart", err)
	}

	if !changed {
		return s.reload(ctx, userID)
	}
	return s.afterMutation(ctx, userID, event.ReasonQuantityChanged)
}

// RemoveItem deletes an item; removing an absent item is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, apperrors.Unauthorized("sign in to use the cart")
	}

	if err := s.deleteItem(ctx, userID, itemID); err != nil {
		return domain.Cart{}, err
	}
	return s.afterMutation(ctx, userID, event.ReasonItemRemoved)
}

func (s *CartService) deleteItem(ctx context.Context, userID, itemID string) error {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.carts.Delete(ctx, userID, itemID); err != nil {
		return storeError("cart", err)
	}
	return nil
}

// ClearCart empties the cart. Repeating it is harmless.
func (s *CartService) ClearCart(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, apperrors.Unauthorized("sign in to use the cart")
	}

	cctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.carts.Clear(cctx, userID); err != nil {
		return domain.Cart{}, storeError("cart", err)
	}

	s.publishChanged(ctx, userID, 0, event.ReasonCleared)
	return domain.EmptyCart(userID), nil
}

// MoveToWishlist saves the item to the wishlist and then removes it from
// the cart. If the wishlist write fails the cart is left untouched; if the
// cart delete fails a wishlist entry created by this call is taken back.
func (s *CartService) MoveToWishlist(ctx context.Context, userID, itemID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, apperrors.Unauthorized("sign in to use the wishlist")
	}

	cart, err := s.reload(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	item, ok := cart.Find(itemID)
	if !ok {
		return domain.Cart{}, apperrors.NotFound("cart item", itemID)
	}

	created, err := s.saveToWishlist(ctx, userID, item)
	if err != nil {
		return domain.Cart{}, err
	}

	if err := s.deleteItem(ctx, userID, itemID); err != nil {
		if created {
			s.unsaveFromWishlist(ctx, userID, itemID)
		}
		return domain.Cart{}, err
	}

	s.logger.InfoContext(ctx, "item moved to wishlist",
		slog.String("user_id", userID),
		slog.String("item_id", itemID),
	)
	return s.afterMutation(ctx, userID, event.ReasonMovedToWishlist)
}

// saveToWishlist upserts the item and reports whether it was new.
func (s *CartService) saveToWishlist(ctx context.Context, userID string, item domain.CartItem) (bool, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	exists, err := s.wishlist.Exists(ctx, userID, item.ID)
	if err != nil {
		return false, storeError("wishlist", err)
	}
	if err := s.wishlist.Upsert(ctx, userID, domain.WishlistItemFromCart(item, s.now())); err != nil {
		return false, storeError("wishlist", err)
	}
	return !exists, nil
}

func (s *CartService) unsaveFromWishlist(ctx context.Context, userID, itemID string) {
	wctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.wishlist.Delete(wctx, userID, itemID); err != nil {
		s.logger.ErrorContext(ctx, "failed to undo wishlist save after cart delete failed",
			slog.String("user_id", userID),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
	}
}

// ListWishlist returns the user's saved items.
func (s *CartService) ListWishlist(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to use the wishlist")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	items, err := s.wishlist.List(ctx, userID)
	if err != nil {
		return nil, storeError("wishlist", err)
	}
	if items == nil {
		items = []domain.WishlistItem{}
	}
	return items, nil
}

// RemoveFromWishlist deletes a saved item; absent items are ignored.
func (s *CartService) RemoveFromWishlist(ctx context.Context, userID, itemID string) error {
	if userID == "" {
		return apperrors.Unauthorized("sign in to use the wishlist")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.wishlist.Delete(ctx, userID, itemID); err != nil {
		return storeError("wishlist", err)
	}
	return nil
}

func (s *CartService) afterMutation(ctx context.Context, userID, reason string) (domain.Cart, error) {
	cart, err := s.reload(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	s.publishChanged(ctx, userID, cart.Count(), reason)
	return cart, nil
}

// publishChanged is best effort: the cart write already succeeded.
func (s *CartService) publishChanged(ctx context.Context, userID string, count int, reason string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCartChanged(ctx, userID, count, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.changed event",
			slog.String("user_id", userID),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}
