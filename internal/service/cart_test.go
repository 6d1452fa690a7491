package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/event"
	apperrors "github.com/siyana/storefront/pkg/errors"
)

var (
	fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	storeErr = errors.New("dial tcp 10.0.0.5:6379: connection refused")
)

type cartFixture struct {
	carts    *mockCartRepository
	wishlist *mockWishlistRepository
	catalog  *mockCatalogRepository
	events   *recordingPublisher
	svc      *CartService
}

func newCartFixture() *cartFixture {
	f := &cartFixture{
		carts:    new(mockCartRepository),
		wishlist: new(mockWishlistRepository),
		catalog:  new(mockCatalogRepository),
		events:   &recordingPublisher{},
	}
	f.svc = NewCartService(f.carts, f.wishlist, f.catalog, f.events, newTestLogger(), time.Second)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func ring() *domain.Product {
	op := decimal.NewFromInt(6000)
	return &domain.Product{
		ID:            "ring-1",
		Name:          "Gold Ring",
		Price:         decimal.NewFromInt(5000),
		OriginalPrice: &op,
		Images:        []string{"https://cdn.example.com/ring-1.jpg"},
		CategoryID:    "rings",
		InStock:       true,
	}
}

func cartLine(id string, price int64, qty int, addedAt time.Time) domain.CartItem {
	return domain.CartItem{
		ID:       id,
		Name:     "Item " + id,
		Price:    decimal.NewFromInt(price),
		Quantity: qty,
		AddedAt:  addedAt,
	}
}

// ---------------------------------------------------------------------------
// LoadCart / CartCount
// ---------------------------------------------------------------------------

func TestLoadCart_AnonymousUser(t *testing.T) {
	f := newCartFixture()

	cart := f.svc.LoadCart(context.Background(), "")

	assert.True(t, cart.IsEmpty())
	f.carts.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestLoadCart_SortsItems(t *testing.T) {
	f := newCartFixture()
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{
		cartLine("B", 100, 1, fixedNow.Add(time.Minute)),
		cartLine("A", 100, 1, fixedNow),
	}, nil)

	cart := f.svc.LoadCart(context.Background(), "u1")

	require.Len(t, cart.Items, 2)
	assert.Equal(t, "A", cart.Items[0].ID)
	assert.Equal(t, "u1", cart.UserID)
}

func TestLoadCart_StoreFailureDegradesToEmpty(t *testing.T) {
	f := newCartFixture()
	f.carts.On("List", mock.Anything, "u1").Return(nil, storeErr)

	cart := f.svc.LoadCart(context.Background(), "u1")

	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "u1", cart.UserID)
	assert.NotNil(t, cart.Items)
}

func TestCartCount(t *testing.T) {
	f := newCartFixture()
	f.carts.On("Count", mock.Anything, "u1").Return(3, nil).Once()
	f.carts.On("Count", mock.Anything, "u1").Return(0, storeErr).Once()

	assert.Equal(t, 3, f.svc.CartCount(context.Background(), "u1"))
	assert.Equal(t, 0, f.svc.CartCount(context.Background(), "u1"))
	assert.Equal(t, 0, f.svc.CartCount(context.Background(), ""))
}

// ---------------------------------------------------------------------------
// AddItem
// ---------------------------------------------------------------------------

func TestAddItem_NewLineUsesCatalogPrice(t *testing.T) {
	f := newCartFixture()
	f.catalog.On("GetProduct", mock.Anything, "ring-1").Return(ring(), nil)
	f.carts.On("Mutate", mock.Anything, "u1", "ring-1").Return(nil, 0, nil)
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("ring-1", 5000, 2, fixedNow)}, nil)

	cart, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "ring-1", Quantity: 2})

	require.NoError(t, err)
	require.Len(t, f.carts.written, 1)
	w := f.carts.written[0]
	assert.Equal(t, 2, w.Quantity)
	assert.True(t, w.Price.Equal(decimal.NewFromInt(5000)))
	require.NotNil(t, w.OriginalPrice)
	assert.True(t, w.OriginalPrice.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, fixedNow, w.AddedAt)
	assert.Equal(t, "rings", w.Category)

	assert.Equal(t, 1, cart.Count())
	assert.Equal(t, []cartChange{{UserID: "u1", Count: 1, Reason: event.ReasonItemAdded}}, f.events.changes)
}

func TestAddItem_DefaultsToOneUnit(t *testing.T) {
	f := newCartFixture()
	f.catalog.On("GetProduct", mock.Anything, "ring-1").Return(ring(), nil)
	f.carts.On("Mutate", mock.Anything, "u1", "ring-1").Return(nil, 0, nil)
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{}, nil)

	_, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "ring-1"})

	require.NoError(t, err)
	require.Len(t, f.carts.written, 1)
	assert.Equal(t, 1, f.carts.written[0].Quantity)
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	f := newCartFixture()
	earlier := fixedNow.Add(-time.Hour)
	existing := cartLine("ring-1", 4500, 3, earlier)

	f.catalog.On("GetProduct", mock.Anything, "ring-1").Return(ring(), nil)
	f.carts.On("Mutate", mock.Anything, "u1", "ring-1").Return(&existing, 1, nil)
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{existing}, nil)

	_, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "ring-1", Quantity: 2})

	require.NoError(t, err)
	require.Len(t, f.carts.written, 1)
	w := f.carts.written[0]
	assert.Equal(t, 5, w.Quantity)
	assert.Equal(t, earlier, w.AddedAt)
	assert.True(t, w.Price.Equal(decimal.NewFromInt(5000)), "price refreshed from catalog")
}

func TestAddItem_MergedQuantityOverLimit(t *testing.T) {
	f := newCartFixture()
	existing := cartLine("ring-1", 5000, domain.MaxQuantityPerItem, fixedNow)

	f.catalog.On("GetProduct", mock.Anything, "ring-1").Return(ring(), nil)
	f.carts.On("Mutate", mock.Anything, "u1", "ring-1").Return(&existing, 1, nil)

	_, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "ring-1", Quantity: 1})

	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Empty(t, f.carts.written)
	assert.Empty(t, f.events.changes)
}

func TestAddItem_CartFull(t *testing.T) {
	f := newCartFixture()
	f.catalog.On("GetProduct", mock.Anything, "ring-1").Return(ring(), nil)
	f.carts.On("Mutate", mock.Anything, "u1", "ring-1").Return(nil, domain.MaxItemsPerCart, nil)

	_, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "ring-1", Quantity: 1})

	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Empty(t, f.carts.written)
}

func TestAddItem_Rejections(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		f := newCartFixture()
		_, err := f.svc.AddItem(context.Background(), "", AddItemInput{ProductID: "ring-1"})
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	})

	t.Run("quantity over limit", func(t *testing.T) {
		f := newCartFixture()
		_, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "ring-1", Quantity: 101})
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		f.catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})

	t.Run("out of stock", func(t *testing.T) {
		f := newCartFixture()
		p := ring()
		p.InStock = false
		f.catalog.On("GetProduct", mock.Anything, "ring-1").Return(p, nil)

		_, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "ring-1"})
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		f.carts.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newCartFixture()
		f.catalog.On("GetProduct", mock.Anything, "nope").Return(nil, apperrors.NotFound("product", "nope"))

		_, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "nope"})
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("catalog down", func(t *testing.T) {
		f := newCartFixture()
		f.catalog.On("GetProduct", mock.Anything, "ring-1").Return(nil, storeErr)

		_, err := f.svc.AddItem(context.Background(), "u1", AddItemInput{ProductID: "ring-1"})
		assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	})
}

// ---------------------------------------------------------------------------
// SetQuantity
// ---------------------------------------------------------------------------

func TestSetQuantity_BelowOneIsNoop(t *testing.T) {
	for _, qty := range []int{0, -1} {
		f := newCartFixture()
		f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("A", 100, 2, fixedNow)}, nil)

		cart, err := f.svc.SetQuantity(context.Background(), "u1", "A", qty)

		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 2, cart.Items[0].Quantity)
		f.carts.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, f.events.changes)
	}
}

func TestSetQuantity_Replaces(t *testing.T) {
	f := newCartFixture()
	current := cartLine("A", 100, 2, fixedNow)
	f.carts.On("Mutate", mock.Anything, "u1", "A").Return(&current, 1, nil)
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("A", 100, 7, fixedNow)}, nil)

	cart, err := f.svc.SetQuantity(context.Background(), "u1", "A", 7)

	require.NoError(t, err)
	require.Len(t, f.carts.written, 1)
	assert.Equal(t, 7, f.carts.written[0].Quantity)
	assert.Equal(t, 2, current.Quantity, "stored item is not aliased")
	assert.True(t, cart.Totals().Subtotal.Equal(decimal.NewFromInt(700)))
	assert.Equal(t, event.ReasonQuantityChanged, f.events.changes[0].Reason)
}

func TestSetQuantity_SameQuantityWritesNothing(t *testing.T) {
	f := newCartFixture()
	current := cartLine("A", 100, 2, fixedNow)
	f.carts.On("Mutate", mock.Anything, "u1", "A").Return(&current, 1, nil)
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{current}, nil)

	_, err := f.svc.SetQuantity(context.Background(), "u1", "A", 2)

	require.NoError(t, err)
	assert.Empty(t, f.carts.written)
	assert.Empty(t, f.events.changes)
}

func TestSetQuantity_AbsentItemIsNotFound(t *testing.T) {
	f := newCartFixture()
	f.carts.On("Mutate", mock.Anything, "u1", "ghost").Return(nil, 0, nil)

	_, err := f.svc.SetQuantity(context.Background(), "u1", "ghost", 3)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Empty(t, f.carts.written)
}

func TestSetQuantity_StoreFailure(t *testing.T) {
	f := newCartFixture()
	f.carts.On("Mutate", mock.Anything, "u1", "A").Return(nil, 0, storeErr)

	_, err := f.svc.SetQuantity(context.Background(), "u1", "A", 3)

	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	assert.True(t, errors.Is(err, storeErr))
}

func TestSetQuantity_ConcurrentWriterConflictPassesThrough(t *testing.T) {
	f := newCartFixture()
	f.carts.On("Mutate", mock.Anything, "u1", "A").Return(nil, 0, apperrors.Conflict("cart was modified concurrently, please retry"))

	_, err := f.svc.SetQuantity(context.Background(), "u1", "A", 3)

	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.False(t, errors.Is(err, apperrors.ErrStoreUnavailable))
}

// ---------------------------------------------------------------------------
// RemoveItem / ClearCart
// ---------------------------------------------------------------------------

func TestRemoveItem_Idempotent(t *testing.T) {
	f := newCartFixture()
	f.carts.On("Delete", mock.Anything, "u1", "A").Return(nil)
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("B", 100, 1, fixedNow)}, nil)

	first, err := f.svc.RemoveItem(context.Background(), "u1", "A")
	require.NoError(t, err)
	second, err := f.svc.RemoveItem(context.Background(), "u1", "A")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	f.carts.AssertNumberOfCalls(t, "Delete", 2)
}

func TestClearCart(t *testing.T) {
	f := newCartFixture()
	f.carts.On("Clear", mock.Anything, "u1").Return(nil)

	cart, err := f.svc.ClearCart(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, []cartChange{{UserID: "u1", Count: 0, Reason: event.ReasonCleared}}, f.events.changes)
}

func TestClearCart_StoreFailure(t *testing.T) {
	f := newCartFixture()
	f.carts.On("Clear", mock.Anything, "u1").Return(storeErr)

	_, err := f.svc.ClearCart(context.Background(), "u1")

	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	assert.Empty(t, f.events.changes)
}

func TestMutation_PublishFailureIsNotFatal(t *testing.T) {
	f := newCartFixture()
	f.events.failWith = errors.New("kafka: leader not available")
	f.carts.On("Clear", mock.Anything, "u1").Return(nil)

	_, err := f.svc.ClearCart(context.Background(), "u1")

	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// MoveToWishlist / wishlist
// ---------------------------------------------------------------------------

func TestMoveToWishlist_SavesThenRemoves(t *testing.T) {
	f := newCartFixture()
	item := cartLine("A", 2500, 2, fixedNow.Add(-time.Hour))

	var order []string
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{item}, nil).Once()
	f.wishlist.On("Exists", mock.Anything, "u1", "A").Return(false, nil)
	f.wishlist.On("Upsert", mock.Anything, "u1", mock.MatchedBy(func(w domain.WishlistItem) bool {
		return w.ID == "A" && w.Price.Equal(decimal.NewFromInt(2500)) && w.AddedAt.Equal(fixedNow)
	})).Run(func(mock.Arguments) { order = append(order, "upsert") }).Return(nil)
	f.carts.On("Delete", mock.Anything, "u1", "A").Run(func(mock.Arguments) { order = append(order, "delete") }).Return(nil)
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{}, nil).Once()

	cart, err := f.svc.MoveToWishlist(context.Background(), "u1", "A")

	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, []string{"upsert", "delete"}, order)
	assert.Equal(t, event.ReasonMovedToWishlist, f.events.changes[0].Reason)
	f.wishlist.AssertExpectations(t)
}

func TestMoveToWishlist_WishlistFailureKeepsCart(t *testing.T) {
	f := newCartFixture()
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("A", 2500, 1, fixedNow)}, nil)
	f.wishlist.On("Exists", mock.Anything, "u1", "A").Return(false, nil)
	f.wishlist.On("Upsert", mock.Anything, "u1", mock.Anything).Return(storeErr)

	_, err := f.svc.MoveToWishlist(context.Background(), "u1", "A")

	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.events.changes)
}

func TestMoveToWishlist_WishlistLookupFailureTouchesNothing(t *testing.T) {
	f := newCartFixture()
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("A", 2500, 1, fixedNow)}, nil)
	f.wishlist.On("Exists", mock.Anything, "u1", "A").Return(false, storeErr)

	_, err := f.svc.MoveToWishlist(context.Background(), "u1", "A")

	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	f.wishlist.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestMoveToWishlist_CartFailureUndoesWishlistSave(t *testing.T) {
	f := newCartFixture()
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("A", 2500, 1, fixedNow)}, nil)
	f.wishlist.On("Exists", mock.Anything, "u1", "A").Return(false, nil)
	f.wishlist.On("Upsert", mock.Anything, "u1", mock.Anything).Return(nil)
	f.carts.On("Delete", mock.Anything, "u1", "A").Return(storeErr)
	f.wishlist.On("Delete", mock.Anything, "u1", "A").Return(nil)

	_, err := f.svc.MoveToWishlist(context.Background(), "u1", "A")

	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	f.wishlist.AssertCalled(t, "Delete", mock.Anything, "u1", "A")
	assert.Empty(t, f.events.changes)
}

func TestMoveToWishlist_CartFailureKeepsEarlierWishlistEntry(t *testing.T) {
	f := newCartFixture()
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("A", 2500, 1, fixedNow)}, nil)
	f.wishlist.On("Exists", mock.Anything, "u1", "A").Return(true, nil)
	f.wishlist.On("Upsert", mock.Anything, "u1", mock.Anything).Return(nil)
	f.carts.On("Delete", mock.Anything, "u1", "A").Return(storeErr)

	_, err := f.svc.MoveToWishlist(context.Background(), "u1", "A")

	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	f.wishlist.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestMoveToWishlist_UndoFailureReturnsCartError(t *testing.T) {
	f := newCartFixture()
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{cartLine("A", 2500, 1, fixedNow)}, nil)
	f.wishlist.On("Exists", mock.Anything, "u1", "A").Return(false, nil)
	f.wishlist.On("Upsert", mock.Anything, "u1", mock.Anything).Return(nil)
	f.carts.On("Delete", mock.Anything, "u1", "A").Return(storeErr)
	f.wishlist.On("Delete", mock.Anything, "u1", "A").Return(errors.New("mongo down"))

	_, err := f.svc.MoveToWishlist(context.Background(), "u1", "A")

	assert.True(t, errors.Is(err, storeErr))
}

func TestMoveToWishlist_AbsentItem(t *testing.T) {
	f := newCartFixture()
	f.carts.On("List", mock.Anything, "u1").Return([]domain.CartItem{}, nil)

	_, err := f.svc.MoveToWishlist(context.Background(), "u1", "A")

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.wishlist.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestListWishlist(t *testing.T) {
	f := newCartFixture()
	f.wishlist.On("List", mock.Anything, "u1").Return(nil, nil).Once()
	f.wishlist.On("List", mock.Anything, "u1").Return(nil, storeErr).Once()

	items, err := f.svc.ListWishlist(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, err = f.svc.ListWishlist(context.Background(), "u1")
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))

	_, err = f.svc.ListWishlist(context.Background(), "")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestRemoveFromWishlist(t *testing.T) {
	f := newCartFixture()
	f.wishlist.On("Delete", mock.Anything, "u1", "A").Return(nil)

	require.NoError(t, f.svc.RemoveFromWishlist(context.Background(), "u1", "A"))
	f.wishlist.AssertExpectations(t)
}

func TestWithStoreTimeout_AppliesDeadline(t *testing.T) {
	ctx, cancel := withStoreTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	ctx, cancel = withStoreTimeout(context.Background(), 0)
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
