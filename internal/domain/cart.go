package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Cart limits.
const (
	MaxQuantityPerItem = 100
	MaxItemsPerCart    = 50
)

// ErrInvalidItem marks a cart document that cannot be priced.
var ErrInvalidItem = errors.New("invalid cart item")

// CartItem is one purchasable line in a cart, keyed by ID.
type CartItem struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Quantity      int              `json:"quantity"`
	Images        []string         `json:"images,omitempty"`
	Category      string           `json:"category,omitempty"`
	AddedAt       time.Time        `json:"addedAt"`
}

// LineTotal is price × quantity.
func (it CartItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Validate checks the fields pricing depends on.
func (it CartItem) Validate() error {
	switch {
	case strings.TrimSpace(it.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	case strings.TrimSpace(it.Name) == "":
		return fmt.Errorf("%w: item %s: missing name", ErrInvalidItem, it.ID)
	case it.Price.IsNegative():
		return fmt.Errorf("%w: item %s: negative price", ErrInvalidItem, it.ID)
	case it.OriginalPrice != nil && it.OriginalPrice.IsNegative():
		return fmt.Errorf("%w: item %s: negative original price", ErrInvalidItem, it.ID)
	case it.Quantity < 1:
		return fmt.Errorf("%w: item %s: quantity %d", ErrInvalidItem, it.ID, it.Quantity)
	}
	return nil
}

// Clone returns a deep copy.
func (it CartItem) Clone() CartItem {
	c := it
	if it.OriginalPrice != nil {
		op := *it.OriginalPrice
		c.OriginalPrice = &op
	}
	c.Images = slices.Clone(it.Images)
	return c
}

// SameLine reports whether it is still the line o was taken from: same ID,
// quantity and AddedAt. A line re-added after checkout gets a new AddedAt.
func (it CartItem) SameLine(o CartItem) bool {
	return it.ID == o.ID && it.Quantity == o.Quantity && it.AddedAt.Equal(o.AddedAt)
}

// ParseCartItem decodes a stored cart document. The id field falls back to
// key when the document omits it.
func ParseCartItem(key string, raw []byte) (CartItem, error) {
	var it CartItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return CartItem{}, fmt.Errorf("%w: decode %s: %v", ErrInvalidItem, key, err)
	}
	if it.ID == "" {
		it.ID = key
	}
	if it.ID != key {
		return CartItem{}, fmt.Errorf("%w: id %q stored under %q", ErrInvalidItem, it.ID, key)
	}
	if err := it.Validate(); err != nil {
		return CartItem{}, err
	}
	return it, nil
}

// Cart is one user's ordered list of items.
type Cart struct {
	UserID string     `json:"userId"`
	Items  []CartItem `json:"items"`
}

// NewCart returns a cart with items sorted by AddedAt then ID.
func NewCart(userID string, items []CartItem) Cart {
	if items == nil {
		items = []CartItem{}
	}
	SortItems(items)
	return Cart{UserID: userID, Items: items}
}

// EmptyCart returns a cart with no items.
func EmptyCart(userID string) Cart {
	return Cart{UserID: userID, Items: []CartItem{}}
}

// SortItems orders items by AddedAt, breaking ties by ID.
func SortItems(items []CartItem) {
	slices.SortStableFunc(items, func(a, b CartItem) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// IsEmpty reports whether the cart has no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the item with the given id.
func (c Cart) Find(id string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return CartItem{}, false
}

// Count is the navbar badge value: distinct lines, not units.
func (c Cart) Count() int {
	return len(c.Items)
}

// Totals prices the cart.
func (c Cart) Totals() Totals {
	return ComputeTotals(c.Items)
}

// Snapshot deep-copies the items.
func (c Cart) Snapshot() []CartItem {
	out := make([]CartItem, len(c.Items))
	for i, it := range c.Items {
		out[i] = it.Clone()
	}
	return out
}
