package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products on the storefront.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// CategoryRef is the category embedded in some product documents.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Product is a sellable catalog entry.
type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Slug          string           `json:"slug,omitempty"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Images        []string         `json:"images,omitempty"`
	CategoryID    string           `json:"categoryId,omitempty"`
	Category      *CategoryRef     `json:"category,omitempty"`
	Purity        string           `json:"purity,omitempty"`
	WeightGrams   *decimal.Decimal `json:"weightGrams,omitempty"`
	InStock       bool             `json:"inStock"`
	CreatedAt     *time.Time       `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time       `json:"updatedAt,omitempty"`
}

// CategoryName prefers the embedded category name over the bare ID.
func (p Product) CategoryName() string {
	if p.Category != nil && p.Category.Name != "" {
		return p.Category.Name
	}
	if p.Category != nil && p.Category.ID != "" {
		return p.Category.ID
	}
	return p.CategoryID
}

// ToCartItem builds the cart line for qty units of p.
func (p Product) ToCartItem(qty int, now time.Time) CartItem {
	it := CartItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: qty,
		Category: p.CategoryName(),
		AddedAt:  now,
	}
	if p.OriginalPrice != nil {
		op := *p.OriginalPrice
		it.OriginalPrice = &op
	}
	if len(p.Images) > 0 {
		it.Images = append([]string(nil), p.Images...)
	}
	return it
}

// Offer is a promotional banner.
type Offer struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Link        string `json:"link,omitempty"`
}

// CarouselItem is a slide on the home page.
type CarouselItem struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Image    string `json:"image"`
	Link     string `json:"link,omitempty"`
}

// GoldRate is the published gold price. A pavan is eight grams.
type GoldRate struct {
	ID        string          `json:"id"`
	PerGram   decimal.Decimal `json:"perGram"`
	PerPavan  decimal.Decimal `json:"perPavan"`
	Date      string          `json:"date"`
	CreatedAt time.Time       `json:"createdAt"`
}

// WishlistItem is a saved product.
type WishlistItem struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Images        []string         `json:"images,omitempty"`
	Category      string           `json:"category,omitempty"`
	AddedAt       time.Time        `json:"addedAt"`
}

// WishlistItemFromCart converts a cart line; quantity is dropped.
func WishlistItemFromCart(it CartItem, now time.Time) WishlistItem {
	c := it.Clone()
	return WishlistItem{
		ID:            c.ID,
		Name:          c.Name,
		Price:         c.Price,
		OriginalPrice: c.OriginalPrice,
		Images:        c.Images,
		Category:      c.Category,
		AddedAt:       now,
	}
}
