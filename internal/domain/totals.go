package domain

import "github.com/shopspring/decimal"

// Pricing policy.
var (
	// FreeShippingThreshold is exclusive: a subtotal of exactly this amount
	// still pays the flat fee.
	FreeShippingThreshold = decimal.NewFromInt(10000)
	FlatShippingFee       = decimal.NewFromInt(200)
	TaxRate               = decimal.RequireFromString("0.18")
)

// Totals are derived from a cart on every read and never stored rounded.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Savings    decimal.Decimal `json:"savings"`
	ItemCount  int             `json:"itemCount"`
}

// FreeShipping reports whether the shipping fee was waived.
func (t Totals) FreeShipping() bool {
	return t.Shipping.IsZero()
}

// ComputeTotals prices items. It is pure and exact.
func ComputeTotals(items []CartItem) Totals {
	subtotal := decimal.Zero
	savings := decimal.Zero
	count := 0

	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotal = subtotal.Add(it.LineTotal())
		if it.OriginalPrice != nil {
			if diff := it.OriginalPrice.Sub(it.Price); diff.IsPositive() {
				savings = savings.Add(diff.Mul(qty))
			}
		}
		count += it.Quantity
	}

	shipping := ShippingFor(subtotal)
	tax := subtotal.Mul(TaxRate)

	return Totals{
		Subtotal:   subtotal,
		Shipping:   shipping,
		Tax:        tax,
		GrandTotal: subtotal.Add(shipping).Add(tax),
		Savings:    savings,
		ItemCount:  count,
	}
}

// ShippingFor returns the shipping fee for a subtotal.
func ShippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingFee
}
