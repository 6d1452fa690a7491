package domain

import (
	"fmt"
	"strings"
)

const (
	summaryGreeting     = "Hello! I would like to place an order:"
	summaryConfirmation = "Please confirm my order."
)

// OrderSummary renders the message sent to the merchant over WhatsApp.
// Line amounts, subtotal and shipping are exact; tax and total are rounded
// to whole rupees.
func OrderSummary(items []CartItem, t Totals) string {
	var b strings.Builder
	b.WriteString(summaryGreeting)
	b.WriteString("\n\n")

	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s - %d x %s%s = %s%s",
			it.Name, it.Quantity,
			CurrencySymbol, FormatINR(it.Price),
			CurrencySymbol, FormatINR(it.LineTotal()))
	}

	shipping := "Free"
	if !t.FreeShipping() {
		shipping = CurrencySymbol + FormatINR(t.Shipping)
	}

	fmt.Fprintf(&b, "\n\nSubtotal: %s%s\nShipping: %s\nTax: %s%s\nTotal: %s%s\n\n%s",
		CurrencySymbol, FormatINR(t.Subtotal),
		shipping,
		CurrencySymbol, FormatINR(RoundRupees(t.Tax)),
		CurrencySymbol, FormatINR(RoundRupees(t.GrandTotal)),
		summaryConfirmation)

	return b.String()
}
