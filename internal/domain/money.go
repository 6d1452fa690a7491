package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every amount rendered for customers.
const CurrencySymbol = "₹"

// RoundRupees rounds half away from zero to whole rupees. Display only.
func RoundRupees(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// FormatINR renders d with Indian digit grouping (12,34,567) and at most two
// fraction digits, trailing zeros dropped: 1234.50 → "1,234.5".
func FormatINR(d decimal.Decimal) string {
	s := d.Round(2).String()

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	out := groupIndian(intPart)
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// groupIndian places a comma before the last three digits and then every
// two digits to the left of that.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var b strings.Builder
	lead := len(head) % 2
	if lead > 0 {
		b.WriteString(head[:lead])
	}
	for i := lead; i < len(head); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(head[i : i+2])
	}
	b.WriteByte(',')
	b.WriteString(tail)
	return b.String()
}
