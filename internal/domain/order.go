package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusWhatsAppSent is the only status the storefront assigns: the
	// order was recorded and handed to WhatsApp for confirmation.
	OrderStatusWhatsAppSent OrderStatus = "whatsapp_sent"
)

// Order is the immutable snapshot taken at checkout.
type Order struct {
	OrderID        string          `json:"orderId"`
	UserID         string          `json:"userId"`
	UserEmail      string          `json:"userEmail"`
	UserName       string          `json:"userName"`
	Items          []CartItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Shipping       decimal.Decimal `json:"shipping"`
	Tax            decimal.Decimal `json:"tax"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Status         OrderStatus     `json:"status"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Actor is the authenticated customer placing an order.
type Actor struct {
	UserID string
	Email  string
	Name   string
}

// DefaultCustomerName is used when the actor has no display name.
const DefaultCustomerName = "Customer"

// NewOrder freezes items and their totals into an order.
func NewOrder(id string, actor Actor, items []CartItem, now time.Time) *Order {
	snapshot := make([]CartItem, len(items))
	for i, it := range items {
		snapshot[i] = it.Clone()
	}
	t := ComputeTotals(snapshot)

	name := actor.Name
	if name == "" {
		name = DefaultCustomerName
	}

	return &Order{
		OrderID:     id,
		UserID:      actor.UserID,
		UserEmail:   actor.Email,
		UserName:    name,
		Items:       snapshot,
		Subtotal:    t.Subtotal,
		Shipping:    t.Shipping,
		Tax:         t.Tax,
		TotalAmount: t.GrandTotal,
		Status:      OrderStatusWhatsAppSent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Totals rebuilds the frozen breakdown.
func (o *Order) Totals() Totals {
	savings := ComputeTotals(o.Items).Savings
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return Totals{
		Subtotal:   o.Subtotal,
		Shipping:   o.Shipping,
		Tax:        o.Tax,
		GrandTotal: o.TotalAmount,
		Savings:    savings,
		ItemCount:  count,
	}
}

const (
	orderIDPrefix    = "ORD"
	orderSuffixLen   = 9
	base36Alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	base36RejectFrom = 252 // largest multiple of 36 that fits in a byte
)

// OrderIDGenerator returns a new candidate order ID.
type OrderIDGenerator func(now time.Time) (string, error)

// NewOrderID returns ORD-<unix millis>-<9 uppercase base36 chars>.
func NewOrderID(now time.Time) (string, error) {
	return newOrderID(now, rand.Reader)
}

func newOrderID(now time.Time, r io.Reader) (string, error) {
	suffix := make([]byte, 0, orderSuffixLen)
	buf := make([]byte, 16)
	for len(suffix) < orderSuffixLen {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read order id entropy: %w", err)
		}
		for _, b := range buf {
			if b >= base36RejectFrom {
				continue
			}
			suffix = append(suffix, base36Alphabet[b%36])
			if len(suffix) == orderSuffixLen {
				break
			}
		}
	}
	return fmt.Sprintf("%s-%d-%s", orderIDPrefix, now.UnixMilli(), suffix), nil
}
