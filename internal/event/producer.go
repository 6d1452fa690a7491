package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siyana/storefront/internal/domain"
	pkgkafka "github.com/siyana/storefront/pkg/kafka"
)

// Topics published by the storefront.
var (
	TopicCartChanged    = pkgkafka.Topic("cart", "changed")
	TopicOrderSubmitted = pkgkafka.Topic("order", "submitted")
)

// Aggregate types and source identifier.
const (
	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
	SourceStorefront   = "storefront-api"
)

// CartChangedData is the payload for a cart.changed event. Count is the
// navbar badge value after the mutation.
type CartChangedData struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
	Reason string `json:"reason"`
}

// Reasons carried by cart.changed.
const (
	ReasonItemAdded       = "item_added"
	ReasonQuantityChanged = "quantity_changed"
	ReasonItemRemoved     = "item_removed"
	ReasonMovedToWishlist = "moved_to_wishlist"
	ReasonCleared         = "cleared"
	ReasonCheckedOut      = "checked_out"
)

// OrderSubmittedData is the payload for an order.submitted event.
type OrderSubmittedData struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	UserEmail   string    `json:"user_email"`
	UserName    string    `json:"user_name"`
	ItemCount   int       `json:"item_count"`
	TotalAmount string    `json:"total_amount"`
	Summary     string    `json:"summary"`
	WhatsAppURL string    `json:"whatsapp_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishCartChanged announces the new badge count for userID.
func (p *Producer) PublishCartChanged(ctx context.Context, userID string, count int, reason string) error {
	data := CartChangedData{UserID: userID, Count: count, Reason: reason}

	event, err := pkgkafka.NewEvent(ctx, TopicCartChanged, userID, AggregateTypeCart, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create cart.changed event: %w", err)
	}
	if err := p.publisher.Publish(ctx, TopicCartChanged, event); err != nil {
		return fmt.Errorf("publish cart.changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.changed event",
		slog.String("user_id", userID),
		slog.Int("count", count),
		slog.String("reason", reason),
	)
	return nil
}

// PublishOrderSubmitted hands a recorded order to downstream consumers.
func (p *Producer) PublishOrderSubmitted(ctx context.Context, order *domain.Order, summary, whatsappURL string) error {
	data := OrderSubmittedData{
		OrderID:     order.OrderID,
		UserID:      order.UserID,
		UserEmail:   order.UserEmail,
		UserName:    order.UserName,
		ItemCount:   order.Totals().ItemCount,
		TotalAmount: order.TotalAmount.String(),
		Summary:     summary,
		WhatsAppURL: whatsappURL,
		CreatedAt:   order.CreatedAt,
	}

	event, err := pkgkafka.NewEvent(ctx, TopicOrderSubmitted, order.OrderID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order.submitted event: %w", err)
	}
	event.WithMetadata("user_id", order.UserID)

	if err := p.publisher.Publish(ctx, TopicOrderSubmitted, event); err != nil {
		return fmt.Errorf("publish order.submitted event: %w", err)
	}

	p.logger.InfoContext(ctx, "published order.submitted event",
		slog.String("order_id", order.OrderID),
		slog.String("event_id", event.EventID),
	)
	return nil
}
