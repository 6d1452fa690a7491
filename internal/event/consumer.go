package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/siyana/storefront/pkg/kafka"
)

// ConsumerGroupID is the group the merchant notifier joins.
const ConsumerGroupID = "storefront-merchant-notifier"

// Notifier delivers a submitted order to the merchant.
type Notifier interface {
	NotifyOrderSubmitted(ctx context.Context, order OrderSubmittedData) error
}

// ConsumerHandler routes events to the merchant notifier.
type ConsumerHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler.
func NewConsumerHandler(notifier Notifier, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{notifier: notifier, logger: logger}
}

// Handle dispatches on the event type. Unknown types are logged and acked.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicOrderSubmitted:
		return h.handleOrderSubmitted(ctx, event)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (h *ConsumerHandler) handleOrderSubmitted(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderSubmittedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode order.submitted: %w", err)
	}

	if err := h.notifier.NotifyOrderSubmitted(ctx, data); err != nil {
		return fmt.Errorf("notify merchant of order %s: %w", data.OrderID, err)
	}

	h.logger.InfoContext(ctx, "merchant notified",
		slog.String("order_id", data.OrderID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// NewOrderSubmittedConsumer builds the consumer for order.submitted, with
// duplicate deliveries filtered through store.
func NewOrderSubmittedConsumer(brokers []string, handler *ConsumerHandler, store pkgkafka.IdempotencyStore, logger *slog.Logger) *pkgkafka.Consumer {
	cfg := pkgkafka.ConsumerConfig{
		Brokers:  brokers,
		GroupID:  ConsumerGroupID,
		Topic:    TopicOrderSubmitted,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	return pkgkafka.NewConsumer(cfg, pkgkafka.IdempotentHandler(store, handler.Handle, logger), logger)
}
