package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/siyana/storefront/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type orderPayload struct {
	OrderID string `json:"order_id"`
	Total   string `json:"total"`
}

func newOrderEvent(t *testing.T, ctx context.Context) *Event {
	t.Helper()
	event, err := NewEvent(ctx, "order.submitted", "ORD-1", "order", "storefront",
		orderPayload{OrderID: "ORD-1", Total: "12980"})
	require.NoError(t, err)
	return event
}

// ---------------------------------------------------------------------------
// Event
// ---------------------------------------------------------------------------

func TestNewEvent_Fields(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	event := newOrderEvent(t, ctx)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "order.submitted", event.EventType)
	assert.Equal(t, "ORD-1", event.AggregateID)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, "corr-9", event.CorrelationID)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var p orderPayload
	require.NoError(t, event.UnmarshalData(&p))
	assert.Equal(t, "12980", p.Total)
}

func TestNewEvent_UnserializablePayload(t *testing.T) {
	_, err := NewEvent(context.Background(), "cart.changed", "u1", "cart", "storefront", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart.changed")
}

func TestUnmarshalEvent(t *testing.T) {
	event := newOrderEvent(t, context.Background())
	event.WithMetadata("channel", "whatsapp")
	raw, err := event.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, "whatsapp", got.Metadata["channel"])

	_, err = UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)

	_, err = UnmarshalEvent([]byte(`{"event_id":"x"}`))
	assert.ErrorContains(t, err, "missing event_type")
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "storefront.order.submitted", Topic("order", "submitted"))
	assert.Equal(t, "storefront.dlq.storefront.order.submitted", DLQTopic(Topic("order", "submitted")))
}

// ---------------------------------------------------------------------------
// Producer
// ---------------------------------------------------------------------------

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	event := newOrderEvent(t, ctx)
	require.NoError(t, p.Publish(ctx, "storefront.order.submitted", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "storefront.order.submitted", msg.Topic)
	assert.Equal(t, "ORD-1", string(msg.Key))
	assert.Equal(t, "order.submitted", header(msg, "event_type"))
	assert.Equal(t, "corr-1", header(msg, "correlation_id"))

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_Publish_WriterError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("leader not available")}, logger: testLogger()}

	err := p.Publish(context.Background(), "storefront.cart.changed", newOrderEvent(t, context.Background()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storefront.cart.changed")
}

func TestProducer_InjectsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}
	require.NoError(t, p.Publish(ctx, "t", newOrderEvent(t, ctx)))

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(w.msgs[0], "traceparent"))

	extracted := trace.SpanContextFromContext(extractTraceContext(context.Background(), &w.msgs[0]))
	assert.Equal(t, traceID, extracted.TraceID())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{Logger: testLogger()}
	assert.NoError(t, p.Publish(context.Background(), "t", newOrderEvent(t, context.Background())))
}

// ---------------------------------------------------------------------------
// Header carrier
// ---------------------------------------------------------------------------

func TestKafkaHeaderCarrier(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "existing", Value: []byte("v1")}}}
	c := NewHeaderCarrier(&msg)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Empty(t, c.Get("missing"))

	c.Set("existing", "v2")
	c.Set("new", "v3")
	assert.Equal(t, "v2", c.Get("existing"))
	assert.ElementsMatch(t, []string{"existing", "new"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

// ---------------------------------------------------------------------------
// DLQ
// ---------------------------------------------------------------------------

func TestDLQProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	d := &DLQProducer{writer: w, logger: testLogger()}

	orig := kafka.Message{
		Topic: "storefront.order.submitted", Partition: 2, Offset: 41,
		Key: []byte("ORD-1"), Value: []byte("{}"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("order.submitted")}},
	}
	require.NoError(t, d.Publish(context.Background(), orig, errors.New("cloud api 500"), "merchant-notifier"))

	require.Len(t, w.msgs, 1)
	got := w.msgs[0]
	assert.Equal(t, "storefront.dlq.storefront.order.submitted", got.Topic)
	assert.Equal(t, "order.submitted", header(got, "event_type"))
	assert.Equal(t, "2", header(got, "dlq.original_partition"))
	assert.Equal(t, "41", header(got, "dlq.original_offset"))
	assert.Equal(t, "merchant-notifier", header(got, "dlq.consumer_group"))
	assert.Equal(t, "cloud api 500", header(got, "dlq.error"))
}
