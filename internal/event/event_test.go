package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/siyana/storefront/internal/domain"
	pkgkafka "github.com/siyana/storefront/pkg/kafka"
	"github.com/siyana/storefront/pkg/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []*pkgkafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyOrderSubmitted(ctx context.Context, order OrderSubmittedData) error {
	return m.Called(ctx, order).Error(0)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "storefront.cart.changed", TopicCartChanged)
	assert.Equal(t, "storefront.order.submitted", TopicOrderSubmitted)
}

func TestProducer_PublishCartChanged(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, discardLogger())

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, p.PublishCartChanged(ctx, "u1", 3, ReasonItemAdded))

	require.Len(t, pub.events, 1)
	assert.Equal(t, TopicCartChanged, pub.topics[0])
	ev := pub.events[0]
	assert.Equal(t, "u1", ev.AggregateID)
	assert.Equal(t, "corr-1", ev.CorrelationID)

	var data CartChangedData
	require.NoError(t, ev.UnmarshalData(&data))
	assert.Equal(t, CartChangedData{UserID: "u1", Count: 3, Reason: ReasonItemAdded}, data)
}

func TestProducer_PublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := NewProducer(pub, discardLogger())

	err := p.PublishCartChanged(context.Background(), "u1", 0, ReasonCleared)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestProducer_PublishOrderSubmitted(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, discardLogger())

	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	order := domain.NewOrder("ORD-1-ABCDEFGHI", domain.Actor{UserID: "u1", Email: "a@b.c", Name: "Asha"},
		[]domain.CartItem{{ID: "A", Name: "Ring", Price: decimal.NewFromInt(5000), Quantity: 2}}, now)

	require.NoError(t, p.PublishOrderSubmitted(context.Background(), order, "summary text", "https://wa.me/91?text=x"))

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "ORD-1-ABCDEFGHI", ev.AggregateID)
	assert.Equal(t, "u1", ev.Metadata["user_id"])

	var data OrderSubmittedData
	require.NoError(t, ev.UnmarshalData(&data))
	assert.Equal(t, 2, data.ItemCount)
	assert.True(t, decimal.NewFromInt(12000).Equal(decimal.RequireFromString(data.TotalAmount)), data.TotalAmount)
	assert.Equal(t, "summary text", data.Summary)
	assert.True(t, now.Equal(data.CreatedAt))
}

func orderEvent(t *testing.T, data OrderSubmittedData) *pkgkafka.Event {
	t.Helper()
	ev, err := pkgkafka.NewEvent(context.Background(), TopicOrderSubmitted, data.OrderID, AggregateTypeOrder, SourceStorefront, data)
	require.NoError(t, err)
	return ev
}

func TestConsumerHandler_OrderSubmitted(t *testing.T) {
	n := &mockNotifier{}
	h := NewConsumerHandler(n, discardLogger())
	data := OrderSubmittedData{OrderID: "ORD-1", UserID: "u1", Summary: "hi"}

	n.On("NotifyOrderSubmitted", mock.Anything, mock.MatchedBy(func(d OrderSubmittedData) bool {
		return d.OrderID == "ORD-1" && d.Summary == "hi"
	})).Return(nil).Once()

	require.NoError(t, h.Handle(context.Background(), orderEvent(t, data)))
	n.AssertExpectations(t)
}

func TestConsumerHandler_NotifierFailureIsReturned(t *testing.T) {
	n := &mockNotifier{}
	h := NewConsumerHandler(n, discardLogger())

	n.On("NotifyOrderSubmitted", mock.Anything, mock.Anything).Return(errors.New("503")).Once()

	err := h.Handle(context.Background(), orderEvent(t, OrderSubmittedData{OrderID: "ORD-2"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORD-2")
}

func TestConsumerHandler_BadPayload(t *testing.T) {
	n := &mockNotifier{}
	h := NewConsumerHandler(n, discardLogger())

	ev, err := pkgkafka.NewEvent(context.Background(), TopicOrderSubmitted, "x", AggregateTypeOrder, SourceStorefront, "not an object")
	require.NoError(t, err)

	assert.Error(t, h.Handle(context.Background(), ev))
	n.AssertNotCalled(t, "NotifyOrderSubmitted", mock.Anything, mock.Anything)
}

func TestConsumerHandler_UnknownTypeIsAcked(t *testing.T) {
	n := &mockNotifier{}
	h := NewConsumerHandler(n, discardLogger())

	ev, err := pkgkafka.NewEvent(context.Background(), "storefront.something.else", "x", "x", SourceStorefront, map[string]string{})
	require.NoError(t, err)

	assert.NoError(t, h.Handle(context.Background(), ev))
	n.AssertNotCalled(t, "NotifyOrderSubmitted", mock.Anything, mock.Anything)
}

func TestConsumerHandler_DeduplicatedThroughIdempotentHandler(t *testing.T) {
	n := &mockNotifier{}
	h := NewConsumerHandler(n, discardLogger())
	n.On("NotifyOrderSubmitted", mock.Anything, mock.Anything).Return(nil).Once()

	handle := pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(time.Hour), h.Handle, discardLogger())
	ev := orderEvent(t, OrderSubmittedData{OrderID: "ORD-3"})

	require.NoError(t, handle(context.Background(), ev))
	require.NoError(t, handle(context.Background(), ev))
	n.AssertNumberOfCalls(t, "NotifyOrderSubmitted", 1)
}
