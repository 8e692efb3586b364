package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promarket/internal/domain"
	"github.com/utafrali/promarket/internal/slot/memory"
	"github.com/utafrali/promarket/internal/store"
	pkgkafka "github.com/utafrali/promarket/pkg/kafka"
	"github.com/utafrali/promarket/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func TestPublishCartUpdated(t *testing.T) {
	pub := new(mockPublisher)
	var sent *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicCartUpdated, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)
	p := NewProducer(pub, logger.Discard())
	snap := domain.NewSnapshot([]domain.LineItem{{ID: "1", Name: "Headphones", Price: 10, Quantity: 2}})
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	require.NoError(t, p.PublishCartUpdated(ctx, "sess-1", store.OpAdd, snap))

	require.NotNil(t, sent)
	assert.Equal(t, "sess-1", sent.AggregateID)
	assert.Equal(t, AggregateTypeCart, sent.AggregateType)
	assert.Equal(t, SourceStorefront, sent.Source)
	assert.Equal(t, "corr-1", sent.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, sent.Decode(&data))
	assert.Equal(t, CartUpdatedData{
		SessionID: "sess-1",
		Op:        store.OpAdd,
		Items:     []CartItemData{{ID: "1", Name: "Headphones", Price: 10, Quantity: 2}},
		ItemCount: 2,
		Subtotal:  20,
	}, data)
}

func TestPublishCartCleared(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, TopicCartCleared, mock.Anything).Return(nil)
	p := NewProducer(pub, logger.Discard())

	require.NoError(t, p.PublishCartCleared(context.Background(), "sess-1"))

	pub.AssertExpectations(t)
}

func TestPublish_Error(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	p := NewProducer(pub, logger.Discard())

	err := p.PublishCartCleared(context.Background(), "sess-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestListener_FollowsStore(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, TopicCartUpdated, mock.Anything).Return(nil).Times(2)
	pub.On("Publish", mock.Anything, TopicCartCleared, mock.Anything).Return(nil).Once()
	p := NewProducer(pub, logger.Discard())
	s := store.Open(context.Background(), memory.NewSlot(), "promarket_cart:sess-1", store.WithLogger(logger.Discard()))
	s.Subscribe(p.Listener("sess-1"))
	ctx := context.Background()

	s.Add(ctx, domain.Product{ID: "1", Name: "Headphones", Price: 10})
	s.ChangeQuantity(ctx, "1", +1)
	s.ChangeQuantity(ctx, "missing", +1)
	s.Clear(ctx)

	pub.AssertExpectations(t)
}

func TestListener_PublishFailureDoesNotAffectCart(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	p := NewProducer(pub, logger.Discard())
	s := store.Open(context.Background(), memory.NewSlot(), "promarket_cart:sess-2", store.WithLogger(logger.Discard()))
	s.Subscribe(p.Listener("sess-2"))

	snap := s.Add(context.Background(), domain.Product{ID: "1", Price: 10})

	assert.Equal(t, 1, snap.ItemCount)
	assert.Equal(t, 1, s.Snapshot().ItemCount)
}
