package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/promarket/internal/domain"
	"github.com/utafrali/promarket/internal/store"
	pkgkafka "github.com/utafrali/promarket/pkg/kafka"
)

// Kafka topics for cart events.
const (
	TopicCartUpdated = "storefront.cart.updated"
	TopicCartCleared = "storefront.cart.cleared"
)

// AggregateTypeCart is the aggregate type of cart events.
const AggregateTypeCart = "cart"

// SourceStorefront identifies events published by this service.
const SourceStorefront = "storefront"

func cartAggregate(sessionID string) pkgkafka.Aggregate {
	return pkgkafka.Aggregate{ID: sessionID, Type: AggregateTypeCart}
}

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	SessionID string         `json:"session_id"`
	Op        string         `json:"op"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Subtotal  float64        `json:"subtotal"`
}

// CartItemData is one line item within cart events.
type CartItemData struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CartClearedData is the payload of a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// Publisher sends an event envelope to a topic. *pkgkafka.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a cart event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// Listener returns a store listener that publishes every mutation of the
// session's cart. Publish failures are logged and dropped.
func (p *Producer) Listener(sessionID string) store.Listener {
	return func(ctx context.Context, op string, snap domain.Snapshot) {
		var err error
		if op == store.OpClear {
			err = p.PublishCartCleared(ctx, sessionID)
		} else {
			err = p.PublishCartUpdated(ctx, sessionID, op, snap)
		}
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to publish cart event",
				slog.String("session_id", sessionID),
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
		}
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID, op string, snap domain.Snapshot) error {
	items := make([]CartItemData, len(snap.Items))
	for i, item := range snap.Items {
		items[i] = CartItemData{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}

	data := CartUpdatedData{
		SessionID: sessionID,
		Op:        op,
		Items:     items,
		ItemCount: snap.ItemCount,
		Subtotal:  snap.Subtotal,
	}

	event, err := pkgkafka.NewEvent(ctx, TopicCartUpdated, SourceStorefront, cartAggregate(sessionID), data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.publisher.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", sessionID),
		slog.Int("item_count", snap.ItemCount),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	event, err := pkgkafka.NewEvent(ctx, TopicCartCleared, SourceStorefront, cartAggregate(sessionID), CartClearedData{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.publisher.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("session_id", sessionID),
	)
	return nil
}
