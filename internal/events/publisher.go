package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/price-tracker/internal/database"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeCacheInvalidated is published after a product document changes.
	EventTypeCacheInvalidated EventType = "CACHE_INVALIDATED"

	aggregateProduct = "product"
)

// Invalidation lists the rendered paths that must be refreshed after a save.
type Invalidation struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	ProductID string    `json:"productId"`
	URL       string    `json:"url"`
	Paths     []string  `json:"paths"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductInvalidation covers the product detail page and the site listing.
func ProductInvalidation(productID, url string) *Invalidation {
	return &Invalidation{
		ProductID: productID,
		URL:       url,
		Paths:     []string{"/products/" + productID, "/"},
	}
}

func (inv *Invalidation) fill() {
	if inv.EventID == "" {
		inv.EventID = uuid.New().String()
	}
	if inv.EventType == "" {
		inv.EventType = string(EventTypeCacheInvalidated)
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now().UTC()
	}
}

func (inv *Invalidation) outboxEvent() (*database.OutboxEvent, error) {
	inv.fill()

	data, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &database.OutboxEvent{
		AggregateType: aggregateProduct,
		AggregateID:   inv.ProductID,
		EventType:     inv.EventType,
		Payload:       data,
		TargetStream:  database.DefaultTargetStream,
	}, nil
}

type Publisher interface {
	PublishInvalidation(ctx context.Context, inv *Invalidation) error
}

// StreamPublisher writes invalidations straight to the Redis stream.
type StreamPublisher struct {
	redis  database.RedisClient
	logger *slog.Logger
}

func NewStreamPublisher(client database.RedisClient, logger *slog.Logger) *StreamPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamPublisher{
		redis:  client,
		logger: logger.With("component", "event_publisher", "mode", "stream"),
	}
}

func (p *StreamPublisher) PublishInvalidation(ctx context.Context, inv *Invalidation) error {
	event, err := inv.outboxEvent()
	if err != nil {
		return err
	}
	id, err := uuid.Parse(inv.EventID)
	if err != nil {
		return fmt.Errorf("%w: event id %q: %v", database.ErrInvalidEvent, inv.EventID, err)
	}
	event.ID = id
	event.CreatedAt = inv.Timestamp

	args, err := database.StreamArgs(event)
	if err != nil {
		return err
	}

	streamID, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("invalidation published",
		"event_id", inv.EventID,
		"product_id", inv.ProductID,
		"stream_id", streamID,
		"paths", inv.Paths)

	return nil
}

type TxRunner interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type OutboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// OutboxPublisher stores invalidations in the transactional outbox; the
// database.Relay forwards them to Redis.
type OutboxPublisher struct {
	db     TxRunner
	outbox OutboxWriter
	logger *slog.Logger
}

func NewOutboxPublisher(db *database.DB, logger *slog.Logger) *OutboxPublisher {
	return newOutboxPublisher(db, database.NewOutboxRepository(db), logger)
}

func newOutboxPublisher(db TxRunner, outbox OutboxWriter, logger *slog.Logger) *OutboxPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxPublisher{
		db:     db,
		outbox: outbox,
		logger: logger.With("component", "event_publisher", "mode", "outbox"),
	}
}

func (p *OutboxPublisher) PublishInvalidation(ctx context.Context, inv *Invalidation) error {
	event, err := inv.outboxEvent()
	if err != nil {
		return err
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		return p.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("invalidation stored in outbox",
		"event_id", inv.EventID,
		"product_id", inv.ProductID,
		"outbox_id", event.ID)

	return nil
}

// Discard drops invalidations. Used when no stream is configured.
type Discard struct{}

func (Discard) PublishInvalidation(context.Context, *Invalidation) error { return nil }
