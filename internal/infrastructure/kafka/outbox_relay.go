package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/pkg/events"
	pkgkafka "github.com/bibbank/bnpl/pkg/kafka"
)

// MessagePublisher is satisfied by *pkgkafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// OutboxRelay forwards committed outbox rows to the events topic.
// Delivery is at least once: a crash between publish and acknowledge
// republishes the batch, and consumers dedupe on the event_id header.
type OutboxRelay struct {
	outbox    events.OutboxRepository
	producer  MessagePublisher
	clock     port.Clock
	logger    *slog.Logger
	topic     string
	batchSize int
	interval  time.Duration
}

// NewOutboxRelay creates a relay publishing to topic.
func NewOutboxRelay(
	outbox events.OutboxRepository,
	producer MessagePublisher,
	clock port.Clock,
	topic string,
	batchSize int,
	interval time.Duration,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		producer:  producer,
		clock:     clock,
		logger:    logger,
		topic:     topic,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run polls the outbox until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay starting", "topic", r.topic, "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
			// Drain whole batches before waiting for the next tick.
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries it delivered.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	messages := make([]pkgkafka.Message, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		r.logger.DebugContext(ctx, "publishing domain event",
			"event_type", e.EventType,
			"aggregate_id", e.AggregateID,
			"tenant_id", e.TenantID,
			"topic", r.topic,
			"payload_size", len(e.Payload),
		)
		messages = append(messages, pkgkafka.Message{
			Key:     []byte(e.AggregateID),
			Value:   e.Payload,
			Headers: e.Headers(),
		})
		ids = append(ids, e.ID)
	}

	if err := r.producer.Publish(ctx, r.topic, messages...); err != nil {
		return 0, fmt.Errorf("failed to publish events to topic %s: %w", r.topic, err)
	}
	if err := r.outbox.MarkPublished(ctx, ids, r.clock.Now()); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	return len(entries), nil
}
