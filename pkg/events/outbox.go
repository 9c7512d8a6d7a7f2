package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Header names carried on every relayed event.
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderTenantID      = "tenant_id"
	HeaderAggregateType = "aggregate_type"
)

// OutboxEntry is a domain event persisted in the same transaction as the
// aggregate change that raised it. PublishedAt stays nil until relayed.
type OutboxEntry struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	TenantID      string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewOutboxEntry serialises event as JSON for the outbox.
func NewOutboxEntry(event DomainEvent) (OutboxEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("events: marshal %s %s: %w", event.EventType(), event.EventID(), err)
	}
	return OutboxEntry{
		ID:            event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		EventType:     event.EventType(),
		TenantID:      event.TenantID(),
		Payload:       payload,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// Headers returns the broker headers consumers use to route and dedupe.
func (e OutboxEntry) Headers() map[string]string {
	return map[string]string{
		HeaderEventID:       e.ID,
		HeaderEventType:     e.EventType,
		HeaderTenantID:      e.TenantID,
		HeaderAggregateType: e.AggregateType,
	}
}

// OutboxRepository reads pending rows oldest first and acknowledges them.
type OutboxRepository interface {
	FetchUnpublished(ctx context.Context, batchSize int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}
