package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planActivated struct {
	BaseEvent
	InstallmentCount int `json:"installment_count"`
}

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewBaseEvent("bnpl.plan.activated", "plan-123", "Plan", "tenant-456")
	after := time.Now().UTC()

	assert.NotEmpty(t, event.EventID())
	assert.Equal(t, "bnpl.plan.activated", event.EventType())
	assert.Equal(t, "plan-123", event.AggregateID())
	assert.Equal(t, "Plan", event.AggregateType())
	assert.Equal(t, "tenant-456", event.TenantID())
	assert.False(t, event.OccurredAt().Before(before))
	assert.False(t, event.OccurredAt().After(after))
}

func TestNewBaseEventAt_NormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	at := time.Date(2024, 1, 1, 3, 0, 0, 0, loc)

	event := NewBaseEventAt("bnpl.plan.created", "plan-1", "Plan", "t", at)

	assert.Equal(t, time.UTC, event.OccurredAt().Location())
	assert.True(t, event.OccurredAt().Equal(at))
}

func TestBaseEventImplementsDomainEvent(t *testing.T) {
	var _ DomainEvent = BaseEvent{}
	var _ DomainEvent = planActivated{}
}

func TestNewOutboxEntry(t *testing.T) {
	event := planActivated{
		BaseEvent:        NewBaseEvent("bnpl.plan.activated", "plan-789", "Plan", "tenant-012"),
		InstallmentCount: 4,
	}

	entry, err := NewOutboxEntry(event)
	require.NoError(t, err)

	assert.Equal(t, event.EventID(), entry.ID)
	assert.Equal(t, "plan-789", entry.AggregateID)
	assert.Equal(t, "Plan", entry.AggregateType)
	assert.Equal(t, "bnpl.plan.activated", entry.EventType)
	assert.Equal(t, "tenant-012", entry.TenantID)
	assert.Equal(t, event.OccurredAt(), entry.CreatedAt)
	assert.Nil(t, entry.PublishedAt)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(entry.Payload, &parsed))
	assert.Equal(t, "plan-789", parsed["aggregate_id"])
	assert.Equal(t, "bnpl.plan.activated", parsed["event_type"])
	assert.EqualValues(t, 4, parsed["installment_count"])
}

func TestOutboxEntryHeaders(t *testing.T) {
	entry := OutboxEntry{ID: "evt-1", EventType: "bnpl.plan.completed", TenantID: "tenant-1", AggregateType: "Plan"}

	assert.Equal(t, map[string]string{
		"event_id":       "evt-1",
		"event_type":     "bnpl.plan.completed",
		"tenant_id":      "tenant-1",
		"aggregate_type": "Plan",
	}, entry.Headers())
}
