package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// SettlementSnapshot is an append-only, hash-sealed record of a plan's state
// at a point in time. Once written it is never changed.
type SettlementSnapshot struct {
	id             string
	planID         string
	reason         valueobject.SnapshotReason
	canonicalState string
	contentHash    string
	createdAt      time.Time
}

// NewSettlementSnapshot seals a canonical state with its content hash.
func NewSettlementSnapshot(
	planID string,
	reason valueobject.SnapshotReason,
	canonicalState, contentHash string,
	at time.Time,
) SettlementSnapshot {
	return SettlementSnapshot{
		id:             uuid.NewString(),
		planID:         planID,
		reason:         reason,
		canonicalState: canonicalState,
		contentHash:    contentHash,
		createdAt:      at.UTC(),
	}
}

// ReconstructSettlementSnapshot rebuilds a snapshot from persistence.
func ReconstructSettlementSnapshot(
	id, planID string,
	reason valueobject.SnapshotReason,
	canonicalState, contentHash string,
	createdAt time.Time,
) SettlementSnapshot {
	return SettlementSnapshot{
		id:             id,
		planID:         planID,
		reason:         reason,
		canonicalState: canonicalState,
		contentHash:    contentHash,
		createdAt:      createdAt,
	}
}

func (s SettlementSnapshot) ID() string                         { return s.id }
func (s SettlementSnapshot) PlanID() string                     { return s.planID }
func (s SettlementSnapshot) Reason() valueobject.SnapshotReason { return s.reason }
func (s SettlementSnapshot) CanonicalState() string             { return s.canonicalState }
func (s SettlementSnapshot) ContentHash() string                { return s.contentHash }
func (s SettlementSnapshot) CreatedAt() time.Time               { return s.createdAt }
func (s SettlementSnapshot) IsZero() bool                       { return s.id == "" }
