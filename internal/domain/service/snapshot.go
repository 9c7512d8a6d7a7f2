package service

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// SnapshotBuilder – domain service for tamper-evident settlement snapshots
// ---------------------------------------------------------------------------

// SnapshotBuilder seals a plan's state into a SettlementSnapshot.
type SnapshotBuilder struct {
	redacted map[string]struct{}
}

// SnapshotOption configures a SnapshotBuilder.
type SnapshotOption func(*SnapshotBuilder)

// WithRedactedFields omits the named members from the canonical form, for
// example "tenantId" when snapshots leave the tenant boundary.
func WithRedactedFields(names ...string) SnapshotOption {
	return func(b *SnapshotBuilder) {
		for _, n := range names {
			b.redacted[n] = struct{}{}
		}
	}
}

// NewSnapshotBuilder returns a new builder instance.
func NewSnapshotBuilder(opts ...SnapshotOption) *SnapshotBuilder {
	b := &SnapshotBuilder{redacted: make(map[string]struct{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Canonicalize returns the canonical serialization of the plan. Two plans in
// the same ledger state always produce byte-identical output.
func (b *SnapshotBuilder) Canonicalize(plan model.Plan) string {
	return canonicalPlan(plan, b.redacted)
}

// Build seals the plan's canonical state with its SHA-256 content hash.
func (b *SnapshotBuilder) Build(plan model.Plan, reason valueobject.SnapshotReason, at time.Time) model.SettlementSnapshot {
	canonical := b.Canonicalize(plan)
	return model.NewSettlementSnapshot(plan.ID(), reason, canonical, ContentHash(canonical), at)
}

// Verify reports whether the snapshot's stored hash still matches its
// canonical state.
func (b *SnapshotBuilder) Verify(snapshot model.SettlementSnapshot) bool {
	return ContentHash(snapshot.CanonicalState()) == snapshot.ContentHash()
}

// ContentHash is the lowercase hex SHA-256 of the canonical state.
func ContentHash(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
