package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/internal/domain/service"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// appendSnapshot seals the plan's state and appends it unless the latest
// snapshot already carries the same hash. It returns the hash of the plan's
// current state either way.
func appendSnapshot(
	ctx context.Context,
	tx port.LedgerTx,
	builder *service.SnapshotBuilder,
	plan model.Plan,
	reason valueobject.SnapshotReason,
	at time.Time,
) (string, error) {
	snap := builder.Build(plan, reason, at)

	latest, err := tx.LatestSnapshot(ctx, plan.ID())
	if err != nil {
		return "", fmt.Errorf("latest snapshot: %w", err)
	}
	if !latest.IsZero() && latest.ContentHash() == snap.ContentHash() {
		return snap.ContentHash(), nil
	}

	if err := tx.AppendSnapshot(ctx, snap); err != nil {
		return "", fmt.Errorf("append snapshot: %w", err)
	}
	addInt(ctx, metrics().snapshotsWritten, 1, attribute.String("reason", reason.String()))
	return snap.ContentHash(), nil
}
