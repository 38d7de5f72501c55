package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/storage"
)

// SaveEvent persists an activity event and populates its Seq.
// Uses the composite key (actor_id, id) for idempotency and returns
// storage.ErrDuplicate when the key already exists.
func (a *Adapter) SaveEvent(ctx context.Context, event *v1.ActivityEvent) error {
	var seq int64
	err := a.stmtSaveActivityEvent.QueryRowContext(ctx,
		event.ID,
		event.ProductID,
		event.ActorID,
		string(event.Kind),
		event.OccurredAt,
		event.RecordedAt,
	).Scan(&seq)

	if errors.Is(err, sql.ErrNoRows) {
		// ON CONFLICT DO NOTHING - event already exists
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to save activity event: %w", err)
	}

	event.Seq = seq

	slog.Debug("[Postgres] Saved activity event",
		"event_id", event.ID,
		"actor_id", event.ActorID,
		"product_id", event.ProductID,
		"kind", event.Kind,
		"seq", seq)
	return nil
}

// CountEventsByProductSince aggregates the trending window: events with
// occurred_at >= since, grouped by product, busiest products first.
func (a *Adapter) CountEventsByProductSince(ctx context.Context, since time.Time, limit int) ([]v1.ProductActivityCount, error) {
	rows, err := a.stmtCountEventsByProduct.QueryContext(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity counts: %w", err)
	}
	defer rows.Close()

	var counts []v1.ProductActivityCount
	for rows.Next() {
		var c v1.ProductActivityCount
		if err := rows.Scan(&c.ProductID, &c.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan activity count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity counts: %w", err)
	}
	return counts, nil
}
