package postgres

import (
	"context"
	"fmt"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
)

// ListInterests returns the actor's category affinity rows ordered by
// affinity score descending. An empty result means cold start.
func (a *Adapter) ListInterests(ctx context.Context, actorID string) ([]v1.UserInterest, error) {
	rows, err := a.stmtListInterests.QueryContext(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interests for %s: %w", actorID, err)
	}
	defer rows.Close()

	var interests []v1.UserInterest
	for rows.Next() {
		var in v1.UserInterest
		if err := rows.Scan(&in.ActorID, &in.CategoryID, &in.AffinityScore); err != nil {
			return nil, fmt.Errorf("failed to scan interest row: %w", err)
		}
		interests = append(interests, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interests: %w", err)
	}
	return interests, nil
}

// PurchasedProductIDs returns the distinct product ids the actor has
// already purchased. Used to exclude owned products from personalization.
func (a *Adapter) PurchasedProductIDs(ctx context.Context, actorID string) ([]string, error) {
	rows, err := a.stmtPurchasedProductIDs.QueryContext(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases for %s: %w", actorID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan purchase row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}
	return ids, nil
}
