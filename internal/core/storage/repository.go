package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrDuplicate is returned when an activity event with the same
// (actor_id, id) already exists.
var ErrDuplicate = errors.New("activity event already exists")

// ProductStore defines the read operations the engine performs against
// the product catalog, plus the single write it is allowed: the cached
// popularity score and the behavioral counters.
type ProductStore interface {
	// GetProduct fetches one product by id. Returns ErrNotFound if absent.
	GetProduct(ctx context.Context, id string) (*v1.Product, error)

	// ListActiveByPopularity returns active products ordered by cached
	// popularity score descending (ties: created_at desc, id asc).
	// offset/limit paginate the full ranking.
	ListActiveByPopularity(ctx context.Context, limit, offset int) ([]*v1.Product, error)

	// CountActive returns the number of active products, for pagination
	// totals over the popularity ranking.
	CountActive(ctx context.Context) (int, error)

	// ListActiveByCategories returns active products in any of the given
	// categories, excluding excludeIDs, ordered by cached popularity score
	// descending. Used as the personalization candidate pool.
	ListActiveByCategories(ctx context.Context, categoryIDs, excludeIDs []string, limit int) ([]*v1.Product, error)

	// ListActiveByPriceBand returns active products in one category whose
	// price lies in [minPrice, maxPrice] inclusive, excluding excludeID,
	// ordered by cached popularity score descending.
	ListActiveByPriceBand(ctx context.Context, categoryID, excludeID string, minPrice, maxPrice decimal.Decimal, limit int) ([]*v1.Product, error)

	// ListProductsAfterCursor pages through all products in stable id
	// order for batch recompute. cursor="" means from the beginning.
	ListProductsAfterCursor(ctx context.Context, cursor string, limit int) ([]*v1.Product, error)

	// ListProductsByIDs fetches the given products, preserving no
	// particular order. Unknown ids are silently skipped.
	ListProductsByIDs(ctx context.Context, ids []string) ([]*v1.Product, error)

	// UpdatePopularityScore writes back the cached score for one product.
	UpdatePopularityScore(ctx context.Context, productID string, score float64) error

	// IncrementCounter bumps the behavioral counter matching kind.
	// Returns ErrNotFound for an unknown product.
	IncrementCounter(ctx context.Context, productID string, kind v1.ActivityKind) error
}

// ActivityStore defines the append-only activity event log.
type ActivityStore interface {
	// SaveEvent persists an event and populates its Seq.
	// Returns ErrDuplicate when the (actor_id, id) key already exists.
	SaveEvent(ctx context.Context, event *v1.ActivityEvent) error

	// CountEventsByProductSince groups events with occurred_at >= since by
	// product and returns per-product counts ordered by count descending.
	CountEventsByProductSince(ctx context.Context, since time.Time, limit int) ([]v1.ProductActivityCount, error)
}

// InterestStore reads an actor's category affinity profile.
// The profile is maintained by an external behavioral pipeline.
type InterestStore interface {
	// ListInterests returns the actor's interests ordered by affinity
	// score descending. An empty slice means cold start.
	ListInterests(ctx context.Context, actorID string) ([]v1.UserInterest, error)
}

// OrderStore reads an actor's purchase history.
type OrderStore interface {
	// PurchasedProductIDs returns the distinct product ids the actor has
	// already purchased.
	PurchasedProductIDs(ctx context.Context, actorID string) ([]string, error)
}
