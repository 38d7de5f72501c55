package v1

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ActivityKind enumerates the behavioral signals the engine ranks on.
type ActivityKind string

const (
	ActivityView     ActivityKind = "view"
	ActivityCartAdd  ActivityKind = "cart_add"
	ActivityPurchase ActivityKind = "purchase"
)

// ValidActivityKind reports whether k is one of the known activity kinds.
func ValidActivityKind(k ActivityKind) bool {
	switch k {
	case ActivityView, ActivityCartAdd, ActivityPurchase:
		return true
	}
	return false
}

// Reason identifies which source produced a recommendation candidate.
// It drives dedup priority in the mixed feed and UI labeling downstream.
type Reason string

const (
	ReasonPopular      Reason = "popular"
	ReasonTrending     Reason = "trending"
	ReasonPersonalized Reason = "personalized"
	ReasonSimilar      Reason = "similar"
)

// ActorGuest is the opaque actor id used for anonymous sessions.
// Actor resolution happens upstream; this engine never authenticates.
const ActorGuest = "guest"

// Counters are the behavioral tallies a product accumulates over its lifetime.
// Zero values are meaningful: a product with no activity scores zero.
type Counters struct {
	ViewCount     int64 `json:"view_count"`
	CartAddCount  int64 `json:"cart_add_count"`
	PurchaseCount int64 `json:"purchase_count"`
}

// Product is the catalog entity as this engine sees it.
//
// PopularityScore is a cached derivative of Counters + CreatedAt; it is
// re-derivable at any time and never a source of truth. The recompute job
// is the only writer.
type Product struct {
	ID              string          `json:"id"`
	CategoryID      string          `json:"category_id"`
	Price           decimal.Decimal `json:"price"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	Counters        Counters        `json:"counters"`
	PopularityScore float64         `json:"popularity_score"`
}

// ActivityEvent records one user action against a product.
// Immutable and append-only; rows are never mutated after insert.
type ActivityEvent struct {
	// ID is a client-supplied idempotency key. When empty, the intake
	// service assigns a UUID before persisting.
	ID string `json:"id"`

	ProductID string `json:"product_id"`

	// ActorID is the authenticated user id or an anonymous session id.
	ActorID string `json:"actor_id"`

	Kind ActivityKind `json:"kind"`

	// OccurredAt is the client-side clock; RecordedAt is set on intake.
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`

	// Seq is a monotonic sequence assigned by the database (BIGSERIAL).
	// Not exposed in the public API.
	Seq int64 `json:"-"`
}

// Validate ensures the event carries every required attribute.
func (e *ActivityEvent) Validate() error {
	if e.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if e.ActorID == "" {
		return fmt.Errorf("actor_id is required")
	}
	if !ValidActivityKind(e.Kind) {
		return fmt.Errorf("unknown activity kind %q", e.Kind)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}

// UserInterest is one row of an actor's category affinity profile.
// Maintained by an external behavioral pipeline; read-only here.
type UserInterest struct {
	ActorID    string `json:"actor_id"`
	CategoryID string `json:"category_id"`
	// AffinityScore is unbounded but conventionally 0-100+.
	AffinityScore float64 `json:"affinity_score"`
}

// ProductActivityCount is one row of a grouped trending-window query.
type ProductActivityCount struct {
	ProductID  string
	EventCount int64
}

// Candidate is a scored recommendation for one product.
// Constructed per request, never persisted.
type Candidate struct {
	ProductID string   `json:"product_id"`
	Score     float64  `json:"score"`
	Reason    Reason   `json:"reason"`
	Product   *Product `json:"product,omitempty"`
}

// Pagination describes one page of a server response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes the page descriptor for a total result size.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// HasMore reports whether pages beyond Page exist.
func (p Pagination) HasMore() bool {
	return p.Page < p.TotalPages
}
