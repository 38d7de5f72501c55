package recommend

import (
	"context"
	"fmt"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/storage"
)

// PopularityIndex ranks active products by their cached popularity
// score. Reads are served straight from the cache column; staleness
// between recompute cycles is acceptable by design of the score cache.
type PopularityIndex struct {
	products storage.ProductStore
}

// NewPopularityIndex creates a popularity index over the product store.
func NewPopularityIndex(products storage.ProductStore) *PopularityIndex {
	return &PopularityIndex{products: products}
}

// TopPopular returns the best-scored active products.
// Ordering for equal scores is deterministic: newest first, then id.
func (i *PopularityIndex) TopPopular(ctx context.Context, limit int) ([]v1.Candidate, error) {
	candidates, _, err := i.Page(ctx, 1, limit)
	return candidates, err
}

// Page returns one page of the popularity ranking plus its pagination
// descriptor.
func (i *PopularityIndex) Page(ctx context.Context, page, limit int) ([]v1.Candidate, v1.Pagination, error) {
	offset := (page - 1) * limit

	products, err := i.products.ListActiveByPopularity(ctx, limit, offset)
	if err != nil {
		return nil, v1.Pagination{}, fmt.Errorf("list popular products: %w", err)
	}

	total, err := i.products.CountActive(ctx)
	if err != nil {
		return nil, v1.Pagination{}, fmt.Errorf("count active products: %w", err)
	}

	candidates := make([]v1.Candidate, 0, len(products))
	for _, p := range products {
		candidates = append(candidates, v1.Candidate{
			ProductID: p.ID,
			Score:     p.PopularityScore,
			Reason:    v1.ReasonPopular,
			Product:   p,
		})
	}

	return candidates, v1.NewPagination(page, limit, total), nil
}
