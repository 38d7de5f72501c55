package recommend

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/storage"
	"github.com/shopspring/decimal"
)

// Similarity band: candidates must be priced within ±30% of the anchor,
// inclusive on both ends.
var (
	similarityBandLow  = decimal.RequireFromString("0.7")
	similarityBandHigh = decimal.RequireFromString("1.3")
)

// SimilarityMatcher finds same-category, price-banded alternatives to
// an anchor product.
type SimilarityMatcher struct {
	products storage.ProductStore
}

// NewSimilarityMatcher creates a matcher over the product store.
func NewSimilarityMatcher(products storage.ProductStore) *SimilarityMatcher {
	return &SimilarityMatcher{products: products}
}

// Similar returns up to limit alternatives to the anchor, ranked by
// cached popularity score.
//
// An unknown, inactive or non-positively-priced anchor yields an empty
// list, not an error: a product page with a broken anchor still renders,
// it just shows no "similar" section.
func (m *SimilarityMatcher) Similar(ctx context.Context, anchorProductID string, limit int) ([]v1.Candidate, error) {
	anchor, err := m.products.GetProduct(ctx, anchorProductID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load anchor product: %w", err)
	}

	if !anchor.IsActive || !anchor.Price.IsPositive() {
		return nil, nil
	}

	minPrice := anchor.Price.Mul(similarityBandLow)
	maxPrice := anchor.Price.Mul(similarityBandHigh)

	matches, err := m.products.ListActiveByPriceBand(ctx, anchor.CategoryID, anchor.ID, minPrice, maxPrice, limit)
	if err != nil {
		return nil, fmt.Errorf("list price-band candidates: %w", err)
	}

	candidates := make([]v1.Candidate, 0, len(matches))
	for _, p := range matches {
		candidates = append(candidates, v1.Candidate{
			ProductID: p.ID,
			Score:     p.PopularityScore,
			Reason:    v1.ReasonSimilar,
			Product:   p,
		})
	}
	return candidates, nil
}
