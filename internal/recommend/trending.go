package recommend

import (
	"context"
	"fmt"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/scoring"
	"github.com/brightcart-lab/recsys/internal/core/storage"
)

// maxTrendingScan caps how many grouped activity rows one trending
// computation pulls. Products beyond this never trend anyway.
const maxTrendingScan = 500

// TrendingDetector ranks products by raw activity volume inside the
// 7-day trending window, independent of all-time popularity.
type TrendingDetector struct {
	activity storage.ActivityStore
	products storage.ProductStore
	nowFn    func() time.Time
}

// NewTrendingDetector creates a detector over the activity log.
func NewTrendingDetector(activity storage.ActivityStore, products storage.ProductStore) *TrendingDetector {
	return &TrendingDetector{
		activity: activity,
		products: products,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Trending returns up to limit candidates ordered by event count
// descending. An empty window yields an empty list, not an error; the
// aggregator owns any fallback.
func (d *TrendingDetector) Trending(ctx context.Context, limit int) ([]v1.Candidate, error) {
	candidates, _, err := d.Page(ctx, 1, limit)
	return candidates, err
}

// Page paginates the full trending ranking. The ranking is computed in
// memory from one grouped window query; maxTrendingScan bounds it.
func (d *TrendingDetector) Page(ctx context.Context, page, limit int) ([]v1.Candidate, v1.Pagination, error) {
	since := d.nowFn().Add(-scoring.TrendingWindow)

	counts, err := d.activity.CountEventsByProductSince(ctx, since, maxTrendingScan)
	if err != nil {
		return nil, v1.Pagination{}, fmt.Errorf("count trending window events: %w", err)
	}
	if len(counts) == 0 {
		return nil, v1.NewPagination(page, limit, 0), nil
	}

	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.ProductID)
	}

	products, err := d.products.ListProductsByIDs(ctx, ids)
	if err != nil {
		return nil, v1.Pagination{}, fmt.Errorf("load trending products: %w", err)
	}

	active := make(map[string]*v1.Product, len(products))
	for _, p := range products {
		if p.IsActive {
			active[p.ID] = p
		}
	}

	// counts are already ordered by event count desc, product id asc.
	ranked := make([]v1.Candidate, 0, len(counts))
	for _, c := range counts {
		p, ok := active[c.ProductID]
		if !ok {
			continue
		}
		ranked = append(ranked, v1.Candidate{
			ProductID: c.ProductID,
			Score:     float64(c.EventCount) * scoring.RecencyBoost,
			Reason:    v1.ReasonTrending,
			Product:   p,
		})
	}

	pagination := v1.NewPagination(page, limit, len(ranked))

	start := (page - 1) * limit
	if start >= len(ranked) {
		return nil, pagination, nil
	}
	end := start + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end], pagination, nil
}
