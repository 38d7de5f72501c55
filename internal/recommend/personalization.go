package recommend

import (
	"context"
	"fmt"
	"sort"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/scoring"
	"github.com/brightcart-lab/recsys/internal/core/storage"
)

// candidateOversample leaves room for score-based pruning: the pool is
// fetched at this multiple of the requested limit before ranking.
const candidateOversample = 4

// PersonalizationEngine resolves an actor's category affinities into a
// scored candidate list, excluding products the actor already owns.
type PersonalizationEngine struct {
	products   storage.ProductStore
	interests  storage.InterestStore
	orders     storage.OrderStore
	calc       *scoring.Calculator
	popularity *PopularityIndex
}

// NewPersonalizationEngine wires the engine with its cold-start
// fallback (the popularity index).
func NewPersonalizationEngine(
	products storage.ProductStore,
	interests storage.InterestStore,
	orders storage.OrderStore,
	calc *scoring.Calculator,
	popularity *PopularityIndex,
) *PersonalizationEngine {
	return &PersonalizationEngine{
		products:   products,
		interests:  interests,
		orders:     orders,
		calc:       calc,
		popularity: popularity,
	}
}

// Personalized returns up to limit candidates for the actor.
//
// Cold start (no interest rows) falls back to the popularity index,
// relabeled with reason "personalized" so callers see one consistent
// feed identity. Purchased products never appear in the output.
func (e *PersonalizationEngine) Personalized(ctx context.Context, actorID string, limit int) ([]v1.Candidate, error) {
	candidates, _, err := e.Page(ctx, actorID, 1, limit)
	return candidates, err
}

// Page paginates the personalized ranking. The ranking for pages beyond
// the first is rebuilt from an oversampled pool covering every page up
// to the requested one, keeping cross-page order stable.
func (e *PersonalizationEngine) Page(ctx context.Context, actorID string, page, limit int) ([]v1.Candidate, v1.Pagination, error) {
	interests, err := e.interests.ListInterests(ctx, actorID)
	if err != nil {
		return nil, v1.Pagination{}, fmt.Errorf("list interests: %w", err)
	}

	if len(interests) == 0 {
		return e.coldStart(ctx, page, limit)
	}

	purchased, err := e.orders.PurchasedProductIDs(ctx, actorID)
	if err != nil {
		return nil, v1.Pagination{}, fmt.Errorf("list purchased products: %w", err)
	}

	categories := make([]string, 0, len(interests))
	affinityByCategory := make(map[string]float64, len(interests))
	for _, in := range interests {
		categories = append(categories, in.CategoryID)
		affinityByCategory[in.CategoryID] = in.AffinityScore
	}

	poolSize := candidateOversample * page * limit
	pool, err := e.products.ListActiveByCategories(ctx, categories, purchased, poolSize)
	if err != nil {
		return nil, v1.Pagination{}, fmt.Errorf("build candidate pool: %w", err)
	}

	ranked := make([]v1.Candidate, 0, len(pool))
	for _, p := range pool {
		ranked = append(ranked, v1.Candidate{
			ProductID: p.ID,
			Score:     e.calc.ScoreProduct(p) * interestMultiplier(affinityByCategory, p.CategoryID),
			Reason:    v1.ReasonPersonalized,
			Product:   p,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})

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

func (e *PersonalizationEngine) coldStart(ctx context.Context, page, limit int) ([]v1.Candidate, v1.Pagination, error) {
	candidates, pagination, err := e.popularity.Page(ctx, page, limit)
	if err != nil {
		return nil, v1.Pagination{}, err
	}
	for idx := range candidates {
		candidates[idx].Reason = v1.ReasonPersonalized
	}
	return candidates, pagination, nil
}

// interestMultiplier maps a category affinity to a score multiplier:
// max(1, affinity/100). No matching interest means no boost.
func interestMultiplier(affinityByCategory map[string]float64, categoryID string) float64 {
	affinity, ok := affinityByCategory[categoryID]
	if !ok {
		return 1
	}
	m := affinity / 100
	if m < 1 {
		return 1
	}
	return m
}
