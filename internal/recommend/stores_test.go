package recommend

import (
	"context"
	"sort"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/storage"
	"github.com/shopspring/decimal"
)

// mockProductStore mirrors the SQL ordering semantics in memory:
// popularity desc, created_at desc, id asc.
type mockProductStore struct {
	products []*v1.Product
	err      error
}

func (m *mockProductStore) ranked() []*v1.Product {
	out := make([]*v1.Product, len(m.products))
	copy(out, m.products)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PopularityScore != out[j].PopularityScore {
			return out[i].PopularityScore > out[j].PopularityScore
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *mockProductStore) GetProduct(ctx context.Context, id string) (*v1.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *mockProductStore) ListActiveByPopularity(ctx context.Context, limit, offset int) ([]*v1.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var active []*v1.Product
	for _, p := range m.ranked() {
		if p.IsActive {
			active = append(active, p)
		}
	}
	if offset >= len(active) {
		return nil, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	return active[offset:end], nil
}

func (m *mockProductStore) CountActive(ctx context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	count := 0
	for _, p := range m.products {
		if p.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *mockProductStore) ListActiveByCategories(ctx context.Context, categoryIDs, excludeIDs []string, limit int) ([]*v1.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	categories := toSet(categoryIDs)
	excluded := toSet(excludeIDs)

	var pool []*v1.Product
	for _, p := range m.ranked() {
		if !p.IsActive {
			continue
		}
		if _, ok := categories[p.CategoryID]; !ok {
			continue
		}
		if _, ok := excluded[p.ID]; ok {
			continue
		}
		pool = append(pool, p)
		if len(pool) >= limit {
			break
		}
	}
	return pool, nil
}

func (m *mockProductStore) ListActiveByPriceBand(ctx context.Context, categoryID, excludeID string, minPrice, maxPrice decimal.Decimal, limit int) ([]*v1.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var matches []*v1.Product
	for _, p := range m.ranked() {
		if !p.IsActive || p.CategoryID != categoryID || p.ID == excludeID {
			continue
		}
		if p.Price.LessThan(minPrice) || p.Price.GreaterThan(maxPrice) {
			continue
		}
		matches = append(matches, p)
		if len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

func (m *mockProductStore) ListProductsAfterCursor(ctx context.Context, cursor string, limit int) ([]*v1.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	byID := make([]*v1.Product, len(m.products))
	copy(byID, m.products)
	sort.Slice(byID, func(i, j int) bool { return byID[i].ID < byID[j].ID })

	var out []*v1.Product
	for _, p := range byID {
		if p.ID > cursor {
			out = append(out, p)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockProductStore) ListProductsByIDs(ctx context.Context, ids []string) ([]*v1.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	wanted := toSet(ids)
	var out []*v1.Product
	for _, p := range m.products {
		if _, ok := wanted[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductStore) UpdatePopularityScore(ctx context.Context, productID string, score float64) error {
	if m.err != nil {
		return m.err
	}
	for _, p := range m.products {
		if p.ID == productID {
			p.PopularityScore = score
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockProductStore) IncrementCounter(ctx context.Context, productID string, kind v1.ActivityKind) error {
	if m.err != nil {
		return m.err
	}
	for _, p := range m.products {
		if p.ID != productID {
			continue
		}
		switch kind {
		case v1.ActivityView:
			p.Counters.ViewCount++
		case v1.ActivityCartAdd:
			p.Counters.CartAddCount++
		case v1.ActivityPurchase:
			p.Counters.PurchaseCount++
		}
		return nil
	}
	return storage.ErrNotFound
}

type mockActivityStore struct {
	counts []v1.ProductActivityCount
	err    error
}

func (m *mockActivityStore) SaveEvent(ctx context.Context, event *v1.ActivityEvent) error {
	return nil
}

func (m *mockActivityStore) CountEventsByProductSince(ctx context.Context, since time.Time, limit int) ([]v1.ProductActivityCount, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.counts) > limit {
		return m.counts[:limit], nil
	}
	return m.counts, nil
}

type mockInterestStore struct {
	interests map[string][]v1.UserInterest
	err       error
}

func (m *mockInterestStore) ListInterests(ctx context.Context, actorID string) ([]v1.UserInterest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.interests[actorID], nil
}

type mockOrderStore struct {
	purchased map[string][]string
	err       error
}

func (m *mockOrderStore) PurchasedProductIDs(ctx context.Context, actorID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.purchased[actorID], nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func activeProduct(id, category string, price string, createdAt time.Time, score float64) *v1.Product {
	return &v1.Product{
		ID:              id,
		CategoryID:      category,
		Price:           decimal.RequireFromString(price),
		IsActive:        true,
		CreatedAt:       createdAt,
		PopularityScore: score,
	}
}
