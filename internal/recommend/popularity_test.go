package recommend

import (
	"context"
	"testing"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/stretchr/testify/require"
)

func TestPopularityIndex_TopPopular(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	inactive := activeProduct("prod-hidden", "cat-1", "5.00", base, 999)
	inactive.IsActive = false

	store := &mockProductStore{products: []*v1.Product{
		activeProduct("prod-low", "cat-1", "10.00", base, 10),
		activeProduct("prod-high", "cat-1", "20.00", base, 50),
		activeProduct("prod-mid", "cat-2", "15.00", base, 30),
		inactive,
	}}

	index := NewPopularityIndex(store)

	candidates, err := index.TopPopular(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "prod-high", candidates[0].ProductID)
	require.Equal(t, "prod-mid", candidates[1].ProductID)
	require.Equal(t, v1.ReasonPopular, candidates[0].Reason)
	require.Equal(t, 50.0, candidates[0].Score)
}

func TestPopularityIndex_TieBreakNewestFirst(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	store := &mockProductStore{products: []*v1.Product{
		activeProduct("prod-old", "cat-1", "10.00", base, 25),
		activeProduct("prod-new", "cat-1", "10.00", base.Add(48*time.Hour), 25),
	}}

	candidates, err := NewPopularityIndex(store).TopPopular(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "prod-new", candidates[0].ProductID)
	require.Equal(t, "prod-old", candidates[1].ProductID)
}

func TestPopularityIndex_Page(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	var products []*v1.Product
	for i := 0; i < 25; i++ {
		products = append(products, activeProduct(
			pid(i), "cat-1", "10.00", base, float64(100-i)))
	}
	index := NewPopularityIndex(&mockProductStore{products: products})

	page1, pagination, err := index.Page(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page1, 10)
	require.Equal(t, 25, pagination.Total)
	require.Equal(t, 3, pagination.TotalPages)
	require.True(t, pagination.HasMore())

	page3, pagination, err := index.Page(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, page3, 5)
	require.False(t, pagination.HasMore())
}

func pid(i int) string {
	return string(rune('a'+i/10)) + string(rune('a'+i%10))
}
