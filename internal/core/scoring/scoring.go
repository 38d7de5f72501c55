package scoring

import (
	"math"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
)

const (
	// RecencyBoost multiplies the raw score of products created within
	// the trending window.
	RecencyBoost = 1.5

	// TrendingWindow is the fixed lookback used both for the recency
	// boost and for trending detection.
	TrendingWindow = 7 * 24 * time.Hour

	defaultViewWeight     = 1
	defaultCartAddWeight  = 3
	defaultPurchaseWeight = 10
)

// Weights are the per-counter multipliers of the popularity score.
// They arrive from config and must be treated as untrusted input:
// Normalize before use.
type Weights struct {
	View     float64 `koanf:"view"`
	CartAdd  float64 `koanf:"cart_add"`
	Purchase float64 `koanf:"purchase"`
}

// DefaultWeights returns the built-in counter weights (1, 3, 10).
func DefaultWeights() Weights {
	return Weights{
		View:     defaultViewWeight,
		CartAdd:  defaultCartAddWeight,
		Purchase: defaultPurchaseWeight,
	}
}

// Normalize replaces any weight that is not a finite non-negative number
// with its default. A NaN or negative weight must never reach Score.
func (w Weights) Normalize() Weights {
	n := w
	if !validWeight(n.View) {
		n.View = defaultViewWeight
	}
	if !validWeight(n.CartAdd) {
		n.CartAdd = defaultCartAddWeight
	}
	if !validWeight(n.Purchase) {
		n.Purchase = defaultPurchaseWeight
	}
	return n
}

func validWeight(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// Calculator derives popularity scores from behavioral counters.
// Pure and stateless; safe for concurrent use.
type Calculator struct {
	weights Weights
	nowFn   func() time.Time
}

// NewCalculator creates a calculator with the given weights.
// Weights are normalized defensively even if the caller already did.
func NewCalculator(w Weights) *Calculator {
	return &Calculator{
		weights: w.Normalize(),
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Weights returns the normalized weights in effect.
func (c *Calculator) Weights() Weights {
	return c.weights
}

// Score computes the popularity score for a set of counters.
//
//	raw = view*Wview + cartAdd*Wcart + purchase*Wpurchase
//
// Products created within TrendingWindow get raw * RecencyBoost.
// Never returns a negative value for normalized weights.
func (c *Calculator) Score(counters v1.Counters, createdAt time.Time) float64 {
	return c.ScoreAt(counters, createdAt, c.nowFn())
}

// ScoreAt is Score with an explicit evaluation time, for deterministic
// batch recomputes and tests.
func (c *Calculator) ScoreAt(counters v1.Counters, createdAt time.Time, now time.Time) float64 {
	raw := float64(counters.ViewCount)*c.weights.View +
		float64(counters.CartAddCount)*c.weights.CartAdd +
		float64(counters.PurchaseCount)*c.weights.Purchase

	if !createdAt.IsZero() && now.Sub(createdAt) <= TrendingWindow {
		return raw * RecencyBoost
	}
	return raw
}

// ScoreProduct computes the score from a product's own counters and age.
func (c *Calculator) ScoreProduct(p *v1.Product) float64 {
	return c.Score(p.Counters, p.CreatedAt)
}
