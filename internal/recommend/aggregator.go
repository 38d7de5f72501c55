package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/feeds"
	"github.com/brightcart-lab/recsys/internal/metrics"
)

// reasonPriority fixes the dedup order for the mixed feed: when one
// product is produced by several sources, the highest-priority reason
// wins. similar > personalized > trending > popular.
var reasonPriority = map[v1.Reason]int{
	v1.ReasonSimilar:      0,
	v1.ReasonPersonalized: 1,
	v1.ReasonTrending:     2,
	v1.ReasonPopular:      3,
}

// Aggregator composes the ranking components into named feeds and the
// merged mixed feed. It owns candidate construction per request; no
// state is shared across requests.
type Aggregator struct {
	popularity      *PopularityIndex
	trending        *TrendingDetector
	personalization *PersonalizationEngine
	similarity      *SimilarityMatcher
	layout          feeds.Repository
	sink            metrics.Sink
}

// NewAggregator wires the aggregator. sink must not be nil; pass
// metrics.Noop{} to discard instrumentation.
func NewAggregator(
	popularity *PopularityIndex,
	trending *TrendingDetector,
	personalization *PersonalizationEngine,
	similarity *SimilarityMatcher,
	layout feeds.Repository,
	sink metrics.Sink,
) *Aggregator {
	return &Aggregator{
		popularity:      popularity,
		trending:        trending,
		personalization: personalization,
		similarity:      similarity,
		layout:          layout,
		sink:            sink,
	}
}

// SectionLimits carries optional per-source limit overrides for the
// sectioned feed. Zero means "use the section's configured limit".
type SectionLimits struct {
	Popular      int
	Trending     int
	Personalized int
}

// Sections computes the independently ranked homepage sections for an
// actor, keyed by section name. Anonymous actors get the popular
// ranking in place of personalized sections. No cross-section dedup.
func (a *Aggregator) Sections(ctx context.Context, actorID string, limits SectionLimits) (map[string][]v1.Candidate, error) {
	out := make(map[string][]v1.Candidate)

	for _, section := range a.layout.Sections() {
		limit := effectiveLimit(section, limits)

		candidates, err := a.bySource(ctx, section.Source, actorID, limit)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", section.Name, err)
		}

		a.sink.FeedServed(section.Name, len(candidates))
		out[section.Name] = candidates
	}

	return out, nil
}

// FeedPage serves one paginated feed by source for an actor.
func (a *Aggregator) FeedPage(ctx context.Context, source feeds.Source, actorID string, page, limit int) ([]v1.Candidate, v1.Pagination, error) {
	switch source {
	case feeds.SourceTrending:
		return a.trending.Page(ctx, page, limit)
	case feeds.SourcePersonalized:
		if actorID == v1.ActorGuest {
			// Anonymous actors have no profile to personalize on.
			return a.popularity.Page(ctx, page, limit)
		}
		return a.personalization.Page(ctx, actorID, page, limit)
	case feeds.SourcePopular:
		return a.popularity.Page(ctx, page, limit)
	default:
		return nil, v1.Pagination{}, fmt.Errorf("unknown feed source %q", source)
	}
}

// MixedFeed merges similar, personalized (authenticated actors only),
// trending and popular candidates for a product-detail context into one
// ranked, deduplicated list.
//
// Ordering is by source priority first, then score descending within a
// source; offset/limit slice the merged list. An empty first page falls
// back to the generic popular feed rather than returning nothing.
func (a *Aggregator) MixedFeed(ctx context.Context, anchorProductID, actorID string, limit, offset int) ([]v1.Candidate, error) {
	merged, err := a.mergeMixedSources(ctx, anchorProductID, actorID, limit)
	if err != nil {
		return nil, err
	}

	page := sliceWindow(merged, offset, limit)
	if len(page) > 0 || offset > 0 {
		a.sink.FeedServed("mixed", len(page))
		return page, nil
	}

	// Cold context: nothing similar, trending or personal. Serve the
	// popular ranking so the surface is never empty.
	a.sink.FallbackTaken("mixed")
	slog.Debug("[Aggregator] Mixed feed empty, serving popular fallback",
		"anchor_product_id", anchorProductID,
		"actor_id", actorID)

	fallback, err := a.popularity.TopPopular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("mixed feed popular fallback: %w", err)
	}
	a.sink.FeedServed("mixed", len(fallback))
	return fallback, nil
}

func (a *Aggregator) mergeMixedSources(ctx context.Context, anchorProductID, actorID string, limit int) ([]v1.Candidate, error) {
	// Each source contributes up to twice the requested page so that
	// dedup and the offset window still have material to draw from.
	perSource := limit * 2

	var sources [][]v1.Candidate

	similar, err := a.similarity.Similar(ctx, anchorProductID, perSource)
	if err != nil {
		return nil, fmt.Errorf("mixed feed similar source: %w", err)
	}
	sources = append(sources, similar)

	if actorID != "" && actorID != v1.ActorGuest {
		personalized, err := a.personalization.Personalized(ctx, actorID, perSource)
		if err != nil {
			return nil, fmt.Errorf("mixed feed personalized source: %w", err)
		}
		sources = append(sources, personalized)
	}

	trending, err := a.trending.Trending(ctx, perSource)
	if err != nil {
		return nil, fmt.Errorf("mixed feed trending source: %w", err)
	}
	sources = append(sources, trending)

	popular, err := a.popularity.TopPopular(ctx, perSource)
	if err != nil {
		return nil, fmt.Errorf("mixed feed popular source: %w", err)
	}
	sources = append(sources, popular)

	seen := make(map[string]struct{})
	var merged []v1.Candidate
	for _, source := range sources {
		// Stable within a source: preserve its ranking order.
		sort.SliceStable(source, func(i, j int) bool {
			return source[i].Score > source[j].Score
		})
		for _, c := range source {
			if c.ProductID == anchorProductID {
				continue
			}
			if _, dup := seen[c.ProductID]; dup {
				continue
			}
			seen[c.ProductID] = struct{}{}
			merged = append(merged, c)
		}
	}

	// Sources were visited in priority order, so merged is already
	// priority-then-score ranked; assert the invariant stays visible.
	sort.SliceStable(merged, func(i, j int) bool {
		return reasonPriority[merged[i].Reason] < reasonPriority[merged[j].Reason]
	})

	return merged, nil
}

func (a *Aggregator) bySource(ctx context.Context, source feeds.Source, actorID string, limit int) ([]v1.Candidate, error) {
	candidates, _, err := a.FeedPage(ctx, source, actorID, 1, limit)
	return candidates, err
}

func effectiveLimit(section feeds.Section, limits SectionLimits) int {
	override := 0
	switch section.Source {
	case feeds.SourcePopular:
		override = limits.Popular
	case feeds.SourceTrending:
		override = limits.Trending
	case feeds.SourcePersonalized:
		override = limits.Personalized
	}
	if override > 0 {
		return override
	}
	return section.Limit
}

func sliceWindow(candidates []v1.Candidate, offset, limit int) []v1.Candidate {
	if offset >= len(candidates) {
		return nil
	}
	end := offset + limit
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[offset:end]
}
