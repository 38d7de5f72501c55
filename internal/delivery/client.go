package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	httperr "github.com/brightcart-lab/recsys/internal/core/errors"
	"github.com/brightcart-lab/recsys/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout = 15 * time.Second
	defaultLimit   = 10
	retryBudget    = 3
)

// ErrRefreshRequired is the terminal error after the retry budget is
// spent. The only way out is a full refresh (FetchFirstPage with fresh
// params), driven by the user.
var ErrRefreshRequired = errors.New("refresh required")

// Params identify one logical feed request. Changing any field is a
// parameter change: the client resets items, seen ids and cache before
// fetching.
type Params struct {
	// ActorID is the viewer; empty means guest.
	ActorID string

	// Feed selects a named feed (trending, popular, personalized).
	// Ignored when AnchorProductID is set.
	Feed string

	// AnchorProductID switches the client to the product-detail mixed
	// feed for that product.
	AnchorProductID string

	// Limit is the page size; defaults to 10.
	Limit int
}

func (p Params) normalized() Params {
	n := p
	if n.ActorID == "" {
		n.ActorID = v1.ActorGuest
	}
	if n.Limit <= 0 {
		n.Limit = defaultLimit
	}
	return n
}

// mixed reports whether the params target the product-detail mixed feed.
func (p Params) mixed() bool {
	return p.AnchorProductID != ""
}

// wantsFallback reports whether an empty first page should trigger the
// popular-feed fallback. Trending and popular feeds are allowed to be
// empty.
func (p Params) wantsFallback() bool {
	return p.mixed() || p.Feed == "personalized"
}

// endpoint builds the request path for one page of this feed.
func (p Params) endpoint(page int) string {
	q := url.Values{}
	if p.mixed() {
		q.Set("actor_id", p.ActorID)
		q.Set("limit", strconv.Itoa(p.Limit))
		q.Set("offset", strconv.Itoa((page-1)*p.Limit))
		return "/v1/products/" + url.PathEscape(p.AnchorProductID) + "/mixed-recommendations?" + q.Encode()
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(p.Limit))
	return "/v1/recommendations/" + url.PathEscape(p.ActorID) + "/" + url.PathEscape(p.Feed) + "?" + q.Encode()
}

// fallbackEndpoint is the generic popular feed every cascade lands on.
func (p Params) fallbackEndpoint() string {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("limit", strconv.Itoa(p.Limit))
	return "/v1/recommendations/guest/popular?" + q.Encode()
}

// FetchResult is one decoded feed page.
type FetchResult struct {
	Candidates []v1.Candidate
	Pagination v1.Pagination
}

// Client is the consumer-side feed orchestrator used by storefront
// frontends: paginated fetch with cross-page dedup, a bounded page
// cache, bounded retry and a fallback cascade to the guest popular feed.
//
// One Client serves one UI surface. Methods are safe for concurrent use;
// a newer FetchFirstPage supersedes any in-flight fetch, whose response
// is then discarded.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	cache   *PageCache
	sink    metrics.Sink
	group   singleflight.Group

	mu          sync.Mutex
	params      Params
	items       []v1.Candidate
	seenIDs     map[string]struct{}
	page        int
	hasMore     bool
	loading     bool
	loadingMore bool
	lastErr     error
	retries     int
	generation  uint64
	cancelFetch context.CancelFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout overrides the per-fetch wall-clock timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithCacheCapacity overrides the page cache capacity.
func WithCacheCapacity(n int) Option {
	return func(c *Client) { c.cache = NewPageCache(n) }
}

// WithMetricsSink overrides the metrics sink (default metrics.Noop).
func WithMetricsSink(s metrics.Sink) Option {
	return func(c *Client) { c.sink = s }
}

// NewClient creates a feed client against the engine at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: defaultTimeout,
		cache:   NewPageCache(pageCacheCapacity),
		sink:    metrics.Noop{},
		seenIDs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Items returns the accumulated, deduplicated feed items.
func (c *Client) Items() []v1.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]v1.Candidate, len(c.items))
	copy(out, c.items)
	return out
}

// HasMore reports whether further pages exist.
func (c *Client) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Err returns the current error state, nil when healthy.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Loading reports whether any fetch is in flight.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading || c.loadingMore
}

// FetchFirstPage resets the client and loads page one for params.
// A still-pending earlier fetch is cancelled and its response discarded.
// Starting a new logical request resets the retry budget.
func (c *Client) FetchFirstPage(ctx context.Context, params Params) error {
	params = params.normalized()

	c.mu.Lock()
	if params != c.params {
		// Parameter change: cached pages belong to the old surface.
		c.cache.Clear()
	}
	c.params = params
	c.retries = 0
	c.mu.Unlock()

	return c.loadFirst(ctx, params)
}

// Retry re-runs the first-page fetch after a failure. Caller-driven,
// bounded to 3 attempts per logical request; the 4th is rejected with
// ErrRefreshRequired without touching the network.
func (c *Client) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.lastErr == nil {
		c.mu.Unlock()
		return nil
	}
	if c.retries >= retryBudget {
		c.lastErr = ErrRefreshRequired
		params := c.params
		c.mu.Unlock()
		c.sink.RetryExhausted(params.endpoint(1))
		slog.Warn("[Delivery] Retry budget exhausted", "endpoint", params.endpoint(1))
		return ErrRefreshRequired
	}
	c.retries++
	params := c.params
	c.mu.Unlock()

	return c.loadFirst(ctx, params)
}

// FetchNextPage appends the next page, filtered through the seen-id set.
// No-op while a fetch is in flight or when no further pages exist.
func (c *Client) FetchNextPage(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasMore || c.loading || c.loadingMore {
		c.mu.Unlock()
		return nil
	}
	c.loadingMore = true
	gen := c.generation
	params := c.params
	nextPage := c.page + 1
	c.mu.Unlock()

	result, err := c.fetchPage(c.fetchContext(ctx, gen), params, nextPage)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// Superseded by a newer FetchFirstPage; drop the response.
		return nil
	}
	c.releaseFetchLocked()
	c.loadingMore = false

	if err != nil {
		// Partial state: keep what is loaded, surface the error.
		c.lastErr = err
		return err
	}

	appended := 0
	for _, cand := range result.Candidates {
		if _, seen := c.seenIDs[cand.ProductID]; seen {
			continue
		}
		c.seenIDs[cand.ProductID] = struct{}{}
		c.items = append(c.items, cand)
		appended++
	}
	c.page = nextPage
	c.hasMore = hasMoreFrom(result, params, nextPage)
	c.lastErr = nil

	slog.Debug("[Delivery] Appended page",
		"page", nextPage,
		"returned", len(result.Candidates),
		"appended", appended,
		"has_more", c.hasMore)
	return nil
}

// loadFirst runs the first-page state machine:
// loadingFirst -> loaded | empty -> fallback -> loaded | error.
func (c *Client) loadFirst(ctx context.Context, params Params) error {
	c.mu.Lock()
	gen := c.beginFirstLoadLocked(params)
	c.mu.Unlock()

	result, err := c.fetchPage(c.fetchContext(ctx, gen), params, 1)

	if err == nil && (len(result.Candidates) > 0 || !params.wantsFallback()) {
		return c.applyFirstPage(gen, params, result, 1)
	}

	// Fallback cascade: empty or failed preferred feed, one shot at the
	// generic popular feed before surfacing an error.
	c.sink.FallbackTaken(params.endpoint(1))
	slog.Info("[Delivery] Falling back to guest popular feed",
		"endpoint", params.endpoint(1),
		"error", err)

	fbResult, fbErr := c.doFetch(c.fetchContext(ctx, gen), params.fallbackEndpoint(), params.mixed())
	if fbErr != nil {
		cause := err
		if cause == nil {
			cause = fbErr
		}
		return c.failFirstPage(gen, fmt.Errorf("fallback failed: %w", cause))
	}

	return c.applyFallbackPage(gen, fbResult)
}

// beginFirstLoadLocked cancels in-flight work and resets per-request
// state. Returns the new fetch generation. Caller holds c.mu.
func (c *Client) beginFirstLoadLocked(params Params) uint64 {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.generation++
	c.params = params
	c.items = nil
	c.seenIDs = make(map[string]struct{})
	c.page = 0
	c.hasMore = false
	c.loading = true
	c.loadingMore = false
	c.lastErr = nil
	return c.generation
}

// fetchContext derives the per-fetch timeout context and registers its
// cancel func so a superseding request can abort this one.
func (c *Client) fetchContext(ctx context.Context, gen uint64) context.Context {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)

	c.mu.Lock()
	if gen == c.generation {
		// A fallback fetch replaces the preferred-feed context; release
		// the finished one before registering the new cancel.
		c.releaseFetchLocked()
		c.cancelFetch = cancel
	} else {
		cancel()
	}
	c.mu.Unlock()
	return fetchCtx
}

// releaseFetchLocked cancels the finished fetch's context, releasing
// its timeout timer. Caller holds c.mu.
func (c *Client) releaseFetchLocked() {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
}

func (c *Client) applyFirstPage(gen uint64, params Params, result *FetchResult, page int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return nil // superseded
	}
	c.loading = false
	c.releaseFetchLocked()
	c.items = nil
	c.seenIDs = make(map[string]struct{})
	for _, cand := range result.Candidates {
		if _, seen := c.seenIDs[cand.ProductID]; seen {
			continue
		}
		c.seenIDs[cand.ProductID] = struct{}{}
		c.items = append(c.items, cand)
	}
	c.page = page
	c.hasMore = hasMoreFrom(result, params, page)
	c.lastErr = nil
	c.sink.FeedServed(params.endpoint(page), len(c.items))
	return nil
}

func (c *Client) applyFallbackPage(gen uint64, result *FetchResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return nil
	}
	c.loading = false
	c.releaseFetchLocked()
	c.items = nil
	c.seenIDs = make(map[string]struct{})
	for _, cand := range result.Candidates {
		if _, seen := c.seenIDs[cand.ProductID]; seen {
			continue
		}
		c.seenIDs[cand.ProductID] = struct{}{}
		c.items = append(c.items, cand)
	}
	// The fallback feed is a single-page surface; no pagination past it.
	c.page = 1
	c.hasMore = false
	c.lastErr = nil
	return nil
}

func (c *Client) failFirstPage(gen uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return nil
	}
	c.loading = false
	c.releaseFetchLocked()
	c.lastErr = err
	return err
}

// fetchPage serves one page from cache or the network.
func (c *Client) fetchPage(ctx context.Context, params Params, page int) (*FetchResult, error) {
	endpoint := params.endpoint(page)

	if cached := c.cache.Get(endpoint); cached != nil {
		c.sink.CacheHit(endpoint)
		return cached, nil
	}
	c.sink.CacheMiss(endpoint)

	result, err := c.doFetch(ctx, endpoint, params.mixed())
	if err != nil {
		return nil, err
	}
	c.cache.Put(endpoint, result)
	return result, nil
}

// doFetch issues the HTTP GET and decodes one page. Concurrent requests
// for the same endpoint are deduplicated through singleflight.
func (c *Client) doFetch(ctx context.Context, endpoint string, mixed bool) (*FetchResult, error) {
	v, err, _ := c.group.Do(endpoint, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr httperr.ErrorResponse
			if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Message != "" {
				return nil, fmt.Errorf("server %d: %s", resp.StatusCode, apiErr.Message)
			}
			return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
		}

		return decodePage(body, mixed)
	})
	if err != nil {
		return nil, err
	}
	return v.(*FetchResult), nil
}

func decodePage(body []byte, mixed bool) (*FetchResult, error) {
	if mixed {
		var page struct {
			Success bool           `json:"success"`
			Data    []v1.Candidate `json:"data"`
			Count   int            `json:"count"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode mixed feed: %w", err)
		}
		return &FetchResult{Candidates: page.Data}, nil
	}

	var page struct {
		Data       []v1.Candidate `json:"data"`
		Pagination v1.Pagination  `json:"pagination"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode feed page: %w", err)
	}
	return &FetchResult{Candidates: page.Data, Pagination: page.Pagination}, nil
}

// hasMoreFrom derives the has-more flag: server total_pages when the
// endpoint provides it, otherwise a full page implies more may exist.
func hasMoreFrom(result *FetchResult, params Params, page int) bool {
	if result.Pagination.TotalPages > 0 {
		return page < result.Pagination.TotalPages
	}
	return len(result.Candidates) >= params.Limit
}
