package metrics

import (
	"log/slog"
	"time"
)

// Sink receives instrumentation signals from the engine and the
// delivery client. It is injected explicitly instead of living behind a
// process-wide singleton, so components stay testable in isolation.
type Sink interface {
	// FeedServed records one served feed and its result size.
	FeedServed(feed string, count int)

	// CacheHit / CacheMiss record delivery-client page cache outcomes.
	CacheHit(key string)
	CacheMiss(key string)

	// FallbackTaken records one hop of the fallback cascade.
	FallbackTaken(from string)

	// RetryExhausted records a retry budget hitting its terminal state.
	RetryExhausted(endpoint string)

	// RecomputeCompleted records one finished popularity recompute batch.
	RecomputeCompleted(products int, duration time.Duration)
}

// SlogSink logs every signal through slog at debug level, except
// fallbacks and exhausted retries which are operationally interesting.
type SlogSink struct{}

func (SlogSink) FeedServed(feed string, count int) {
	slog.Debug("[Metrics] Feed served", "feed", feed, "count", count)
}

func (SlogSink) CacheHit(key string) {
	slog.Debug("[Metrics] Page cache hit", "key", key)
}

func (SlogSink) CacheMiss(key string) {
	slog.Debug("[Metrics] Page cache miss", "key", key)
}

func (SlogSink) FallbackTaken(from string) {
	slog.Info("[Metrics] Fallback taken", "from", from)
}

func (SlogSink) RetryExhausted(endpoint string) {
	slog.Warn("[Metrics] Retry budget exhausted", "endpoint", endpoint)
}

func (SlogSink) RecomputeCompleted(products int, duration time.Duration) {
	slog.Debug("[Metrics] Recompute completed", "products", products, "duration", duration)
}

// Noop discards all signals. Default for tests.
type Noop struct{}

func (Noop) FeedServed(string, int)                {}
func (Noop) CacheHit(string)                       {}
func (Noop) CacheMiss(string)                      {}
func (Noop) FallbackTaken(string)                  {}
func (Noop) RetryExhausted(string)                 {}
func (Noop) RecomputeCompleted(int, time.Duration) {}
