package recompute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/partition"
	"github.com/brightcart-lab/recsys/internal/core/scoring"
	"github.com/brightcart-lab/recsys/internal/core/storage"
	"github.com/brightcart-lab/recsys/internal/metrics"
)

const (
	defaultBatchSize   = 500
	defaultWorkerCount = 8
)

// JobParameter controls throughput for one recompute run.
type JobParameter struct {
	BatchSize   int
	WorkerCount int
}

// DefaultJobOptions returns safe defaults for scheduled recomputes.
func DefaultJobOptions() JobParameter {
	return JobParameter{
		BatchSize:   defaultBatchSize,
		WorkerCount: defaultWorkerCount,
	}
}

func (o JobParameter) normalized() JobParameter {
	n := o
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if n.WorkerCount <= 0 {
		n.WorkerCount = defaultWorkerCount
	}
	return n
}

// Job recomputes cached popularity scores from the behavioral counters.
// Scores only change when a run completes; reads in between serve the
// previous snapshot.
type Job struct {
	products storage.ProductStore
	calc     *scoring.Calculator
	sink     metrics.Sink
	opts     JobParameter
	nowFn    func() time.Time
}

// NewJob wires a recompute job. sink must not be nil; pass metrics.Noop{}
// to discard instrumentation.
func NewJob(products storage.ProductStore, calc *scoring.Calculator, sink metrics.Sink, opts JobParameter) *Job {
	return &Job{
		products: products,
		calc:     calc,
		sink:     sink,
		opts:     opts.normalized(),
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// RecomputeOne recomputes and persists the score of a single product.
func (j *Job) RecomputeOne(ctx context.Context, productID string) (float64, error) {
	p, err := j.products.GetProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("load product: %w", err)
	}

	score := j.calc.ScoreAt(p.Counters, p.CreatedAt, j.nowFn())
	if err := j.products.UpdatePopularityScore(ctx, p.ID, score); err != nil {
		return 0, fmt.Errorf("persist score: %w", err)
	}
	return score, nil
}

// RecomputeAll walks the full catalog in id-cursor batches and rewrites
// every product's cached score. Returns the number of products updated.
//
// Each batch is sharded across workers by product partition, so a given
// product id is only ever written by one worker.
func (j *Job) RecomputeAll(ctx context.Context) (int, error) {
	start := j.nowFn()
	now := start // one evaluation instant for the whole run

	slog.Info("[Recompute] Starting full recompute",
		"batch_size", j.opts.BatchSize,
		"workers", j.opts.WorkerCount,
	)

	var (
		cursor string
		total  int
	)
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		batch, err := j.products.ListProductsAfterCursor(ctx, cursor, j.opts.BatchSize)
		if err != nil {
			return total, fmt.Errorf("list products after %q: %w", cursor, err)
		}
		if len(batch) == 0 {
			break
		}

		updated, err := j.recomputeBatch(ctx, batch, now)
		total += updated
		if err != nil {
			return total, err
		}

		cursor = batch[len(batch)-1].ID
		if len(batch) < j.opts.BatchSize {
			break
		}
	}

	duration := j.nowFn().Sub(start)
	j.sink.RecomputeCompleted(total, duration)
	slog.Info("[Recompute] Full recompute complete",
		"products", total,
		"duration", duration,
	)
	return total, nil
}

// recomputeBatch shards one batch by partition and scores each shard on
// its own worker.
func (j *Job) recomputeBatch(ctx context.Context, batch []*v1.Product, now time.Time) (int, error) {
	shards := make(map[int][]*v1.Product)
	for _, p := range batch {
		shard := partition.For(p.ID) % j.opts.WorkerCount
		shards[shard] = append(shards[shard], p)
	}

	workerCount := minInt(j.opts.WorkerCount, len(shards))
	if workerCount == 0 {
		return 0, nil
	}

	jobs := make(chan []*v1.Product, len(shards))
	results := make(chan shardResult, len(shards))

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for shard := range jobs {
				results <- j.scoreShard(ctx, shard, now)
			}
		}()
	}

	for _, shard := range shards {
		jobs <- shard
	}
	close(jobs)

	wg.Wait()
	close(results)

	var (
		updated int
		errs    []error
	)
	for r := range results {
		updated += r.updated
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return updated, errors.Join(errs...)
}

type shardResult struct {
	updated int
	err     error
}

func (j *Job) scoreShard(ctx context.Context, shard []*v1.Product, now time.Time) shardResult {
	var r shardResult
	for _, p := range shard {
		if err := ctx.Err(); err != nil {
			r.err = err
			return r
		}

		score := j.calc.ScoreAt(p.Counters, p.CreatedAt, now)
		if err := j.products.UpdatePopularityScore(ctx, p.ID, score); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Product deleted mid-run; nothing to update.
				continue
			}
			r.err = fmt.Errorf("update score for %s: %w", p.ID, err)
			return r
		}
		r.updated++
	}
	return r
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
