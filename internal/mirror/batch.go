package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webmirror/webmirror/internal/model"
)

// BatchProcessor handles concurrent mirroring of multiple sites.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Engine because:
// 1. It keeps the Engine focused on single-site mirroring
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// engineFactory creates a fresh Engine for each target.
	// We use a factory because each site needs its own path allocator
	// and output directory.
	engineFactory func(target string) (*Engine, error)

	// concurrency is the maximum number of sites mirrored at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed run statistics.
	// Access is synchronized via mutex.
	results []*model.MirrorStats
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent site mirrors.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The engineFactory function is called for each target to create a fresh
// Engine instance. The factory decides the per-site output directory,
// typically <output>/<host>, and applies per-site configuration such as
// cookies or headers.
func NewBatchProcessor(engineFactory func(target string) (*Engine, error), opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		engineFactory: engineFactory,
		concurrency:   4,
		results:       make([]*model.MirrorStats, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch mirrors multiple sites concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each site gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Results keep the order of the targets slice. A nil entry means that
// site failed before producing any statistics; the failure is logged.
// The error return indicates cancellation, not per-site failures.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.MirrorStats, error) {
	bp.logger.Info("starting batch mirror",
		"total_sites", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order
	bp.results = make([]*model.MirrorStats, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("mirroring site",
				"url", target,
				"index", i+1,
				"total", len(targets),
			)

			engine, err := bp.engineFactory(target)
			if err != nil {
				bp.logger.Warn("site skipped", "url", target, "error", err)
				return nil
			}

			stats, err := engine.Mirror(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Don't return the error to errgroup - we want the
				// other sites to finish.
				bp.logger.Warn("site mirror failed", "url", target, "error", err)
				return nil
			}

			bp.mu.Lock()
			bp.results[i] = stats
			bp.mu.Unlock()

			bp.logger.Info("site mirror completed",
				"url", target,
				"pages", stats.PagesVisited,
			)

			return nil
		})
	}

	// Wait for all sites to complete
	err := g.Wait()

	elapsed := time.Since(startTime)
	bp.logger.Info("batch mirror complete",
		"total_sites", len(targets),
		"elapsed", elapsed,
	)

	return bp.results, err
}
