// Package housekeeping removes abandoned pending orders. Buyers who never
// complete checkout leave staging rows behind; they carry no money, but
// unbounded growth slows the session-id lookups the webhook path depends
// on.
package housekeeping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/merchkit/merchkit/config"
	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/metrics"
)

// OrderReaper is the slice of the order store the reaper needs.
type OrderReaper interface {
	ReapPendingOrders(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Reaper periodically deletes pending orders older than the configured
// TTL, in bounded batches so a large backlog never produces one giant
// delete.
type Reaper struct {
	orders  OrderReaper
	cfg     config.HousekeepingConfig
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	mu      sync.Mutex
	running bool
}

// New creates a reaper instance
func New(orders OrderReaper, cfg config.HousekeepingConfig) *Reaper {
	return &Reaper{
		orders:  orders,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.SweepRateLimit), 1),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Run starts the sweep loop and runs until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper already running")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	logger.Info("Housekeeping started",
		"pending_order_ttl", r.cfg.PendingOrderTTL.String(),
		"sweep_interval", r.cfg.SweepInterval.String(),
		"batch_size", r.cfg.BatchSize,
	)

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	// Initial immediate sweep
	if _, err := r.Sweep(ctx); err != nil {
		logger.Error("Initial sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Housekeeping stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				logger.Error("Sweep failed", "error", err)
			}
		}
	}
}

// Sweep deletes expired pending orders batch by batch until a batch comes
// back short, and returns the total number removed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("acquire semaphore: %w", err)
	}
	defer r.sem.Release(1)

	cutoff := time.Now().UTC().Add(-r.cfg.PendingOrderTTL)
	total := 0
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return total, fmt.Errorf("rate limit: %w", err)
		}

		reaped, err := r.orders.ReapPendingOrders(ctx, cutoff, r.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("reap pending orders: %w", err)
		}
		total += reaped
		if reaped < r.cfg.BatchSize {
			break
		}
	}

	if total > 0 {
		metrics.RecordPendingOrdersReaped(total)
		logger.Info("Reaped abandoned pending orders", "count", total)
	}
	return total, nil
}
