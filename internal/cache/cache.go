package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/cycle"
)

// ComputeFunc runs the full segment + aggregate pipeline.
type ComputeFunc func(ctx context.Context) ([]cycle.Record, error)

// Snapshot is one complete, immutable pipeline result.
type Snapshot struct {
	Records    []cycle.Record
	ComputedAt time.Time
	Generation uint64

	epoch uint64 // invalidation count observed before computing
}

// Cache holds the last computed record set for one session. It recomputes in
// full on first access and on Refresh, never incrementally. Readers see either
// the previous or the next complete snapshot.
type Cache struct {
	compute ComputeFunc
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex // serialises recomputation
	current atomic.Pointer[Snapshot]
	epoch   atomic.Uint64 // bumped by every Invalidate
}

// New creates an empty cache backed by compute.
func New(compute ComputeFunc, logger *zap.Logger) *Cache {
	return &Cache{
		compute: compute,
		logger:  logger,
		now:     time.Now,
	}
}

// Records returns the cached snapshot, computing it if it was never computed
// or has been invalidated. If recomputation fails the previous snapshot (nil
// when there is none) is returned with the error.
func (c *Cache) Records(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); c.fresh(snap) {
		return snap, nil
	}
	return c.recompute(ctx, false)
}

// Refresh discards the cached snapshot and recomputes it.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	c.Invalidate()
	return c.recompute(ctx, true)
}

// Invalidate marks the snapshot stale without recomputing. An invalidation
// that lands while a computation is running also marks that computation's
// result stale.
func (c *Cache) Invalidate() {
	c.epoch.Add(1)
}

func (c *Cache) fresh(snap *Snapshot) bool {
	return snap != nil && snap.epoch == c.epoch.Load()
}

func (c *Cache) recompute(ctx context.Context, forced bool) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.current.Load()
	// Another caller may have finished while we waited for the lock.
	if !forced && c.fresh(prev) {
		return prev, nil
	}

	epoch := c.epoch.Load()
	start := c.now()
	records, err := c.compute(ctx)
	if err != nil {
		c.logger.Warn("Cycle recomputation failed, keeping previous snapshot",
			zap.Error(err),
			zap.Bool("has_previous", prev != nil),
		)
		return prev, err
	}

	var gen uint64 = 1
	if prev != nil {
		gen = prev.Generation + 1
	}
	snap := &Snapshot{Records: records, ComputedAt: c.now(), Generation: gen, epoch: epoch}
	c.current.Store(snap)

	c.logger.Debug("Cycle snapshot recomputed",
		zap.Uint64("generation", gen),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", snap.ComputedAt.Sub(start)),
	)
	return snap, nil
}
