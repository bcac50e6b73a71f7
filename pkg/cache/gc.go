package cache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/checksum"
)

// GCOptions controls a garbage collection run.
type GCOptions struct {
	// DryRun logs what would be deleted without deleting (default: false).
	DryRun bool

	// Jobs bounds parallel deletions (default: 4).
	Jobs int
}

// GCStats contains statistics from a garbage collection run.
type GCStats struct {
	StartTime    time.Time
	EndTime      time.Time
	MarkedCount  uint64 // objects in the keep set
	ScannedCount uint64 // objects present in the cache
	SweptCount   uint64 // orphaned objects deleted
	FailedCount  uint64 // orphaned objects that failed to delete

	// Failures maps each object that failed to delete to its error.
	Failures map[checksum.Checksum]error
}

// Duration returns the total collection duration.
func (s *GCStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the run.
func (s *GCStats) Summary() string {
	return fmt.Sprintf("marked=%d scanned=%d swept=%d failed=%d duration=%s",
		s.MarkedCount, s.ScannedCount, s.SweptCount, s.FailedCount, s.Duration())
}

// GC deletes every cache object not in the keep set.
//
// This is the sweep half of mark-and-sweep: the caller computes the mark set
// (the union of all output/dependency checksums reachable from stage records
// under the requested retention policy) and passes it as keep.
//
// Safe to interrupt: objects are immutable and independently addressed, so
// deletion order does not matter and a cancelled run simply leaves more
// objects for the next one. Deletions run on a bounded worker pool;
// per-object failures are collected, not fatal.
//
// Parameters:
//   - ctx: Context for cancellation
//   - keep: Mark set of checksums that must survive
//   - opts: Dry-run flag and parallelism bound
//
// Returns:
//   - *GCStats: Counts and per-object failures
//   - error: Listing failure or context cancellation
func (c *Cache) GC(ctx context.Context, keep map[checksum.Checksum]struct{}, opts GCOptions) (*GCStats, error) {
	stats := &GCStats{
		StartTime:   time.Now(),
		MarkedCount: uint64(len(keep)),
		Failures:    make(map[checksum.Checksum]error),
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 4
	}

	// ========================================================================
	// Phase 1: Scan the cache for existing objects
	// ========================================================================

	existing, err := c.ListObjects(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list cache objects: %w", err)
	}
	stats.ScannedCount = uint64(len(existing))

	// ========================================================================
	// Phase 2: Compute the orphan set
	// ========================================================================

	orphaned := make([]checksum.Checksum, 0)
	for _, sum := range existing {
		if _, marked := keep[sum]; !marked {
			orphaned = append(orphaned, sum)
		}
	}

	if len(orphaned) == 0 {
		logger.Info("gc: no unreferenced objects found")
		stats.EndTime = time.Now()
		return stats, nil
	}

	if opts.DryRun {
		logger.Info("gc: dry run - would delete %d objects", len(orphaned))
		for i, sum := range orphaned {
			if i >= 10 {
				logger.Info("gc:   ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("gc:   - %s", sum)
		}
		stats.EndTime = time.Now()
		return stats, nil
	}

	// ========================================================================
	// Phase 3: Sweep on a bounded worker pool
	// ========================================================================

	logger.Info("gc: deleting %d unreferenced objects (jobs=%d)", len(orphaned), jobs)

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(jobs)

	for _, sum := range orphaned {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			err := os.Remove(c.ObjectPath(sum))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FailedCount++
				stats.Failures[sum] = err
				logger.Debug("gc: failed to delete %s: %v", sum, err)
				return nil // per-object failures are reported, not fatal
			}
			stats.SweptCount++
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		stats.EndTime = time.Now()
		return stats, err
	}

	stats.EndTime = time.Now()
	logger.Info("gc: completed - %s", stats.Summary())

	return stats, nil
}
