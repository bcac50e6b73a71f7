// Package sync implements the remote synchronization protocol: push, pull
// and status as set deltas between the local object cache and a remote.
//
// Both sides use the same sharded key space, so deciding what to transfer
// is a set comparison, and every transfer is an independent per-object
// operation. Failures are collected per object rather than aborting the
// batch; re-running the same command resumes where it left off because
// existing objects are skipped by key.
package sync

import (
	"context"
	"fmt"
	"os"
	"sort"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/cache"
	"github.com/marmos91/dittotrack/pkg/checksum"
	"github.com/marmos91/dittotrack/pkg/remote"
)

// DefaultJobs bounds transfer parallelism when the caller does not choose.
const DefaultJobs = 4

// Syncer moves objects between the local cache and one remote.
type Syncer struct {
	cache  *cache.Cache
	remote remote.Remote

	// jobs bounds concurrent transfers against the remote.
	jobs int
}

// Options configures a Syncer.
type Options struct {
	// Jobs is the maximum number of concurrent transfers (default DefaultJobs).
	Jobs int
}

// New creates a Syncer between the given cache and remote.
func New(objects *cache.Cache, r remote.Remote, opts Options) *Syncer {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs
	}

	return &Syncer{
		cache:  objects,
		remote: r,
		jobs:   jobs,
	}
}

// ============================================================================
// Transfer Reporting
// ============================================================================

// TransferResult reports the outcome of one object transfer.
type TransferResult struct {
	// Checksum identifies the object.
	Checksum checksum.Checksum

	// Skipped is true when the object was already present on the receiving
	// side and no bytes moved.
	Skipped bool

	// Err is the per-object failure, nil on success.
	Err error
}

// Report aggregates one push, pull or fetch run.
type Report struct {
	StartTime time.Time
	EndTime   time.Time

	// Transferred counts objects whose bytes actually moved.
	Transferred int

	// SkippedCount counts objects already present on the receiving side.
	SkippedCount int

	// Failed holds the per-object failures. A non-empty Failed does not
	// abort the run; the other objects still transfer.
	Failed []TransferResult
}

// Duration returns the wall-clock time of the run.
func (r *Report) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// OK reports whether every object transferred (or was already present).
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

// Summary returns a human-readable one-line report.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d transferred, %d already present, %d failed in %v",
		r.Transferred, r.SkippedCount, len(r.Failed), r.Duration().Round(time.Millisecond))
}

// ============================================================================
// Status
// ============================================================================

// Status is the local/remote delta for a set of wanted objects.
type Status struct {
	// Missing are wanted objects present locally but absent from the remote
	// (push candidates).
	Missing []checksum.Checksum

	// Wanted are wanted objects absent from the local cache but present on
	// the remote (pull candidates).
	Wanted []checksum.Checksum

	// Unavailable are wanted objects present on neither side. They cannot
	// be restored from this remote.
	Unavailable []checksum.Checksum
}

// Compare computes the delta for the wanted object set without moving any
// bytes. One List call covers the remote side, so the cost is independent
// of object sizes.
func (s *Syncer) Compare(ctx context.Context, wanted []checksum.Checksum) (*Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remoteKeys, err := s.remote.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list remote objects: %w", err)
	}

	onRemote := make(map[string]struct{}, len(remoteKeys))
	for _, key := range remoteKeys {
		onRemote[key] = struct{}{}
	}

	status := &Status{}
	for _, sum := range dedupe(wanted) {
		_, remoteHas := onRemote[sum.Key()]
		localHas := s.cache.HasObject(sum)

		switch {
		case localHas && !remoteHas:
			status.Missing = append(status.Missing, sum)
		case !localHas && remoteHas:
			status.Wanted = append(status.Wanted, sum)
		case !localHas && !remoteHas:
			status.Unavailable = append(status.Unavailable, sum)
		}
	}

	return status, nil
}

// ============================================================================
// Push / Pull / Fetch
// ============================================================================

// Push uploads the wanted objects that the remote is missing.
//
// Objects already present on the remote are skipped by key, so pushing the
// same set twice transfers zero bytes the second time. Per-object failures
// are reported in the Report and do not abort the remaining uploads.
func (s *Syncer) Push(ctx context.Context, wanted []checksum.Checksum) (*Report, error) {
	return s.run(ctx, wanted, s.pushOne)
}

// Pull downloads the wanted objects that the local cache is missing.
//
// Downloaded bytes are verified against the expected checksum while they
// stream; a corrupt transfer is rejected before it is installed, reported
// as that object's failure.
func (s *Syncer) Pull(ctx context.Context, wanted []checksum.Checksum) (*Report, error) {
	return s.run(ctx, wanted, s.pullOne)
}

// run fans the wanted set out over a bounded worker pool and aggregates
// per-object results. Only context cancellation is fatal.
func (s *Syncer) run(ctx context.Context, wanted []checksum.Checksum, transfer func(context.Context, checksum.Checksum) TransferResult) (*Report, error) {
	report := &Report{StartTime: time.Now()}

	var mu gosync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.jobs)

	for _, sum := range dedupe(wanted) {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			res := transfer(groupCtx, sum)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.Err != nil:
				report.Failed = append(report.Failed, res)
			case res.Skipped:
				report.SkippedCount++
			default:
				report.Transferred++
			}
			return nil
		})
	}

	err := group.Wait()
	report.EndTime = time.Now()

	// Deterministic failure order for display and tests.
	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].Checksum < report.Failed[j].Checksum
	})

	if err != nil {
		return report, err
	}

	logger.Info("sync: %s", report.Summary())
	return report, nil
}

// pushOne uploads a single object unless the remote already has it.
func (s *Syncer) pushOne(ctx context.Context, sum checksum.Checksum) TransferResult {
	key := sum.Key()

	exists, err := s.remote.Exists(ctx, key)
	if err != nil {
		return TransferResult{Checksum: sum, Err: fmt.Errorf("failed to check remote for %s: %w", sum, err)}
	}
	if exists {
		logger.Debug("push: %s already on remote", sum)
		return TransferResult{Checksum: sum, Skipped: true}
	}

	reader, err := s.cache.OpenObject(ctx, sum)
	if err != nil {
		return TransferResult{Checksum: sum, Err: fmt.Errorf("failed to open local object %s: %w", sum, err)}
	}
	defer reader.Close()

	size := int64(-1)
	if info, statErr := os.Stat(s.cache.ObjectPath(sum)); statErr == nil {
		size = info.Size()
	}

	if err := s.remote.Put(ctx, key, reader, size); err != nil {
		return TransferResult{Checksum: sum, Err: fmt.Errorf("failed to upload %s: %w", sum, err)}
	}

	logger.Debug("push: uploaded %s", sum)
	return TransferResult{Checksum: sum}
}

// pullOne downloads a single object unless the cache already has it.
func (s *Syncer) pullOne(ctx context.Context, sum checksum.Checksum) TransferResult {
	if s.cache.HasObject(sum) {
		logger.Debug("pull: %s already in cache", sum)
		return TransferResult{Checksum: sum, Skipped: true}
	}

	reader, err := s.remote.Get(ctx, sum.Key())
	if err != nil {
		return TransferResult{Checksum: sum, Err: fmt.Errorf("failed to download %s: %w", sum, err)}
	}
	defer reader.Close()

	// PutReader verifies the stream against sum and only installs the
	// object on an exact digest match.
	if err := s.cache.PutReader(ctx, sum, reader); err != nil {
		return TransferResult{Checksum: sum, Err: fmt.Errorf("failed to install %s: %w", sum, err)}
	}

	logger.Debug("pull: downloaded %s", sum)
	return TransferResult{Checksum: sum}
}

// dedupe returns the unique checksums in stable sorted order.
func dedupe(sums []checksum.Checksum) []checksum.Checksum {
	seen := make(map[checksum.Checksum]struct{}, len(sums))
	out := make([]checksum.Checksum, 0, len(sums))
	for _, sum := range sums {
		if sum.IsZero() {
			continue
		}
		if _, ok := seen[sum]; ok {
			continue
		}
		seen[sum] = struct{}{}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
