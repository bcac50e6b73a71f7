package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/checksum"
)

// OutputSpec names one tracked file to materialize: its workspace path and
// the checksum recorded for it.
type OutputSpec struct {
	Path     string
	Checksum checksum.Checksum
}

// CheckoutResult reports the outcome of materializing one tracked file.
//
// Checkout is a per-file operation: one missing cache object is reported for
// its path and the remaining files are still checked out.
type CheckoutResult struct {
	// Path is the workspace path.
	Path string

	// Checksum is the recorded checksum for the path.
	Checksum checksum.Checksum

	// Linked is true when a link was (re)materialized; false when the
	// workspace copy already matched.
	Linked bool

	// Err is nil on success. ErrObjectNotFound (wrapped) means the object
	// must be pulled from a remote first.
	Err error
}

// Checkout materializes the given tracked files from the cache.
//
// For each spec, if the workspace copy is missing or does not match the
// recorded checksum, a cache link is created from the object store. A file
// that already matches is left untouched, keeping repeated checkouts no-ops
// with respect to file timestamps.
//
// Per-file failures (most importantly "cache object not found") are
// collected in the results instead of aborting the whole checkout.
//
// Parameters:
//   - ctx: Context for cancellation
//   - specs: Tracked files to materialize
//
// Returns:
//   - []CheckoutResult: One result per spec, in input order
//   - error: Only context cancellation; per-file errors are in the results
func (c *Cache) Checkout(ctx context.Context, specs []OutputSpec) ([]CheckoutResult, error) {
	results := make([]CheckoutResult, 0, len(specs))

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, c.checkoutOne(ctx, spec))
	}

	return results, nil
}

// checkoutOne materializes a single tracked file.
func (c *Cache) checkoutOne(ctx context.Context, spec OutputSpec) CheckoutResult {
	res := CheckoutResult{Path: spec.Path, Checksum: spec.Checksum}

	if spec.Checksum.IsZero() {
		res.Err = fmt.Errorf("path %s has no recorded checksum; run reproduction first", spec.Path)
		return res
	}

	// ========================================================================
	// Step 1: Skip files that already match the recorded checksum
	// ========================================================================

	current, err := c.sums.Checksum(ctx, spec.Path)
	switch {
	case err == nil && current == spec.Checksum:
		logger.Debug("checkout: %s already up to date", spec.Path)
		return res
	case err != nil && !errors.Is(err, checksum.ErrNotFound):
		// Permission and IO problems are reported as-is; a missing file just
		// means we materialize it below.
		res.Err = err
		return res
	}

	// ========================================================================
	// Step 2: Materialize a fresh link from the object store
	// ========================================================================

	if err := c.Link(ctx, spec.Checksum, spec.Path); err != nil {
		res.Err = err
		return res
	}

	res.Linked = true
	return res
}
