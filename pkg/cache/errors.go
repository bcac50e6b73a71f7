package cache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/dittotrack/pkg/checksum"
)

// ============================================================================
// Standard Cache Errors
// ============================================================================

// Usage Pattern:
//
//	if err := cache.Checkout(ctx, outs); err != nil {
//	    if errors.Is(err, cache.ErrObjectNotFound) {
//	        // object must be pulled from a remote first
//	    }
//	}

var (
	// ErrObjectNotFound indicates the requested cache object is absent from
	// the local cache. Checkout reports this per path rather than failing
	// the whole operation; pull repairs it.
	ErrObjectNotFound = errors.New("cache object not found")

	// ErrChecksumMismatch indicates an integrity violation: stored bytes do
	// not match the checksum they are filed under, or recorded references
	// disagree. Never silently repaired; repair requires an explicit
	// reproduction re-run or a re-pull from remote.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// CorruptionError reports a verify failure, naming exactly which of the
// three checksum references diverged from the object's actual content:
// the object key, the state entry, and the referencing stage record.
type CorruptionError struct {
	// Object is the checksum the object is filed under (its key).
	Object checksum.Checksum

	// Actual is the checksum recomputed from the stored bytes.
	Actual checksum.Checksum

	// Diverged lists which references disagree with Actual, drawn from
	// "key", "state", "record".
	Diverged []string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("object %s is corrupt: actual content is %s, diverged from %s",
		e.Object, e.Actual, strings.Join(e.Diverged, ", "))
}

// Is makes CorruptionError match ErrChecksumMismatch under errors.Is.
func (e *CorruptionError) Is(target error) bool {
	return target == ErrChecksumMismatch
}
