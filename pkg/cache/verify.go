package cache

import (
	"context"
	"fmt"

	"github.com/marmos91/dittotrack/pkg/checksum"
)

// Reference carries the checksums recorded for one object by the structures
// that reference it: the state entry of its workspace link and the stage
// record that declared it. A zero checksum means "no such reference" and is
// excluded from the comparison.
type Reference struct {
	State  checksum.Checksum
	Record checksum.Checksum
}

// Verify recomputes the actual checksum of the stored bytes for object and
// compares it against (i) the object's key, (ii) the recorded state entry,
// (iii) the checksum in the referencing stage record.
//
// A mismatch is reported as a CorruptionError naming exactly which of the
// three diverged. Verification never repairs: auto-repair could mask real
// corruption, so repair requires an explicit reproduction re-run or a
// re-pull from remote.
//
// Parameters:
//   - ctx: Context for cancellation
//   - object: Checksum key of the object to verify
//   - ref: Checksums recorded by state entry and stage record (zero = absent)
//
// Returns:
//   - error: nil if all present references agree with the stored bytes;
//     *CorruptionError on divergence; ErrObjectNotFound if the object is
//     absent
func (c *Cache) Verify(ctx context.Context, object checksum.Checksum, ref Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reader, err := c.OpenObject(ctx, object)
	if err != nil {
		return err
	}
	defer reader.Close()

	actual, _, err := copyAndHash(ctx, discardWriter{}, reader)
	if err != nil {
		return fmt.Errorf("failed to hash object %s: %w", object, err)
	}

	var diverged []string
	if actual != object {
		diverged = append(diverged, "key")
	}
	if !ref.State.IsZero() && actual != ref.State {
		diverged = append(diverged, "state")
	}
	if !ref.Record.IsZero() && actual != ref.Record {
		diverged = append(diverged, "record")
	}

	if len(diverged) > 0 {
		return &CorruptionError{
			Object:   object,
			Actual:   actual,
			Diverged: diverged,
		}
	}

	return nil
}

// discardWriter is an io.Writer that drops everything; Verify only needs the
// hashing side of copyAndHash.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) {
	return len(p), nil
}
