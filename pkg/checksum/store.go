package checksum

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/marmos91/dittotrack/pkg/state"
)

// Store computes per-file content checksums, memoized through the State
// Entry table.
//
// Contract:
// Checksum(path) first consults the state entry for the path; if the entry
// exists and its (mtime, inode, size) triple matches the live file, the
// memoized checksum is returned without reading file content. Otherwise the
// file is stream-hashed and the entry updated. This is what keeps repeated
// invocations cheap: a 50 GB dependency is only re-read when its metadata
// changed.
//
// Thread Safety:
// Safe for concurrent use. Two workers hashing the same path concurrently
// both compute the same checksum and race benignly on the entry update.
type Store struct {
	states state.Store
}

// NewStore creates a checksum store backed by the given state table.
func NewStore(states state.Store) *Store {
	return &Store{states: states}
}

// Checksum returns the content checksum of the file at path.
//
// Failure modes are kept distinct so callers can report them precisely:
//   - ErrNotFound: the file does not exist
//   - ErrPermissionDenied: the file exists but cannot be stat'd or read
//   - ErrNotRegular: the path is a directory or special file
//
// Parameters:
//   - ctx: Context for cancellation (hashing a large file checks it per chunk)
//   - path: File to checksum
//
// Returns:
//   - Checksum: Content digest (memoized or freshly computed)
//   - error: Classified stat/read error or context cancellation
func (s *Store) Checksum(ctx context.Context, path string) (Checksum, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// ========================================================================
	// Step 1: Stat the file and classify failures
	// ========================================================================

	info, err := os.Stat(path)
	if err != nil {
		return "", classifyPathError(path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("path %s: %w", path, ErrNotRegular)
	}

	// ========================================================================
	// Step 2: Consult the state entry; trust it only if metadata matches
	// ========================================================================

	id := fileID(info)

	entry, err := s.states.Get(ctx, path)
	if err == nil && entryMatches(entry, info, id) {
		return Checksum(entry.Checksum), nil
	}
	if err != nil && !errors.Is(err, state.ErrEntryNotFound) {
		// A broken state table must not block hashing; fall through and
		// recompute. The fresh Put below repairs the entry.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
	}

	// ========================================================================
	// Step 3: Stream-hash the file content
	// ========================================================================

	file, err := os.Open(path)
	if err != nil {
		return "", classifyPathError(path, err)
	}
	defer file.Close()

	sum, _, err := HashReader(ctx, file)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	// ========================================================================
	// Step 4: Memoize with the metadata observed before hashing
	// ========================================================================

	// Using the pre-hash stat means a file modified mid-hash yields a stale
	// entry that self-invalidates on the next metadata check.
	newEntry := &state.Entry{
		Path:      path,
		Size:      info.Size(),
		MtimeNano: info.ModTime().UnixNano(),
		Inode:     id,
		Checksum:  string(sum),
	}
	if err := s.states.Put(ctx, newEntry); err != nil {
		return "", fmt.Errorf("failed to update state entry for %s: %w", path, err)
	}

	return sum, nil
}

// Invalidate drops the memoized entry for path.
//
// Called when the engine knows the file changed identity (checkout replaced
// the workspace copy with a cache link) so the next checksum re-stats from
// scratch.
func (s *Store) Invalidate(ctx context.Context, path string) error {
	return s.states.Delete(ctx, path)
}

// Record force-writes a state entry for path using its current metadata and
// the given checksum.
//
// Used after cache link materialization, where the content checksum is
// already known and re-hashing the linked file would defeat the point of
// linking.
func (s *Store) Record(ctx context.Context, path string, sum Checksum) error {
	info, err := os.Stat(path)
	if err != nil {
		return classifyPathError(path, err)
	}

	return s.states.Put(ctx, &state.Entry{
		Path:      path,
		Size:      info.Size(),
		MtimeNano: info.ModTime().UnixNano(),
		Inode:     fileID(info),
		Checksum:  string(sum),
	})
}

// entryMatches reports whether the memoized entry is still valid for the
// observed file metadata.
func entryMatches(entry *state.Entry, info os.FileInfo, id uint64) bool {
	return entry.Size == info.Size() &&
		entry.MtimeNano == info.ModTime().UnixNano() &&
		entry.Inode == id &&
		entry.Checksum != ""
}

// classifyPathError maps an os error to the package's sentinel errors,
// preserving the distinction between "missing" and "unreadable".
func classifyPathError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("path %s: %w", path, ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("path %s: %w", path, ErrPermissionDenied)
	default:
		return fmt.Errorf("path %s: %w", path, err)
	}
}
