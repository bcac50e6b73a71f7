package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/marmos91/dittotrack/pkg/checksum"
)

// LinkType selects how workspace copies are materialized from cache objects.
//
// Hardlinks make checkout of very large files near-instant (O(1) instead of
// O(size)) but require workspace and cache on the same filesystem. Symlinks
// are O(1) everywhere but leak the cache location into the workspace. Copy
// always works and is the documented slower fallback.
type LinkType int

const (
	// LinkAuto tries hardlink, then symlink, then copy.
	LinkAuto LinkType = iota

	// LinkHardlink uses hardlinks only.
	LinkHardlink

	// LinkSymlink uses symlinks only.
	LinkSymlink

	// LinkCopy copies object bytes into the workspace.
	LinkCopy
)

// ParseLinkType parses the configuration spelling of a link type.
func ParseLinkType(s string) (LinkType, error) {
	switch s {
	case "", "auto":
		return LinkAuto, nil
	case "hardlink":
		return LinkHardlink, nil
	case "symlink":
		return LinkSymlink, nil
	case "copy":
		return LinkCopy, nil
	default:
		return LinkAuto, fmt.Errorf("unknown link type %q (want auto, hardlink, symlink or copy)", s)
	}
}

func (t LinkType) String() string {
	switch t {
	case LinkHardlink:
		return "hardlink"
	case LinkSymlink:
		return "symlink"
	case LinkCopy:
		return "copy"
	default:
		return "auto"
	}
}

// Link materializes the object for sum at the workspace path, replacing
// whatever is there, and records the resulting metadata in the state table
// so the link is not re-hashed on the next staleness check.
//
// The materialized file is read-only: the cache owns the canonical bytes and
// the workspace copy is a disposable view.
//
// Parameters:
//   - ctx: Context for cancellation
//   - sum: Object to materialize
//   - path: Workspace destination
//
// Returns:
//   - error: ErrObjectNotFound if the object is absent, link/copy failures,
//     or context cancellation
func (c *Cache) Link(ctx context.Context, sum checksum.Checksum, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	objPath := c.ObjectPath(sum)
	if _, err := os.Stat(objPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("object %s: %w", sum, ErrObjectNotFound)
		}
		return fmt.Errorf("failed to stat object %s: %w", sum, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}

	// Remove the existing workspace file first: hardlinking over an existing
	// path fails, and the old content is either identical (already cached)
	// or stale.
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s before linking: %w", path, err)
	}

	if err := c.materialize(ctx, objPath, path); err != nil {
		return err
	}

	// Memoize the link's checksum so checkout does not trigger a re-hash of
	// content we just materialized from a verified object.
	if err := c.sums.Record(ctx, path, sum); err != nil {
		return fmt.Errorf("failed to record state for %s: %w", path, err)
	}

	return nil
}

// materialize creates path from objPath according to the configured link
// strategy.
func (c *Cache) materialize(ctx context.Context, objPath, path string) error {
	switch c.links {
	case LinkHardlink:
		if err := os.Link(objPath, path); err != nil {
			return fmt.Errorf("failed to hardlink %s: %w", path, err)
		}
		return nil

	case LinkSymlink:
		return symlinkAbs(objPath, path)

	case LinkCopy:
		return copyObject(ctx, objPath, path)

	default: // LinkAuto
		if err := os.Link(objPath, path); err == nil {
			return nil
		}
		if err := symlinkAbs(objPath, path); err == nil {
			return nil
		}
		return copyObject(ctx, objPath, path)
	}
}

// symlinkAbs symlinks path to the absolute object path, so the link survives
// the process changing directories.
func symlinkAbs(objPath, path string) error {
	abs, err := filepath.Abs(objPath)
	if err != nil {
		return fmt.Errorf("failed to resolve object path: %w", err)
	}
	if err := os.Symlink(abs, path); err != nil {
		return fmt.Errorf("failed to symlink %s: %w", path, err)
	}
	return nil
}

// copyObject copies object bytes to path and marks the copy read-only.
func copyObject(ctx context.Context, objPath, path string) error {
	src, err := os.Open(objPath)
	if err != nil {
		return fmt.Errorf("failed to open object for copy: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := copyWithContext(ctx, dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("failed to copy object to %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	if err := os.Chmod(path, objectMode); err != nil {
		return fmt.Errorf("failed to mark %s read-only: %w", path, err)
	}

	return nil
}

// copyWithContext copies src to dst in chunks, checking the context between
// chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 1*1024*1024)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
