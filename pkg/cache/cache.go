// Package cache implements the content-addressable object cache.
//
// Objects are stored write-once under a path derived from their checksum
// (two hex characters as a shard directory, the remainder as the object
// name). The cache exclusively owns the canonical bytes; workspace copies
// are disposable links materialized by checkout. A cache object's stored
// bytes must always match the checksum encoded in its key: objects are
// never mutated, only added or garbage-collected.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/checksum"
)

// objectMode is the permission mode for cache objects and workspace links.
// Read-only is the guard against a user editing a hardlinked workspace file
// and unknowingly corrupting the shared cache object.
const objectMode = 0o444

// Cache is the local content-addressable object store.
//
// Thread Safety:
// Safe for concurrent use. Writers take a per-key lock, so two workers that
// discover the same missing object concurrently serialize on that key and
// the second one detects existence and skips.
type Cache struct {
	root  string
	sums  *checksum.Store
	links LinkType

	// keyLocks serializes writers per object key.
	keyLocks struct {
		mu sync.Mutex
		m  map[checksum.Checksum]*sync.Mutex
	}
}

// Config contains configuration for opening a cache.
type Config struct {
	// Dir is the cache root directory (created if missing).
	Dir string

	// Links selects the workspace link strategy (default: LinkAuto).
	Links LinkType
}

// New opens (creating if necessary) the cache rooted at cfg.Dir.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Cache configuration
//   - sums: Checksum store used for hashing and staleness checks
//
// Returns:
//   - *Cache: Cache ready for use
//   - error: Directory creation failure or context cancellation
func New(ctx context.Context, cfg Config, sums *checksum.Store) (*Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		root:  cfg.Dir,
		sums:  sums,
		links: cfg.Links,
	}
	c.keyLocks.m = make(map[checksum.Checksum]*sync.Mutex)

	return c, nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// ObjectPath returns the filesystem path of the object for sum.
func (c *Cache) ObjectPath(sum checksum.Checksum) string {
	return filepath.Join(c.root, filepath.FromSlash(sum.Key()))
}

// HasObject reports whether the object for sum is present locally.
func (c *Cache) HasObject(sum checksum.Checksum) bool {
	if sum.IsZero() {
		return false
	}
	_, err := os.Stat(c.ObjectPath(sum))
	return err == nil
}

// lockKey returns the mutex guarding writes to one object key.
func (c *Cache) lockKey(sum checksum.Checksum) *sync.Mutex {
	c.keyLocks.mu.Lock()
	defer c.keyLocks.mu.Unlock()

	mu, ok := c.keyLocks.m[sum]
	if !ok {
		mu = &sync.Mutex{}
		c.keyLocks.m[sum] = mu
	}
	return mu
}

// Add hashes the file at path, stores its bytes under the checksum-derived
// key if not already present, then replaces the workspace file with a
// read-only cache link.
//
// Adding the same content twice is a no-op after the first: the second add
// detects the existing object and only refreshes the workspace link.
//
// Crash Safety:
// The object is written to a temporary file in the shard directory and
// renamed into place, so a crash mid-add never leaves a partial object under
// a valid key.
//
// Parameters:
//   - ctx: Context for cancellation
//   - path: Workspace file to add
//
// Returns:
//   - checksum.Checksum: Content digest the object is stored under
//   - error: Hashing, copy, or link errors; context cancellation
func (c *Cache) Add(ctx context.Context, path string) (checksum.Checksum, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// ========================================================================
	// Step 1: Hash the workspace file (memoized via the state table)
	// ========================================================================

	sum, err := c.sums.Checksum(ctx, path)
	if err != nil {
		return "", err
	}

	// ========================================================================
	// Step 2: Ingest the object under its key (per-key lock, idempotent)
	// ========================================================================

	mu := c.lockKey(sum)
	mu.Lock()
	ingestErr := c.ingest(ctx, path, sum)
	mu.Unlock()
	if ingestErr != nil {
		return "", ingestErr
	}

	// ========================================================================
	// Step 3: Replace the workspace file with a cache link
	// ========================================================================

	if err := c.Link(ctx, sum, path); err != nil {
		return "", err
	}

	return sum, nil
}

// ingest copies path's bytes into the cache under sum, unless the object
// already exists. Caller must hold the key lock.
func (c *Cache) ingest(ctx context.Context, path string, sum checksum.Checksum) error {
	objPath := c.ObjectPath(sum)

	if _, err := os.Stat(objPath); err == nil {
		// Object already present; adds are idempotent.
		logger.Debug("cache: object %s already present, skipping ingest", sum)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat cache object: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for ingest: %w", path, err)
	}
	defer src.Close()

	// Write to a temp file in the same directory so the final rename is
	// atomic on the same filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(objPath), ".ingest-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary object: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	// Hash while copying: if the file changed between checksum time and
	// ingest time the digests diverge and the partial object is discarded
	// instead of being filed under a wrong key.
	actual, _, err := copyAndHash(ctx, tmp, src)
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to copy %s into cache: %w", path, err)
	}
	if actual != sum {
		cleanup()
		return fmt.Errorf("file %s changed while being added (expected %s, copied %s): %w",
			path, sum, actual, ErrChecksumMismatch)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize temporary object: %w", err)
	}

	if err := os.Chmod(tmpPath, objectMode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to mark object read-only: %w", err)
	}

	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move object into cache: %w", err)
	}

	return nil
}

// PutReader streams r into the cache under the expected checksum.
//
// Used by pull: the bytes are hashed while streaming and the object is only
// installed if the digest matches, so a corrupted or truncated transfer
// never becomes a visible cache object.
func (c *Cache) PutReader(ctx context.Context, expected checksum.Checksum, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mu := c.lockKey(expected)
	mu.Lock()
	defer mu.Unlock()

	objPath := c.ObjectPath(expected)
	if _, err := os.Stat(objPath); err == nil {
		// Someone else installed it first; drain nothing, just skip.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(objPath), ".pull-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary object: %w", err)
	}
	tmpPath := tmp.Name()

	actual, _, err := copyAndHash(ctx, tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to stream object %s: %w", expected, err)
	}
	if actual != expected {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("transfer of %s produced %s: %w", expected, actual, ErrChecksumMismatch)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize temporary object: %w", err)
	}
	if err := os.Chmod(tmpPath, objectMode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to mark object read-only: %w", err)
	}
	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move object into cache: %w", err)
	}

	return nil
}

// OpenObject returns a reader over the stored bytes for sum.
//
// Returns ErrObjectNotFound (wrapped) if the object is absent.
func (c *Cache) OpenObject(ctx context.Context, sum checksum.Checksum) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(c.ObjectPath(sum))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", sum, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open object %s: %w", sum, err)
	}

	return file, nil
}

// ListObjects returns the checksums of every object present in the cache.
//
// The walk checks the context periodically so listing a huge cache remains
// cancellable.
func (c *Cache) ListObjects(ctx context.Context) ([]checksum.Checksum, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sums []checksum.Checksum

	shards, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}

		entries, err := os.ReadDir(filepath.Join(c.root, shard.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read shard %s: %w", shard.Name(), err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			sum, err := checksum.FromKey(shard.Name() + "/" + entry.Name())
			if err != nil {
				// Temp files from interrupted ingests are not objects.
				logger.Debug("cache: skipping non-object file %s/%s", shard.Name(), entry.Name())
				continue
			}
			sums = append(sums, sum)
		}
	}

	return sums, nil
}

// copyAndHash copies src to dst, hashing the bytes as they pass through and
// checking the context between chunks.
func copyAndHash(ctx context.Context, dst io.Writer, src io.Reader) (checksum.Checksum, int64, error) {
	h := checksum.New()
	buf := make([]byte, 1*1024*1024)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", total, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			h.Write(buf[:n])
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return "", total, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", total, rerr
		}
	}

	return checksum.FromDigest(h.Sum(nil)), total, nil
}
