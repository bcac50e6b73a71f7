// Package fs implements the remote capability surface on a plain directory.
//
// The directory can be anything the OS can mount: a local path, an NFS or
// SSHFS mount, a distributed filesystem. That covers every "remote
// filesystem" backend with a single implementation; only true object stores
// need their own adapter.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittotrack/pkg/remote"
)

// FSRemote implements remote.Remote on a directory tree.
//
// Keys map directly to slash-separated paths under the base directory, so
// the remote mirrors the local cache layout and is inspectable with ls.
type FSRemote struct {
	basePath string
}

// NewFSRemote creates a directory-backed remote rooted at basePath,
// creating the directory if needed.
func NewFSRemote(ctx context.Context, basePath string) (*FSRemote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create remote directory: %w", err)
	}

	return &FSRemote{basePath: basePath}, nil
}

// keyPath maps a key to its path under the base directory.
func (r *FSRemote) keyPath(key string) string {
	return filepath.Join(r.basePath, filepath.FromSlash(key))
}

// Exists reports whether key is present.
func (r *FSRemote) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(r.keyPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat remote key %s: %w", key, err)
	}

	return true, nil
}

// Put stores the stream under key via a temp file and rename, so an
// interrupted transfer never leaves a partial object under a valid key.
func (r *FSRemote) Put(ctx context.Context, key string, reader io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := r.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create remote shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary remote object: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write remote key %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize remote key %s: %w", key, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish remote key %s: %w", key, err)
	}

	return nil
}

// Get returns a reader over the bytes stored under key.
func (r *FSRemote) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(r.keyPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("key %s: %w", key, remote.ErrKeyNotFound)
		}
		return nil, fmt.Errorf("failed to open remote key %s: %w", key, err)
	}

	return file, nil
}

// List returns every key with the given prefix.
func (r *FSRemote) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string

	err := filepath.WalkDir(r.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		// Skip in-flight temp files from interrupted puts.
		if strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}

		rel, err := filepath.Rel(r.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list remote keys: %w", err)
	}

	return keys, nil
}
