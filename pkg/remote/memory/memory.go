// Package memory implements the remote capability surface in process
// memory. Used by tests and as the reference implementation of the
// interface contract.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/marmos91/dittotrack/pkg/remote"
)

// MemoryRemote implements remote.Remote with a mutex-protected map.
type MemoryRemote struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// failing simulates a transport outage for tests.
	failing bool
}

// NewMemoryRemote creates an empty in-memory remote.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		objects: make(map[string][]byte),
	}
}

// SetFailing toggles simulated transport failure; while failing, every
// operation returns remote.ErrUnavailable.
func (r *MemoryRemote) SetFailing(failing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = failing
}

// Len returns the number of stored objects.
func (r *MemoryRemote) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

func (r *MemoryRemote) unavailable() error {
	if r.failing {
		return fmt.Errorf("simulated outage: %w", remote.ErrUnavailable)
	}
	return nil
}

// Exists reports whether key is present.
func (r *MemoryRemote) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.unavailable(); err != nil {
		return false, err
	}
	_, ok := r.objects[key]
	return ok, nil
}

// Put stores the stream under key.
func (r *MemoryRemote) Put(ctx context.Context, key string, reader io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read stream for key %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.unavailable(); err != nil {
		return err
	}
	r.objects[key] = data
	return nil
}

// Get returns a reader over the bytes stored under key.
func (r *MemoryRemote) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.unavailable(); err != nil {
		return nil, err
	}

	data, ok := r.objects[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, remote.ErrKeyNotFound)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// List returns every key with the given prefix.
func (r *MemoryRemote) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.unavailable(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(r.objects))
	for key := range r.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
