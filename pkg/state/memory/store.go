// Package memory implements the State Entry table in process memory.
//
// Used by tests and by one-shot operations that do not want a database on
// disk. Entries do not survive the process; the only cost of losing them is
// re-hashing on the next run.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dittotrack/pkg/state"
)

// MemoryStateStore implements state.Store with a mutex-protected map.
type MemoryStateStore struct {
	mu      sync.RWMutex
	entries map[string]state.Entry
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		entries: make(map[string]state.Entry),
	}
}

// Get returns the entry recorded for path.
func (s *MemoryStateStore) Get(ctx context.Context, path string) (*state.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[path]
	if !ok {
		return nil, fmt.Errorf("path %s: %w", path, state.ErrEntryNotFound)
	}

	// Copy so callers cannot mutate the stored entry.
	out := entry
	return &out, nil
}

// Put records or replaces the entry for entry.Path.
func (s *MemoryStateStore) Put(ctx context.Context, entry *state.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Path] = *entry
	return nil
}

// Delete removes the entry for path. Deleting a missing entry succeeds.
func (s *MemoryStateStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, path)
	return nil
}

// Flush is a no-op for the in-memory store.
func (s *MemoryStateStore) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op for the in-memory store.
func (s *MemoryStateStore) Close() error {
	return nil
}
