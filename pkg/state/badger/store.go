// Package badger implements the State Entry table on BadgerDB.
//
// BadgerDB gives the table persistence across process runs with crash
// recovery (WAL-based), which is what makes re-invocation fast for unchanged
// large files: the memoized checksums survive restarts.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittotrack/pkg/state"
)

// entryKeyPrefix namespaces state entries inside the database so future
// record types can share the same DB without key collisions.
const entryKeyPrefix = "entry/"

// BadgerStateStore implements state.Store using BadgerDB for persistence.
//
// Storage Model:
// One key per workspace path ("entry/<path>"), value is the JSON-encoded
// state.Entry. Point lookups are O(1); the table is small (one record per
// tracked file), so JSON overhead is irrelevant next to file hashing.
//
// Thread Safety:
// BadgerDB transactions provide isolation; all operations here are
// single-key, so concurrent worker-pool writers never conflict on different
// paths and last-write-wins on the same path, which is correct for
// memoization data.
type BadgerStateStore struct {
	db       *badger.DB
	inMemory bool
}

// Config contains configuration for creating a BadgerDB state store.
type Config struct {
	// DBPath is the directory where BadgerDB will store its files.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without disk persistence. Used by tests.
	InMemory bool `mapstructure:"in_memory"`
}

// NewBadgerStateStore opens (creating if necessary) the state database.
//
// The options are tuned for the state-table workload: many small values,
// point lookups, no range-scan pressure, so compression is disabled and the
// default caches are left small.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Store configuration
//
// Returns:
//   - *BadgerStateStore: Store ready for use
//   - error: Database open failure or context cancellation
func NewBadgerStateStore(ctx context.Context, cfg Config) (*BadgerStateStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING) // Reduce log noise
	opts = opts.WithCompression(options.None)    // Entries are tiny, compression overhead not worth it

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database at %s: %w", cfg.DBPath, err)
	}

	return &BadgerStateStore{db: db, inMemory: cfg.InMemory}, nil
}

// entryKey returns the database key for a workspace path.
func entryKey(path string) []byte {
	return []byte(entryKeyPrefix + path)
}

// Get returns the entry recorded for path.
//
// Returns state.ErrEntryNotFound (wrapped) when no entry exists.
func (s *BadgerStateStore) Get(ctx context.Context, path string) (*state.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry state.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("path %s: %w", path, state.ErrEntryNotFound)
		}
		return nil, fmt.Errorf("failed to read state entry: %w", err)
	}

	return &entry, nil
}

// Put records or replaces the entry for entry.Path.
func (s *BadgerStateStore) Put(ctx context.Context, entry *state.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode state entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.Path), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write state entry: %w", err)
	}

	return nil
}

// Delete removes the entry for path. Deleting a missing entry succeeds.
func (s *BadgerStateStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(path))
	})
	if err != nil {
		return fmt.Errorf("failed to delete state entry: %w", err)
	}

	return nil
}

// Flush forces buffered writes to disk.
func (s *BadgerStateStore) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// In-memory databases have nothing to sync.
	if s.inMemory {
		return nil
	}

	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("failed to sync state database: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *BadgerStateStore) Close() error {
	return s.db.Close()
}
