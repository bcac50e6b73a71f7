package badger

import (
	"context"
	"testing"

	"github.com/marmos91/dittotrack/pkg/state"
	"github.com/marmos91/dittotrack/pkg/state/statetest"
)

func newStore(t *testing.T, cfg Config) *BadgerStateStore {
	t.Helper()

	store, err := NewBadgerStateStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewBadgerStateStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStateStoreInMemory(t *testing.T) {
	suite := &statetest.StoreTestSuite{
		NewStore: func(t *testing.T) state.Store {
			return newStore(t, Config{InMemory: true})
		},
	}
	suite.Run(t)
}

func TestBadgerStateStoreOnDisk(t *testing.T) {
	suite := &statetest.StoreTestSuite{
		NewStore: func(t *testing.T) state.Store {
			return newStore(t, Config{DBPath: t.TempDir()})
		},
	}
	suite.Run(t)
}

// Entries must survive a close/reopen cycle when backed by disk.
func TestBadgerStateStorePersistence(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStateStore(context.Background(), Config{DBPath: dir})
	if err != nil {
		t.Fatalf("NewBadgerStateStore: %v", err)
	}

	entry := &state.Entry{
		Path:      "/data/big.bin",
		Size:      1 << 30,
		MtimeNano: 1700000000000000000,
		Inode:     99,
		Checksum:  "sha256:0123abcd",
	}
	if err := store.Put(context.Background(), entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := newStore(t, Config{DBPath: dir})
	got, err := reopened.Get(context.Background(), entry.Path)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if *got != *entry {
		t.Errorf("Get = %+v, want %+v", got, entry)
	}
}
