// Package statetest provides a reusable test suite for state.Store
// implementations.
package statetest

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittotrack/pkg/state"
)

// StoreTestSuite exercises the state table contract against a fresh store
// per test.
type StoreTestSuite struct {
	// NewStore is a factory that creates a fresh, empty Store for each
	// test; it must register cleanup (Close) with t.
	NewStore func(t *testing.T) state.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("GetMissing", suite.TestGetMissing)
	t.Run("PutGetRoundtrip", suite.TestPutGetRoundtrip)
	t.Run("PutReplaces", suite.TestPutReplaces)
	t.Run("Delete", suite.TestDelete)
	t.Run("DeleteMissingIsNoop", suite.TestDeleteMissingIsNoop)
	t.Run("FlushSucceeds", suite.TestFlushSucceeds)
}

func sampleEntry(path string) *state.Entry {
	return &state.Entry{
		Path:      path,
		Size:      42,
		MtimeNano: 1700000000000000000,
		Inode:     7,
		Checksum:  "sha256:deadbeef",
	}
}

func (suite *StoreTestSuite) TestGetMissing(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.Get(context.Background(), "/no/entry")
	if !errors.Is(err, state.ErrEntryNotFound) {
		t.Fatalf("Get missing = %v, want ErrEntryNotFound", err)
	}
}

func (suite *StoreTestSuite) TestPutGetRoundtrip(t *testing.T) {
	store := suite.NewStore(t)

	want := sampleEntry("/data/file.bin")
	if err := store.Put(context.Background(), want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(context.Background(), want.Path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got != *want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func (suite *StoreTestSuite) TestPutReplaces(t *testing.T) {
	store := suite.NewStore(t)

	entry := sampleEntry("/data/file.bin")
	if err := store.Put(context.Background(), entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry.Size = 100
	entry.Checksum = "sha256:cafebabe"
	if err := store.Put(context.Background(), entry); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := store.Get(context.Background(), entry.Path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Size != 100 || got.Checksum != "sha256:cafebabe" {
		t.Errorf("entry not replaced: %+v", got)
	}
}

func (suite *StoreTestSuite) TestDelete(t *testing.T) {
	store := suite.NewStore(t)

	entry := sampleEntry("/data/file.bin")
	if err := store.Put(context.Background(), entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(context.Background(), entry.Path); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := store.Get(context.Background(), entry.Path); !errors.Is(err, state.ErrEntryNotFound) {
		t.Fatalf("Get after delete = %v, want ErrEntryNotFound", err)
	}
}

func (suite *StoreTestSuite) TestDeleteMissingIsNoop(t *testing.T) {
	store := suite.NewStore(t)

	if err := store.Delete(context.Background(), "/never/existed"); err != nil {
		t.Fatalf("Delete missing = %v, want nil", err)
	}
}

func (suite *StoreTestSuite) TestFlushSucceeds(t *testing.T) {
	store := suite.NewStore(t)

	if err := store.Put(context.Background(), sampleEntry("/data/file.bin")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
