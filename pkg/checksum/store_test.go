package checksum

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittotrack/pkg/state"
)

// memStates is a minimal in-memory state.Store. The real memory
// implementation lives in pkg/state/memory, which cannot be imported here
// without a cycle.
type memStates struct {
	entries map[string]state.Entry
}

func newMemStates() *memStates {
	return &memStates{entries: make(map[string]state.Entry)}
}

func (m *memStates) Get(_ context.Context, path string) (*state.Entry, error) {
	entry, ok := m.entries[path]
	if !ok {
		return nil, state.ErrEntryNotFound
	}
	out := entry
	return &out, nil
}

func (m *memStates) Put(_ context.Context, entry *state.Entry) error {
	m.entries[entry.Path] = *entry
	return nil
}

func (m *memStates) Delete(_ context.Context, path string) error {
	delete(m.entries, path)
	return nil
}

func (m *memStates) Flush(context.Context) error { return nil }
func (m *memStates) Close() error                { return nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestChecksumMatchesContent(t *testing.T) {
	states := newMemStates()
	store := NewStore(states)
	path := writeFile(t, t.TempDir(), "data", "known content")

	sum, err := store.Checksum(context.Background(), path)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if sum != Sum([]byte("known content")) {
		t.Errorf("Checksum = %s, want %s", sum, Sum([]byte("known content")))
	}
}

// When the metadata triple still matches, the memoized checksum must be
// returned without reading the file. Proven by planting a sentinel value in
// the state entry: only the memoized path can surface it.
func TestChecksumMemoizesOnUnchangedMetadata(t *testing.T) {
	states := newMemStates()
	store := NewStore(states)
	path := writeFile(t, t.TempDir(), "data", "big file stand-in")

	if _, err := store.Checksum(context.Background(), path); err != nil {
		t.Fatalf("first Checksum: %v", err)
	}

	sentinel := Sum([]byte("sentinel"))
	entry := states.entries[path]
	entry.Checksum = string(sentinel)
	states.entries[path] = entry

	sum, err := store.Checksum(context.Background(), path)
	if err != nil {
		t.Fatalf("second Checksum: %v", err)
	}
	if sum != sentinel {
		t.Errorf("memoized checksum not used: got %s, want sentinel %s", sum, sentinel)
	}
}

func TestChecksumRecomputesOnChangedSize(t *testing.T) {
	states := newMemStates()
	store := NewStore(states)
	dir := t.TempDir()
	path := writeFile(t, dir, "data", "v1")

	if _, err := store.Checksum(context.Background(), path); err != nil {
		t.Fatalf("first Checksum: %v", err)
	}

	// Different size invalidates the entry regardless of mtime resolution.
	writeFile(t, dir, "data", "version two")

	sum, err := store.Checksum(context.Background(), path)
	if err != nil {
		t.Fatalf("second Checksum: %v", err)
	}
	if sum != Sum([]byte("version two")) {
		t.Errorf("stale checksum after content change: %s", sum)
	}
}

func TestChecksumMissingFile(t *testing.T) {
	store := NewStore(newMemStates())

	_, err := store.Checksum(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Fatal("NotFound must not satisfy ErrPermissionDenied")
	}
}

func TestChecksumDirectoryIsNotRegular(t *testing.T) {
	store := NewStore(newMemStates())

	_, err := store.Checksum(context.Background(), t.TempDir())
	if !errors.Is(err, ErrNotRegular) {
		t.Fatalf("err = %v, want ErrNotRegular", err)
	}
}

func TestChecksumPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root; permission bits are not enforced")
	}

	store := NewStore(newMemStates())
	path := writeFile(t, t.TempDir(), "secret", "hidden")
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	_, err := store.Checksum(context.Background(), path)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("PermissionDenied must not satisfy ErrNotFound")
	}
}

func TestInvalidateDropsEntry(t *testing.T) {
	states := newMemStates()
	store := NewStore(states)
	path := writeFile(t, t.TempDir(), "data", "content")

	if _, err := store.Checksum(context.Background(), path); err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if err := store.Invalidate(context.Background(), path); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := states.entries[path]; ok {
		t.Fatal("entry survived Invalidate")
	}
}

func TestRecordWritesEntryWithoutHashing(t *testing.T) {
	states := newMemStates()
	store := NewStore(states)
	path := writeFile(t, t.TempDir(), "data", "linked object")

	claimed := Sum([]byte("claimed"))
	if err := store.Record(context.Background(), path, claimed); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sum, err := store.Checksum(context.Background(), path)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if sum != claimed {
		t.Errorf("Checksum = %s, want recorded %s", sum, claimed)
	}
}
