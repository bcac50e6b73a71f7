package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/marmos91/dittotrack/pkg/checksum"
)

// corruptObject rewrites the stored bytes for sum in place, bypassing the
// write-once permissions, so verification has something to find.
func corruptObject(t *testing.T, c *Cache, sum checksum.Checksum, content string) {
	t.Helper()
	objPath := c.ObjectPath(sum)
	if err := os.Chmod(objPath, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.WriteFile(objPath, []byte(content), 0o444); err != nil {
		t.Fatalf("rewriting object: %v", err)
	}
}

func TestVerifyCleanObject(t *testing.T) {
	c := newTestCache(t, LinkCopy)
	path := writeWorkspaceFile(t, t.TempDir(), "data", "intact")

	sum, err := c.Add(context.Background(), path)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := c.Verify(context.Background(), sum, Reference{State: sum, Record: sum}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyDetectsBitRot(t *testing.T) {
	c := newTestCache(t, LinkCopy)
	path := writeWorkspaceFile(t, t.TempDir(), "data", "original")

	sum, err := c.Add(context.Background(), path)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	corruptObject(t, c, sum, "rotted")

	err = c.Verify(context.Background(), sum, Reference{State: sum, Record: sum})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}

	var corrupt *CorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("err %T does not unwrap to *CorruptionError", err)
	}
	// All three references point at the original content; all three diverge.
	if !reflect.DeepEqual(corrupt.Diverged, []string{"key", "state", "record"}) {
		t.Errorf("Diverged = %v", corrupt.Diverged)
	}
	if corrupt.Actual != checksum.Sum([]byte("rotted")) {
		t.Errorf("Actual = %s", corrupt.Actual)
	}
}

func TestVerifyNamesOnlyDivergedReferences(t *testing.T) {
	c := newTestCache(t, LinkCopy)
	path := writeWorkspaceFile(t, t.TempDir(), "data", "content")

	sum, err := c.Add(context.Background(), path)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Object bytes still match the key; only the stage record disagrees.
	stale := checksum.Sum([]byte("older version"))
	err = c.Verify(context.Background(), sum, Reference{State: sum, Record: stale})

	var corrupt *CorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("err = %v, want *CorruptionError", err)
	}
	if !reflect.DeepEqual(corrupt.Diverged, []string{"record"}) {
		t.Errorf("Diverged = %v, want [record]", corrupt.Diverged)
	}
}

func TestVerifyIgnoresZeroReferences(t *testing.T) {
	c := newTestCache(t, LinkCopy)
	path := writeWorkspaceFile(t, t.TempDir(), "data", "content")

	sum, err := c.Add(context.Background(), path)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Absent references are excluded from the comparison, not treated as
	// mismatches.
	if err := c.Verify(context.Background(), sum, Reference{}); err != nil {
		t.Fatalf("Verify with zero references: %v", err)
	}
}

func TestVerifyMissingObject(t *testing.T) {
	c := newTestCache(t, LinkCopy)

	err := c.Verify(context.Background(), checksum.Sum([]byte("gone")), Reference{})
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestLinkRecordsStateForMaterializedFile(t *testing.T) {
	c := newTestCache(t, LinkCopy)
	dir := t.TempDir()
	path := writeWorkspaceFile(t, dir, "data", "linked")

	sum, err := c.Add(context.Background(), path)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	dest := filepath.Join(dir, "copy")
	if err := c.Link(context.Background(), sum, dest); err != nil {
		t.Fatalf("Link: %v", err)
	}

	got, err := c.sums.Checksum(context.Background(), dest)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if got != sum {
		t.Errorf("materialized link hashes to %s, want %s", got, sum)
	}
}
