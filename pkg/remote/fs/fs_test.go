package fs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittotrack/pkg/remote"
	"github.com/marmos91/dittotrack/pkg/remote/remotetest"
)

func TestFSRemote(t *testing.T) {
	suite := &remotetest.RemoteTestSuite{
		NewRemote: func(t *testing.T) remote.Remote {
			r, err := NewFSRemote(context.Background(), t.TempDir())
			if err != nil {
				t.Fatalf("NewFSRemote: %v", err)
			}
			return r
		},
	}
	suite.Run(t)
}

func TestFSRemoteCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "remote")

	r, err := NewFSRemote(context.Background(), base)
	if err != nil {
		t.Fatalf("NewFSRemote: %v", err)
	}

	if err := r.Put(context.Background(), "ab/cd", bytes.NewReader([]byte("x")), 1); err != nil {
		t.Fatalf("Put: %v", err)
	}

	exists, err := r.Exists(context.Background(), "ab/cd")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}
}

func TestFSRemoteListSkipsTempFiles(t *testing.T) {
	base := t.TempDir()

	r, err := NewFSRemote(context.Background(), base)
	if err != nil {
		t.Fatalf("NewFSRemote: %v", err)
	}

	if err := r.Put(context.Background(), "ab/cd", bytes.NewReader([]byte("x")), 1); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A leftover temp file from an interrupted transfer must not surface
	// as a key.
	if err := os.WriteFile(filepath.Join(base, "ab", ".put-123456"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	keys, err := r.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 || keys[0] != "ab/cd" {
		t.Fatalf("List = %v, want [ab/cd]", keys)
	}
}
