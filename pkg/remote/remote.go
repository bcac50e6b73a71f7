// Package remote defines the uniform capability surface every remote object
// store must expose: exists, put, get, list.
//
// The sync protocol never depends on backend-specific semantics beyond this
// interface, so adding a backend (object storage, mounted network
// filesystem, in-memory fake) is a matter of implementing four methods and
// registering a factory. Backend selection is a configuration concern;
// dispatch is plain Go interface polymorphism, not an inheritance hierarchy.
//
// Keys are the sharded object keys produced by checksum.Checksum.Key, the
// same layout the local cache uses, so local/remote delta computation is a
// set comparison over identical key spaces. Remotes are content-addressed:
// re-uploading an existing key is harmless by construction, which is what
// makes push/pull safe to re-run after interruption.
package remote

import (
	"context"
	"errors"
	"io"
)

// ============================================================================
// Standard Remote Errors
// ============================================================================

var (
	// ErrKeyNotFound indicates the requested key is absent from the remote.
	ErrKeyNotFound = errors.New("remote key not found")

	// ErrUnavailable indicates a transport-level failure: the backend could
	// not be reached or refused the operation. Transient; retrying the same
	// command resumes where it left off.
	ErrUnavailable = errors.New("remote unavailable")
)

// Remote is the capability set a backend must implement.
//
// Thread Safety:
// Implementations must be safe for concurrent use: the sync worker pool
// issues bounded-parallel calls against a single Remote.
type Remote interface {
	// Exists reports whether key is present.
	//
	// Absence is (false, nil), never an error; errors are reserved for
	// transport failures.
	Exists(ctx context.Context, key string) (bool, error)

	// Put stores the stream under key. Keys are content-addressed, so
	// overwriting an existing key with the same bytes is harmless; partial
	// writes must never become visible under the key.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get returns a reader over the bytes stored under key.
	//
	// Returns ErrKeyNotFound (possibly wrapped) when the key is absent.
	// The caller owns closing the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns every key with the given prefix ("" lists everything).
	List(ctx context.Context, prefix string) ([]string, error)
}
