// Package state defines the State Entry table: a persisted mapping from
// workspace paths to memoized filesystem metadata and checksums.
//
// The table is what makes repeated invocations fast: a 50 GB file is only
// re-read when its (mtime, inode, size) triple changed since the entry was
// recorded. Entries are never a source of truth by themselves: the checksum
// store always re-validates them against live filesystem metadata before
// trusting the memoized checksum.
//
// The store is an explicit, injectable dependency (not an implicit global) so
// tests can substitute the in-memory implementation and operations own a
// clear load/flush lifecycle.
package state

import (
	"context"
	"errors"
)

// Entry memoizes the checksum of one workspace file together with the
// filesystem metadata observed when the checksum was computed.
//
// The entry is valid only while all of (Size, MtimeNano, Inode) still match
// the live file. Inode is 0 on platforms without a stable file identity; a
// zero Inode matches only another zero.
type Entry struct {
	// Path is the file path exactly as the caller spelled it, used verbatim
	// as the table key. Callers pass absolute native paths.
	Path string `json:"path"`

	// Size is the file size in bytes at hash time.
	Size int64 `json:"size"`

	// MtimeNano is the file modification time in nanoseconds since the epoch.
	MtimeNano int64 `json:"mtime_nano"`

	// Inode is the platform file identity (inode number on Unix).
	Inode uint64 `json:"inode"`

	// Checksum is the memoized content digest, in its canonical string
	// form. Kept as a plain string so this package stays free of
	// higher-level dependencies; the checksum store owns the typed view.
	Checksum string `json:"checksum"`
}

// ErrEntryNotFound indicates no entry is recorded for the requested path.
var ErrEntryNotFound = errors.New("state entry not found")

// Store is the persisted State Entry table.
//
// Thread Safety:
// Implementations must be safe for concurrent use: the worker pool hashes
// independent files in parallel and each hash updates the table.
type Store interface {
	// Get returns the entry recorded for path.
	//
	// Returns ErrEntryNotFound (possibly wrapped) when no entry exists.
	Get(ctx context.Context, path string) (*Entry, error)

	// Put records or replaces the entry for entry.Path.
	Put(ctx context.Context, entry *Entry) error

	// Delete removes the entry for path. Deleting a missing entry is a no-op.
	Delete(ctx context.Context, path string) error

	// Flush persists any buffered writes. Called at the end of an operation
	// or on checkpoint; a crash before Flush may lose memoization but never
	// correctness (missing entries just cause re-hashing).
	Flush(ctx context.Context) error

	// Close releases the underlying resources. The store must not be used
	// after Close.
	Close() error
}
