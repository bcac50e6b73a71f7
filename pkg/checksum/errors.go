package checksum

import "errors"

// ============================================================================
// Standard Checksum Errors
// ============================================================================

// These errors let callers distinguish the failure classes the engine cares
// about. A permission problem must never be reported as a missing file: the
// two have different remediations (fix ACLs vs re-create/pull the file), so
// the two sentinels are kept strictly separate.
//
// Usage Pattern:
//
//	sum, err := store.Checksum(ctx, path)
//	if err != nil {
//	    if errors.Is(err, checksum.ErrNotFound) {
//	        // dependency missing from workspace
//	    }
//	    if errors.Is(err, checksum.ErrPermissionDenied) {
//	        // file present but unreadable
//	    }
//	}

var (
	// ErrNotFound indicates the file to hash does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrPermissionDenied indicates the file exists but cannot be read.
	//
	// Distinct from ErrNotFound by design: collapsing the two hides real
	// permission problems behind a misleading "missing file" message.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotRegular indicates the path refers to something other than a
	// regular file (directory, socket, device). Only regular files are
	// content-addressed.
	ErrNotRegular = errors.New("not a regular file")
)
