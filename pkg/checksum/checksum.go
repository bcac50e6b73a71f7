// Package checksum defines the content digest type used as the sole identity
// for cache objects, and the memoizing store that avoids re-hashing large
// files whose filesystem metadata has not changed.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

// Algorithm identifies the hash algorithm encoded in a Checksum.
//
// Checksums are stored and transferred as "<algorithm>:<hex digest>" so the
// algorithm can change in a future release without breaking the
// content-addressable invariant: two checksums are equal only if both the
// algorithm and the digest are equal.
const Algorithm = "sha256"

// Checksum is an opaque, versioned content digest.
//
// Format: "<algorithm>:<hex digest>", e.g.
// "sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08".
//
// Identical byte content always produces an identical Checksum. The zero
// value ("") means "unknown" and never matches any real checksum.
type Checksum string

// FromDigest builds a Checksum from a raw digest produced by the current
// algorithm.
func FromDigest(sum []byte) Checksum {
	return Checksum(Algorithm + ":" + hex.EncodeToString(sum))
}

// Parse validates the textual form of a checksum.
//
// Returns an error if the string is not "<algorithm>:<hex>" with a digest of
// the expected length for the named algorithm.
func Parse(s string) (Checksum, error) {
	algo, digest, ok := strings.Cut(s, ":")
	if !ok {
		return "", fmt.Errorf("checksum %q: missing algorithm prefix", s)
	}
	if algo != Algorithm {
		return "", fmt.Errorf("checksum %q: unsupported algorithm %q", s, algo)
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return "", fmt.Errorf("checksum %q: invalid hex digest: %w", s, err)
	}
	if len(raw) != sha256.Size {
		return "", fmt.Errorf("checksum %q: digest length %d, want %d", s, len(raw), sha256.Size)
	}
	return Checksum(s), nil
}

// Hex returns the hex digest portion of the checksum (without the algorithm
// prefix). Returns "" for the zero value.
func (c Checksum) Hex() string {
	_, digest, ok := strings.Cut(string(c), ":")
	if !ok {
		return ""
	}
	return digest
}

// IsZero reports whether the checksum is unset.
func (c Checksum) IsZero() bool {
	return c == ""
}

// Key returns the sharded object key for this checksum: the first two hex
// characters as a shard directory and the remainder as the object name,
// joined with "/".
//
// This layout mirrors the shape of a version-control object store and keeps
// any one directory's entry count bounded. The same key is used for the local
// cache directory and for remote object storage, so local/remote delta
// computation is a plain set comparison.
func (c Checksum) Key() string {
	digest := c.Hex()
	if len(digest) < 3 {
		return digest
	}
	return digest[:2] + "/" + digest[2:]
}

// FromKey reconstructs a Checksum from a sharded object key produced by Key.
func FromKey(key string) (Checksum, error) {
	shard, rest, ok := strings.Cut(key, "/")
	if !ok {
		return "", fmt.Errorf("object key %q: missing shard separator", key)
	}
	return Parse(Algorithm + ":" + shard + rest)
}

// New returns a hash.Hash for the current algorithm.
//
// Callers that stream content (cache writes, remote pulls) hash while copying
// and compare against the expected checksum, so corrupted or truncated
// transfers are detected before the object becomes visible.
func New() hash.Hash {
	return sha256.New()
}

// Sum computes the checksum of an in-memory byte slice.
func Sum(data []byte) Checksum {
	sum := sha256.Sum256(data)
	return FromDigest(sum[:])
}

// hashChunkSize is the copy buffer size for streaming hash computation.
// 1MB keeps syscall overhead low for multi-GB files while bounding memory.
const hashChunkSize = 1 * 1024 * 1024

// HashReader stream-hashes everything readable from r.
//
// The read loop checks the context between chunks so hashing a very large
// file remains cancellable.
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: Source of the bytes to hash
//
// Returns:
//   - Checksum: Digest of all bytes read
//   - int64: Number of bytes read
//   - error: Read errors or context cancellation
func HashReader(ctx context.Context, r io.Reader) (Checksum, int64, error) {
	h := New()
	buf := make([]byte, hashChunkSize)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", total, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			// hash.Hash writes never fail
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", total, fmt.Errorf("failed to read content for hashing: %w", err)
		}
	}

	return FromDigest(h.Sum(nil)), total, nil
}
