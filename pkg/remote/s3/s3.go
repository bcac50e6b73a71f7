// Package s3 implements the remote capability surface on Amazon S3 or
// S3-compatible object storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittotrack/pkg/remote"
)

// S3Remote implements remote.Remote on an S3 bucket.
//
// Object keys are the sharded checksum keys used by the local cache, so
// the bucket contents mirror the cache directory layout and are
// inspectable with any S3 browser.
//
// S3 Characteristics:
//   - PutObject is atomic: a key is either fully present or absent, so
//     interrupted transfers never leave partial objects visible
//   - Re-uploading an existing key overwrites it with identical bytes
//     (keys are content-addressed), which is harmless
//   - Supports custom endpoints for S3-compatible storage (MinIO, Cubbit
//     DS3, etc.) via the injected client
//
// Thread Safety:
// This implementation is safe for concurrent use by multiple goroutines;
// the sync worker pool issues bounded-parallel calls against one instance.
type S3Remote struct {
	client    *s3.Client
	bucket    string
	keyPrefix string // Optional prefix for all keys
}

// S3RemoteConfig contains configuration for the S3 remote.
type S3RemoteConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "dittotrack/" results in keys like "dittotrack/ab/cdef..."
	KeyPrefix string
}

// NewS3Remote creates a new S3-backed remote.
//
// This verifies bucket access up front so misconfiguration surfaces as a
// clear error at open time rather than mid-transfer. The bucket must
// already exist - this function does not create it.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3Remote: Initialized S3 remote
//   - error: Returns error if bucket access fails or context is cancelled
func NewS3Remote(ctx context.Context, cfg S3RemoteConfig) (*S3Remote, error) {
	// ========================================================================
	// Step 1: Check context before S3 operations
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Validate configuration
	// ========================================================================

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	// ========================================================================
	// Step 3: Verify bucket access
	// ========================================================================

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, remote.ErrUnavailable)
	}

	return &S3Remote{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey returns the full S3 object key for a cache key.
func (r *S3Remote) objectKey(key string) string {
	if r.keyPrefix != "" {
		return r.keyPrefix + key
	}
	return key
}

// isNotFound reports whether err is an S3 "object absent" error. HeadObject
// surfaces absence as *types.NotFound, GetObject as *types.NoSuchKey.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// Exists reports whether key is present in the bucket.
//
// This performs a HEAD request to check object existence without
// downloading.
func (r *S3Remote) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check key %s: %v: %w", key, err, remote.ErrUnavailable)
	}

	return true, nil
}

// Put stores the stream under key with a single PutObject.
//
// PutObject is atomic on S3: an interrupted upload never becomes visible
// under the key, which preserves the no-partial-objects invariant without
// a temp-and-rename dance.
func (r *S3Remote) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
		Body:   reader,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload key %s: %v: %w", key, err, remote.ErrUnavailable)
	}

	return nil
}

// Get returns a reader over the bytes stored under key.
//
// The caller is responsible for closing the returned ReadCloser.
func (r *S3Remote) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("key %s: %w", key, remote.ErrKeyNotFound)
		}
		return nil, fmt.Errorf("failed to download key %s: %v: %w", key, err, remote.ErrUnavailable)
	}

	return result.Body, nil
}

// List returns every key with the given prefix, paging through the bucket.
func (r *S3Remote) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.keyPrefix + prefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list keys: %v: %w", err, remote.ErrUnavailable)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			// Strip the configured prefix so callers see cache-layout keys.
			key := *obj.Key
			if r.keyPrefix != "" && len(key) > len(r.keyPrefix) {
				key = key[len(r.keyPrefix):]
			}

			keys = append(keys, key)
		}
	}

	return keys, nil
}
