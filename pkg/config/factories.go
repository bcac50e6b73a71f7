package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittotrack/pkg/remote"
	remoteFs "github.com/marmos91/dittotrack/pkg/remote/fs"
	remoteS3 "github.com/marmos91/dittotrack/pkg/remote/s3"
	"github.com/marmos91/dittotrack/pkg/state"
	stateBadger "github.com/marmos91/dittotrack/pkg/state/badger"
	stateMemory "github.com/marmos91/dittotrack/pkg/state/memory"
)

// CreateStateStore creates a checksum state store based on configuration.
//
// This factory uses the Type field to pick the implementation, decodes the
// type-specific configuration from the corresponding map and passes it to
// the store's constructor.
//
// Supported types:
//   - "badger": Uses pkg/state/badger (persistent, survives restarts)
//   - "memory": Uses pkg/state/memory (per-process, re-hashes next run)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: State store configuration
//   - baseDir: Directory relative paths are resolved against (the project
//     control directory)
//
// Returns:
//   - state.Store: Initialized state store
//   - error: Configuration or initialization error
func CreateStateStore(ctx context.Context, cfg *StateConfig, baseDir string) (state.Store, error) {
	switch cfg.Type {
	case "badger":
		return createBadgerStateStore(ctx, cfg.Badger, baseDir)
	case "memory":
		return stateMemory.NewMemoryStateStore(), nil
	default:
		return nil, fmt.Errorf("unknown state store type: %q", cfg.Type)
	}
}

// createBadgerStateStore creates a BadgerDB-backed state store.
func createBadgerStateStore(ctx context.Context, options map[string]any, baseDir string) (state.Store, error) {
	type BadgerStateConfig struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeCfg BadgerStateConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger state store config: %w", err)
	}

	if storeCfg.Path == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger state store: path is required")
	}

	store, err := stateBadger.NewBadgerStateStore(ctx, stateBadger.Config{
		DBPath:   resolvePath(storeCfg.Path, baseDir),
		InMemory: storeCfg.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger state store: %w", err)
	}

	return store, nil
}

// CreateRemote creates a remote backend based on configuration.
//
// Supported types:
//   - "fs": Uses pkg/remote/fs (any mountable directory)
//   - "s3": Uses pkg/remote/s3 (Amazon S3 or compatible storage)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Remote configuration
//
// Returns:
//   - remote.Remote: Initialized remote
//   - error: Configuration or initialization error
func CreateRemote(ctx context.Context, cfg *RemoteConfig) (remote.Remote, error) {
	switch cfg.Type {
	case "fs":
		return createFSRemote(ctx, cfg.FS)
	case "s3":
		return createS3Remote(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown remote type: %q", cfg.Type)
	}
}

// createFSRemote creates a directory-backed remote.
func createFSRemote(ctx context.Context, options map[string]any) (remote.Remote, error) {
	type FSRemoteConfig struct {
		Path string `mapstructure:"path"`
	}

	var remoteCfg FSRemoteConfig
	if err := mapstructure.Decode(options, &remoteCfg); err != nil {
		return nil, fmt.Errorf("failed to decode fs remote config: %w", err)
	}

	if remoteCfg.Path == "" {
		return nil, fmt.Errorf("fs remote: path is required")
	}

	r, err := remoteFs.NewFSRemote(ctx, remoteCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create fs remote: %w", err)
	}

	return r, nil
}

// createS3Remote creates an S3-backed remote.
func createS3Remote(ctx context.Context, options map[string]any) (remote.Remote, error) {
	type S3RemoteOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var remoteCfg S3RemoteOptions
	if err := mapstructure.Decode(options, &remoteCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 remote config: %w", err)
	}

	if remoteCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 remote: bucket is required")
	}
	if remoteCfg.Region == "" {
		return nil, fmt.Errorf("S3 remote: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(remoteCfg.Region))

	// Custom endpoint supports S3-compatible storage (MinIO, Localstack, ...)
	if remoteCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               remoteCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if remoteCfg.AccessKeyID != "" && remoteCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			remoteCfg.AccessKeyID,
			remoteCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Retries guard transfers against transient S3 failures (502, 503,
	// timeouts). Transfers are idempotent by key, so retrying is safe.
	maxRetries := remoteCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create the S3 client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack
		if remoteCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create the remote
	// ========================================================================

	r, err := remoteS3.NewS3Remote(ctx, remoteS3.S3RemoteConfig{
		Client:    client,
		Bucket:    remoteCfg.Bucket,
		KeyPrefix: remoteCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 remote: %w", err)
	}

	return r, nil
}

// resolvePath resolves path against baseDir unless it is already absolute.
func resolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
