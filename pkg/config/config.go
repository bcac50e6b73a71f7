// Package config loads, defaults and validates project configuration, and
// provides the factory functions that turn configuration sections into
// live state stores and remotes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete project configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOTRACK_*)
//  3. Project configuration file (.dittotrack/config.yaml)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each state-store and remote implementation defines its own configuration
// shape. The Config struct carries type-selected sections as loose maps and
// only the section matching the selected type is decoded, by the factory
// for that type.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Cache configures the local object cache
	Cache CacheConfig `mapstructure:"cache"`

	// State specifies the checksum state store type and type-specific
	// configuration
	State StateConfig `mapstructure:"state"`

	// Repro contains reproduction engine settings
	Repro ReproConfig `mapstructure:"repro"`

	// Remotes defines the named remotes available to push/pull/fetch
	Remotes map[string]RemoteConfig `mapstructure:"remotes" validate:"dive"`

	// DefaultRemote names the remote used when a command does not pick one.
	// Must match a key of Remotes when set.
	DefaultRemote string `mapstructure:"default_remote"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized
	// to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// CacheConfig configures the local object cache.
type CacheConfig struct {
	// Dir is the cache directory, resolved against the project control
	// directory when not absolute
	Dir string `mapstructure:"dir" validate:"required"`

	// Links selects the workspace link strategy
	// Valid values: auto, hardlink, symlink, copy
	Links string `mapstructure:"links" validate:"required,oneof=auto hardlink symlink copy"`
}

// StateConfig specifies checksum state store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StateConfig struct {
	// Type specifies which state store implementation to use
	// Valid values: badger, memory
	Type string `mapstructure:"type" validate:"required,oneof=badger memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`
}

// ReproConfig contains reproduction engine settings.
type ReproConfig struct {
	// Jobs bounds parallelism for sync transfers and garbage collection
	Jobs int `mapstructure:"jobs" validate:"gte=0"`
}

// RemoteConfig defines a single named remote.
type RemoteConfig struct {
	// Type specifies which remote backend to use
	// Valid values: fs, s3
	Type string `mapstructure:"type" validate:"required,oneof=fs s3"`

	// FS contains directory-backend configuration
	// Only used when Type = "fs"
	FS map[string]any `mapstructure:"fs"`

	// S3 contains S3-backend configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOTRACK_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string skips the file and
//     uses environment plus defaults, so a fresh project works unconfigured)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variable support and the
// config file location.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DITTOTRACK_ prefix with underscores
	// Example: DITTOTRACK_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

// readConfigFile reads the configuration file if one was selected and exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing project config file is acceptable - use defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}
