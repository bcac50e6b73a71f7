package config

import "strings"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by the backend constructors
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCacheDefaults(&cfg.Cache)
	applyStateDefaults(&cfg.State)
	applyReproDefaults(&cfg.Repro)

	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]RemoteConfig)
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyCacheDefaults sets object cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Dir == "" {
		cfg.Dir = "cache"
	}
	if cfg.Links == "" {
		cfg.Links = "auto"
	}
}

// applyStateDefaults sets state store defaults.
func applyStateDefaults(cfg *StateConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = "state"
	}
}

// applyReproDefaults sets reproduction engine defaults.
func applyReproDefaults(cfg *ReproConfig) {
	if cfg.Jobs == 0 {
		cfg.Jobs = 4
	}
}
