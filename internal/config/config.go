package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete pipeline configuration
type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Threads    ThreadsConfig    `mapstructure:"threads"`
	Validation ValidationConfig `mapstructure:"validation"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SchedulerConfig controls the generation slot pool
type SchedulerConfig struct {
	// Slots is the number of generation calls allowed in flight at once
	Slots int `mapstructure:"slots"`
	// QueueBound is the maximum number of callers allowed to wait for a
	// slot before admission fails fast
	QueueBound int `mapstructure:"queue_bound"`
}

// CacheConfig controls the single-flight generation cache
type CacheConfig struct {
	// PendingTTLSeconds is how long a pending unit may exist before it is
	// treated as abandoned (0 disables staleness eviction)
	PendingTTLSeconds int `mapstructure:"pending_ttl_seconds"`
	// MaxCommitted bounds the number of committed artifacts kept in
	// memory (0 = unbounded)
	MaxCommitted int `mapstructure:"max_committed"`
	// JanitorIntervalSeconds is how often stale pending units are swept
	// (0 disables the background sweep; staleness is still enforced on
	// acquire)
	JanitorIntervalSeconds int `mapstructure:"janitor_interval_seconds"`
}

// RetryConfig controls the per-scene retry budgets. The two budgets are
// independent: spending one never consumes the other.
type RetryConfig struct {
	// MaxTransient is the number of identical retries after transport
	// failures
	MaxTransient int `mapstructure:"max_transient"`
	// MaxValidation is the number of feedback-guided retries after
	// validation rejections
	MaxValidation int `mapstructure:"max_validation"`
}

// ThreadsConfig controls the thread continuity store
type ThreadsConfig struct {
	// MaxActive caps the number of active threads per branch; overflow is
	// auto-resolved, critical threads are always retained
	MaxActive int `mapstructure:"max_active"`
	// EscalateAfter is the acknowledgement streak after which a thread
	// must advance or resolve
	EscalateAfter int `mapstructure:"escalate_after"`
	// ArchiveRetention is how many scenes an archived thread remains
	// eligible for callback references
	ArchiveRetention int `mapstructure:"archive_retention"`
}

// ValidationConfig controls the validation gate
type ValidationConfig struct {
	// MaxProseRunes flags overlong prose as a soft finding (0 disables)
	MaxProseRunes int `mapstructure:"max_prose_runes"`
	// Canon lists fixed proper nouns checked for near-miss misspellings
	Canon []string `mapstructure:"canon"`
	// RevelationFloors maps a revelation keyword to the earliest scene
	// position at which it may surface
	RevelationFloors map[string]int `mapstructure:"revelation_floors"`
}

// StorageConfig controls durable artifact persistence
type StorageConfig struct {
	// Path is the BoltDB file path. Empty keeps artifacts in memory only.
	Path string `mapstructure:"path"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the run directory for log files. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Slots:      2, // The producer tolerates little parallelism
			QueueBound: 8,
		},
		Cache: CacheConfig{
			PendingTTLSeconds:      120,
			MaxCommitted:           64,
			JanitorIntervalSeconds: 15,
		},
		Retry: RetryConfig{
			MaxTransient:  3,
			MaxValidation: 2,
		},
		Threads: ThreadsConfig{
			MaxActive:        7,
			EscalateAfter:    2,
			ArchiveRetention: 6,
		},
		Validation: ValidationConfig{
			MaxProseRunes:    8000,
			Canon:            []string{},
			RevelationFloors: map[string]int{},
		},
		Storage: StorageConfig{
			Path: "", // Empty means in-memory only
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
	}
}

// PendingTTL returns the cache pending TTL as a time.Duration
func (c *CacheConfig) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLSeconds) * time.Second
}

// JanitorInterval returns the janitor sweep interval as a time.Duration
func (c *CacheConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Scheduler defaults
	viper.SetDefault("scheduler.slots", defaults.Scheduler.Slots)
	viper.SetDefault("scheduler.queue_bound", defaults.Scheduler.QueueBound)

	// Cache defaults
	viper.SetDefault("cache.pending_ttl_seconds", defaults.Cache.PendingTTLSeconds)
	viper.SetDefault("cache.max_committed", defaults.Cache.MaxCommitted)
	viper.SetDefault("cache.janitor_interval_seconds", defaults.Cache.JanitorIntervalSeconds)

	// Retry defaults
	viper.SetDefault("retry.max_transient", defaults.Retry.MaxTransient)
	viper.SetDefault("retry.max_validation", defaults.Retry.MaxValidation)

	// Threads defaults
	viper.SetDefault("threads.max_active", defaults.Threads.MaxActive)
	viper.SetDefault("threads.escalate_after", defaults.Threads.EscalateAfter)
	viper.SetDefault("threads.archive_retention", defaults.Threads.ArchiveRetention)

	// Validation defaults
	viper.SetDefault("validation.max_prose_runes", defaults.Validation.MaxProseRunes)
	viper.SetDefault("validation.canon", defaults.Validation.Canon)
	viper.SetDefault("validation.revelation_floors", defaults.Validation.RevelationFloors)

	// Storage defaults
	viper.SetDefault("storage.path", defaults.Storage.Path)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "loom")
	}
	// Fall back to ~/.config/loom
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loom"
	}
	return filepath.Join(home, ".config", "loom")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
