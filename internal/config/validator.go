package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "scheduler.slots")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Scheduler config
	errors = append(errors, c.validateScheduler()...)

	// Validate Cache config
	errors = append(errors, c.validateCache()...)

	// Validate Retry config
	errors = append(errors, c.validateRetry()...)

	// Validate Threads config
	errors = append(errors, c.validateThreads()...)

	// Validate Validation config
	errors = append(errors, c.validateValidation()...)

	// Validate Storage config
	errors = append(errors, c.validateStorage()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateScheduler validates the SchedulerConfig
func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	const maxSlots = 32
	if c.Scheduler.Slots < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.slots",
			Value:   c.Scheduler.Slots,
			Message: "must be at least 1",
		})
	}
	if c.Scheduler.Slots > maxSlots {
		errors = append(errors, ValidationError{
			Field:   "scheduler.slots",
			Value:   c.Scheduler.Slots,
			Message: fmt.Sprintf("exceeds maximum of %d", maxSlots),
		})
	}

	const maxQueueBound = 1024
	if c.Scheduler.QueueBound < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.queue_bound",
			Value:   c.Scheduler.QueueBound,
			Message: "must be at least 1",
		})
	}
	if c.Scheduler.QueueBound > maxQueueBound {
		errors = append(errors, ValidationError{
			Field:   "scheduler.queue_bound",
			Value:   c.Scheduler.QueueBound,
			Message: fmt.Sprintf("exceeds maximum of %d", maxQueueBound),
		})
	}

	return errors
}

// validateCache validates the CacheConfig
func (c *Config) validateCache() []ValidationError {
	var errors []ValidationError

	// TTL validation (0 means disabled, which is valid; negative is invalid)
	if c.Cache.PendingTTLSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.pending_ttl_seconds",
			Value:   c.Cache.PendingTTLSeconds,
			Message: "must be non-negative (0 disables staleness eviction)",
		})
	}

	if c.Cache.MaxCommitted < 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.max_committed",
			Value:   c.Cache.MaxCommitted,
			Message: "must be non-negative (0 = unbounded)",
		})
	}

	if c.Cache.JanitorIntervalSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.janitor_interval_seconds",
			Value:   c.Cache.JanitorIntervalSeconds,
			Message: "must be non-negative (0 disables the sweep)",
		})
	}

	// A janitor without a TTL has nothing to sweep
	if c.Cache.JanitorIntervalSeconds > 0 && c.Cache.PendingTTLSeconds == 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.janitor_interval_seconds",
			Value:   c.Cache.JanitorIntervalSeconds,
			Message: "requires cache.pending_ttl_seconds to be set",
		})
	}

	return errors
}

// validateRetry validates the RetryConfig
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	const maxBudget = 10

	if c.Retry.MaxTransient < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_transient",
			Value:   c.Retry.MaxTransient,
			Message: "must be non-negative (0 = no transient retries)",
		})
	}
	if c.Retry.MaxTransient > maxBudget {
		errors = append(errors, ValidationError{
			Field:   "retry.max_transient",
			Value:   c.Retry.MaxTransient,
			Message: fmt.Sprintf("exceeds maximum of %d", maxBudget),
		})
	}

	if c.Retry.MaxValidation < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_validation",
			Value:   c.Retry.MaxValidation,
			Message: "must be non-negative (0 = no feedback retries)",
		})
	}
	if c.Retry.MaxValidation > maxBudget {
		errors = append(errors, ValidationError{
			Field:   "retry.max_validation",
			Value:   c.Retry.MaxValidation,
			Message: fmt.Sprintf("exceeds maximum of %d", maxBudget),
		})
	}

	return errors
}

// validateThreads validates the ThreadsConfig
func (c *Config) validateThreads() []ValidationError {
	var errors []ValidationError

	if c.Threads.MaxActive < 1 {
		errors = append(errors, ValidationError{
			Field:   "threads.max_active",
			Value:   c.Threads.MaxActive,
			Message: "must be at least 1",
		})
	}

	if c.Threads.EscalateAfter < 1 {
		errors = append(errors, ValidationError{
			Field:   "threads.escalate_after",
			Value:   c.Threads.EscalateAfter,
			Message: "must be at least 1",
		})
	}

	if c.Threads.ArchiveRetention < 0 {
		errors = append(errors, ValidationError{
			Field:   "threads.archive_retention",
			Value:   c.Threads.ArchiveRetention,
			Message: "must be non-negative (0 disables callbacks)",
		})
	}

	return errors
}

// validateValidation validates the ValidationConfig
func (c *Config) validateValidation() []ValidationError {
	var errors []ValidationError

	if c.Validation.MaxProseRunes < 0 {
		errors = append(errors, ValidationError{
			Field:   "validation.max_prose_runes",
			Value:   c.Validation.MaxProseRunes,
			Message: "must be non-negative (0 disables the pacing check)",
		})
	}

	for i, noun := range c.Validation.Canon {
		if strings.TrimSpace(noun) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("validation.canon[%d]", i),
				Value:   noun,
				Message: "canon noun cannot be empty",
			})
		}
	}

	for keyword, floor := range c.Validation.RevelationFloors {
		if strings.TrimSpace(keyword) == "" {
			errors = append(errors, ValidationError{
				Field:   "validation.revelation_floors",
				Value:   keyword,
				Message: "revelation keyword cannot be empty",
			})
		}
		if floor < 1 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("validation.revelation_floors[%s]", keyword),
				Value:   floor,
				Message: "floor position must be at least 1",
			})
		}
	}

	return errors
}

// validateStorage validates the StorageConfig
func (c *Config) validateStorage() []ValidationError {
	var errors []ValidationError

	// Path validation - if set, check for invalid characters
	if c.Storage.Path != "" {
		path := c.Storage.Path

		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "storage.path",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "storage.path",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
