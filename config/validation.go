package config

import (
	"fmt"
	"time"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of config validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validate checks the config for invalid values.
func (c *Config) Validate() ValidationResult {
	var errors []ValidationError

	errors = append(errors, validateBrowser(&c.Browser)...)
	errors = append(errors, validatePanel(&c.Panel)...)
	errors = append(errors, validateExtractor(&c.Extractor)...)
	errors = append(errors, validateAnalytics(&c.Analytics)...)
	errors = append(errors, validateStore(&c.Store)...)
	errors = append(errors, validateWatcher(&c.Watcher)...)

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateBrowser(cfg *BrowserConfig) []ValidationError {
	var errors []ValidationError

	if cfg.DebugURL == "" {
		errors = append(errors, ValidationError{
			Field:   "browser.debug_url",
			Message: "must not be empty",
		})
	}
	if cfg.EventBuffer <= 0 {
		errors = append(errors, ValidationError{
			Field:   "browser.event_buffer",
			Message: "must be positive",
		})
	}
	if cfg.CaptureTimeout < time.Second {
		errors = append(errors, ValidationError{
			Field:   "browser.capture_timeout",
			Message: fmt.Sprintf("must be at least 1s, got %v", cfg.CaptureTimeout),
		})
	}

	return errors
}

func validatePanel(cfg *PanelConfig) []ValidationError {
	var errors []ValidationError

	if cfg.Enabled && (cfg.Port < 1 || cfg.Port > 65535) {
		errors = append(errors, ValidationError{
			Field:   "panel.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Port),
		})
	}

	return errors
}

func validateExtractor(cfg *ExtractorConfig) []ValidationError {
	var errors []ValidationError

	if cfg.FreshnessWindow <= 0 {
		errors = append(errors, ValidationError{
			Field:   "extractor.freshness_window",
			Message: fmt.Sprintf("must be positive, got %v", cfg.FreshnessWindow),
		})
	}

	return errors
}

func validateAnalytics(cfg *AnalyticsConfig) []ValidationError {
	var errors []ValidationError

	if cfg.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "analytics.base_url",
			Message: "must not be empty",
		})
	}
	if cfg.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "analytics.timeout",
			Message: fmt.Sprintf("must be positive, got %v", cfg.Timeout),
		})
	}
	if cfg.CacheTTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "analytics.cache_ttl",
			Message: fmt.Sprintf("must not be negative, got %v", cfg.CacheTTL),
		})
	}
	if cfg.WindowDays < 1 {
		errors = append(errors, ValidationError{
			Field:   "analytics.window_days",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.WindowDays),
		})
	}

	return errors
}

func validateStore(cfg *StoreConfig) []ValidationError {
	var errors []ValidationError

	if cfg.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "store.path",
			Message: "must not be empty",
		})
	}

	return errors
}

func validateWatcher(cfg *WatcherConfig) []ValidationError {
	var errors []ValidationError

	if !cfg.Enabled {
		return nil
	}

	if cfg.Interval < time.Second {
		errors = append(errors, ValidationError{
			Field:   "watcher.interval",
			Message: fmt.Sprintf("must be at least 1s, got %v", cfg.Interval),
		})
	}
	if cfg.WindowDays < 1 {
		errors = append(errors, ValidationError{
			Field:   "watcher.window_days",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.WindowDays),
		})
	}
	if cfg.WashShareThreshold < 0 || cfg.WashShareThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "watcher.wash_share_threshold",
			Message: fmt.Sprintf("must be between 0 and 1, got %f", cfg.WashShareThreshold),
		})
	}
	if cfg.MinVolume < 0 {
		errors = append(errors, ValidationError{
			Field:   "watcher.min_volume",
			Message: fmt.Sprintf("must not be negative, got %f", cfg.MinVolume),
		})
	}
	if cfg.AlertCooldown < 0 {
		errors = append(errors, ValidationError{
			Field:   "watcher.alert_cooldown",
			Message: fmt.Sprintf("must not be negative, got %v", cfg.AlertCooldown),
		})
	}

	return errors
}
