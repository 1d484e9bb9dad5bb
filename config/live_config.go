package config

import (
	"sync"
	"time"
)

// ConfigObserver receives a copy of the config whenever it changes.
type ConfigObserver interface {
	OnConfigUpdate(cfg *Config)
}

// LiveConfig holds the active config and hands out copies. Updates arrive at
// runtime from persisted settings loaded after startup, so long-lived
// components read through here instead of capturing a Config at construction.
type LiveConfig struct {
	mu        sync.RWMutex
	config    *Config
	observers []ConfigObserver
	obsMu     sync.RWMutex

	lastUpdated time.Time
}

// NewLiveConfig wraps the initial config. A nil initial falls back to
// Defaults.
func NewLiveConfig(initial *Config) *LiveConfig {
	if initial == nil {
		initial = Defaults()
	}
	return &LiveConfig{
		config:      initial.Clone(),
		observers:   make([]ConfigObserver, 0),
		lastUpdated: time.Now(),
	}
}

// Get returns a copy of the current config. Callers own the copy and may
// mutate it freely.
func (lc *LiveConfig) Get() *Config {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.config.Clone()
}

// Update validates and swaps in a new config, then notifies observers.
// Invalid configs are rejected whole; the active config is never left
// half-applied.
func (lc *LiveConfig) Update(newConfig *Config) error {
	if newConfig == nil {
		return nil
	}

	result := newConfig.Validate()
	if !result.Valid {
		return &ConfigValidationError{Errors: result.Errors}
	}

	cloned := newConfig.Clone()

	lc.mu.Lock()
	lc.config = cloned
	lc.lastUpdated = time.Now()
	lc.mu.Unlock()

	// Observers run outside the lock; one of them may call Get.
	lc.notifyObservers(cloned)

	return nil
}

// UpdatePartial applies updateFn to a copy of the current config and swaps
// the result in through Update.
func (lc *LiveConfig) UpdatePartial(updateFn func(*Config)) error {
	lc.mu.Lock()
	newConfig := lc.config.Clone()
	lc.mu.Unlock()

	updateFn(newConfig)

	return lc.Update(newConfig)
}

// AddObserver registers an observer for future config changes. Nil observers
// are ignored.
func (lc *LiveConfig) AddObserver(obs ConfigObserver) {
	if obs == nil {
		return
	}
	lc.obsMu.Lock()
	defer lc.obsMu.Unlock()
	lc.observers = append(lc.observers, obs)
}

func (lc *LiveConfig) notifyObservers(cfg *Config) {
	lc.obsMu.RLock()
	observers := make([]ConfigObserver, len(lc.observers))
	copy(observers, lc.observers)
	lc.obsMu.RUnlock()

	for _, obs := range observers {
		// Each observer gets its own copy so none can affect the others.
		obs.OnConfigUpdate(cfg.Clone())
	}
}

// LastUpdated reports when the config last changed.
func (lc *LiveConfig) LastUpdated() time.Time {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.lastUpdated
}

// ConfigValidationError is returned when config validation fails.
type ConfigValidationError struct {
	Errors []ValidationError
}

func (e *ConfigValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "config validation failed"
	}
	return "config validation failed: " + e.Errors[0].Field + ": " + e.Errors[0].Message
}
