package config

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// SettingsKey is the key the settings snapshot is stored under.
	SettingsKey = "nftlens_settings"
)

// SettingsSnapshot represents the settings persisted in the local store.
type SettingsSnapshot struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Config    *Config   `json:"config"`
}

// SettingsStorage is an interface for durable settings persistence.
// This allows for easy mocking in tests.
type SettingsStorage interface {
	LoadJSON(ctx context.Context, key string, dest any) error
	SaveJSON(ctx context.Context, key string, data any) error
}

// SettingsManager handles loading and saving settings from/to the store.
type SettingsManager struct {
	logger     *zap.Logger
	storage    SettingsStorage
	liveConfig *LiveConfig
}

// NewSettingsManager creates a new SettingsManager.
func NewSettingsManager(logger *zap.Logger, storage SettingsStorage, liveConfig *LiveConfig) *SettingsManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsManager{
		logger:     logger,
		storage:    storage,
		liveConfig: liveConfig,
	}
}

// IsEnabled returns true if settings persistence is available.
func (sm *SettingsManager) IsEnabled() bool {
	return sm.storage != nil
}

// LoadSettings loads persisted settings and merges with env config.
// Priority: Store > Environment Variables > Defaults
func (sm *SettingsManager) LoadSettings(ctx context.Context, envConfig *Config) (*Config, error) {
	baseConfig := Defaults()

	// Env vars override defaults
	if envConfig != nil {
		baseConfig = mergeConfigs(baseConfig, envConfig)
	}

	if !sm.IsEnabled() {
		sm.logger.Info("settings store not configured, using env/defaults")
		return baseConfig, nil
	}

	var snapshot SettingsSnapshot
	if err := sm.storage.LoadJSON(ctx, SettingsKey, &snapshot); err != nil {
		sm.logger.Warn("failed to load persisted settings, using env/defaults",
			zap.Error(err),
		)
		return baseConfig, nil
	}

	if snapshot.Config != nil {
		baseConfig = mergeConfigs(baseConfig, snapshot.Config)
		sm.logger.Info("loaded persisted settings",
			zap.Time("updated_at", snapshot.UpdatedAt),
			zap.Int("version", snapshot.Version),
		)
	}

	return baseConfig, nil
}

// SaveSettings saves the current config to the store.
func (sm *SettingsManager) SaveSettings(ctx context.Context) error {
	if !sm.IsEnabled() {
		return fmt.Errorf("settings store not configured")
	}

	snapshot := SettingsSnapshot{
		Version:   1,
		UpdatedAt: time.Now(),
		Config:    sm.liveConfig.Get(),
	}

	if err := sm.storage.SaveJSON(ctx, SettingsKey, snapshot); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	sm.logger.Info("saved settings")
	return nil
}

// UpdateAndSave updates the config and persists it.
func (sm *SettingsManager) UpdateAndSave(ctx context.Context, newConfig *Config) error {
	// LiveConfig validates internally
	if err := sm.liveConfig.Update(newConfig); err != nil {
		return fmt.Errorf("update config: %w", err)
	}

	if sm.IsEnabled() {
		if err := sm.SaveSettings(ctx); err != nil {
			// Don't fail the update, just log the error
			sm.logger.Error("failed to persist settings", zap.Error(err))
		}
	}

	return nil
}

// GetCurrentConfig returns the current config.
func (sm *SettingsManager) GetCurrentConfig() *Config {
	return sm.liveConfig.Get()
}

// GetLiveConfig returns the LiveConfig for observers to register.
func (sm *SettingsManager) GetLiveConfig() *LiveConfig {
	return sm.liveConfig
}

// mergeConfigs merges overlay config onto base config.
// JSON round-trip: unmarshal only overwrites fields present in the overlay.
func mergeConfigs(base, overlay *Config) *Config {
	if base == nil {
		base = Defaults()
	}
	if overlay == nil {
		return base.Clone()
	}

	result := base.Clone()

	overlayJSON, err := overlay.ToJSON()
	if err != nil {
		return result
	}

	merged, err := ConfigFromJSON(overlayJSON, result)
	if err != nil {
		return result
	}
	result = merged

	// Bot tokens are excluded from JSON; carry them across explicitly
	result.Discord.BotToken = overlay.Discord.BotToken
	if result.Discord.BotToken == "" {
		result.Discord.BotToken = base.Discord.BotToken
	}
	result.Telegram.BotToken = overlay.Telegram.BotToken
	if result.Telegram.BotToken == "" {
		result.Telegram.BotToken = base.Telegram.BotToken
	}

	return result
}
