package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Environment
	IsProd bool `json:"is_prod"`

	// Browser attachment (Chrome remote debugging)
	Browser BrowserConfig `json:"browser"`

	// Side panel server
	Panel PanelConfig `json:"panel"`

	// Identity extraction
	Extractor ExtractorConfig `json:"extractor"`

	// Analytics API
	Analytics AnalyticsConfig `json:"analytics"`

	// Local SQLite store
	Store StoreConfig `json:"store"`

	// Collection metric watcher
	Watcher WatcherConfig `json:"watcher"`

	// Discord alerts
	Discord DiscordConfig `json:"discord"`

	// Telegram alerts
	Telegram TelegramConfig `json:"telegram"`
}

// BrowserConfig holds Chrome DevTools attachment configuration.
type BrowserConfig struct {
	DebugURL       string        `json:"debug_url"`       // Remote debugging endpoint, e.g. http://127.0.0.1:9222
	EventBuffer    int           `json:"event_buffer"`    // Buffered tab events before drops
	CaptureTimeout time.Duration `json:"capture_timeout"` // Max time for a page HTML capture
}

// PanelConfig holds side panel server configuration.
type PanelConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// ExtractorConfig holds NFT identity extraction configuration.
type ExtractorConfig struct {
	FreshnessWindow time.Duration `json:"freshness_window"` // Max age of cached tab info before forced refresh
}

// AnalyticsConfig holds analytics API configuration.
type AnalyticsConfig struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	CacheTTL   time.Duration `json:"cache_ttl"`   // How long fetched metric series stay valid locally
	WindowDays int           `json:"window_days"` // Default chart window
}

// StoreConfig holds local SQLite store configuration.
type StoreConfig struct {
	Path string `json:"path"`
}

// WatcherConfig holds collection metric watcher configuration.
type WatcherConfig struct {
	Enabled            bool          `json:"enabled"`
	Interval           time.Duration `json:"interval"`
	WindowDays         int           `json:"window_days"`
	WashShareThreshold float64       `json:"wash_share_threshold"` // Wash volume / total volume ratio that triggers an alert
	MinVolume          float64       `json:"min_volume"`           // Ignore collections below this volume in the window
	AlertCooldown      time.Duration `json:"alert_cooldown"`       // Min time between alerts per collection
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken      string `json:"-"` // Excluded - env var only
	ProdChannelID string `json:"prod_channel_id"`
	BetaChannelID string `json:"beta_channel_id"`
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken   string `json:"-"` // Excluded - env var only
	ProdChatID string `json:"prod_chat_id"`
	BetaChatID string `json:"beta_chat_id"`
}

// Clone creates a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ToJSON serializes the config to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ConfigFromJSON deserializes JSON into a config, merging with base.
func ConfigFromJSON(data []byte, base *Config) (*Config, error) {
	if base == nil {
		base = Defaults()
	}
	cfg := base.Clone()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a config with hardcoded default values.
func Defaults() *Config {
	return &Config{
		IsProd: false,
		Browser: BrowserConfig{
			DebugURL:       "http://127.0.0.1:9222",
			EventBuffer:    256,
			CaptureTimeout: 10 * time.Second,
		},
		Panel: PanelConfig{
			Enabled: true,
			Port:    8410,
		},
		Extractor: ExtractorConfig{
			FreshnessWindow: 5 * time.Second,
		},
		Analytics: AnalyticsConfig{
			BaseURL:    "https://data-api.nftlens.io",
			Timeout:    30 * time.Second,
			CacheTTL:   10 * time.Minute,
			WindowDays: 30,
		},
		Store: StoreConfig{
			Path: "nftlens.db",
		},
		Watcher: WatcherConfig{
			Enabled:            true,
			Interval:           1 * time.Minute,
			WindowDays:         7,
			WashShareThreshold: 0.30,
			MinVolume:          1.0,
			AlertCooldown:      6 * time.Hour,
		},
		Discord:  DiscordConfig{},
		Telegram: TelegramConfig{},
	}
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		IsProd: envBool("STAGE", "PROD"),

		Browser: BrowserConfig{
			DebugURL:       envString("BROWSER_DEBUG_URL", "http://127.0.0.1:9222"),
			EventBuffer:    envInt("BROWSER_EVENT_BUFFER", 256),
			CaptureTimeout: envDuration("BROWSER_CAPTURE_TIMEOUT", 10*time.Second),
		},

		Panel: PanelConfig{
			Enabled: envBoolDefault("PANEL_ENABLED", true),
			Port:    envInt("PANEL_PORT", 8410),
		},

		Extractor: ExtractorConfig{
			FreshnessWindow: envDuration("FRESHNESS_WINDOW", 5*time.Second),
		},

		Analytics: AnalyticsConfig{
			BaseURL:    envString("ANALYTICS_API_URL", "https://data-api.nftlens.io"),
			Timeout:    envDuration("ANALYTICS_TIMEOUT", 30*time.Second),
			CacheTTL:   envDuration("ANALYTICS_CACHE_TTL", 10*time.Minute),
			WindowDays: envInt("ANALYTICS_WINDOW_DAYS", 30),
		},

		Store: StoreConfig{
			Path: envString("STORE_PATH", "nftlens.db"),
		},

		Watcher: WatcherConfig{
			Enabled:            envBoolDefault("WATCHER_ENABLED", true),
			Interval:           envDuration("WATCHER_INTERVAL", 1*time.Minute),
			WindowDays:         envInt("WATCHER_WINDOW_DAYS", 7),
			WashShareThreshold: envFloat("WATCHER_WASH_SHARE_THRESHOLD", 0.30),
			MinVolume:          envFloat("WATCHER_MIN_VOLUME", 1.0),
			AlertCooldown:      envDuration("WATCHER_ALERT_COOLDOWN", 6*time.Hour),
		},

		Discord: DiscordConfig{
			BotToken:      envString("DISCORD_BOT_TOKEN", ""),
			ProdChannelID: envString("DISCORD_PROD_CHANNEL_ID", ""),
			BetaChannelID: envString("DISCORD_BETA_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken:   envString("TELEGRAM_BOT_KEY", ""),
			ProdChatID: envString("TELEGRAM_PROD_CHAT_ID", ""),
			BetaChatID: envString("TELEGRAM_BETA_CHAT_ID", ""),
		},
	}
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key, trueValue string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), trueValue)
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
