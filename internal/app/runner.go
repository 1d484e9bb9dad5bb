package app

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	clts "nftlens/clients"
	"nftlens/clients/browser"
	"nftlens/config"

	"go.uber.org/zap"
)

// ensure Runner implements ConfigObserver
var _ config.ConfigObserver = (*Runner)(nil)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

// Storage is the durable state the runner wires into its components.
// *store.Store implements it.
type Storage interface {
	KeyStore
	SeriesCache
}

type Runner struct {
	clients         *clts.Clients
	liveConfig      *config.LiveConfig
	settingsManager *config.SettingsManager
	storage         Storage

	cache       *TabCache
	resolver    *Resolver
	metrics     *MetricsService
	router      *Router
	panelServer *PanelServer
	watcher     *Watcher

	startTime time.Time

	mu               sync.Mutex
	browserConnected bool
	tabEvents        int
	nftDetections    int
}

// ServiceStats holds service statistics for the /stats endpoint.
type ServiceStats struct {
	// Build info
	Build struct {
		Commit    string `json:"commit"`
		Time      string `json:"time,omitempty"`
		GoVersion string `json:"go_version"`
	} `json:"build"`

	// Service info
	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`

	// Browser attachment
	Browser struct {
		Connected     bool `json:"connected"`
		TabEvents     int  `json:"tab_events"`
		NFTDetections int  `json:"nft_detections"`
	} `json:"browser"`

	// Current tab snapshot
	Tab struct {
		URL         string `json:"url,omitempty"`
		Title       string `json:"title,omitempty"`
		IsNFT       bool   `json:"is_nft"`
		Source      string `json:"source,omitempty"`
		LastUpdated string `json:"last_updated,omitempty"`
	} `json:"tab"`

	// Panel connections
	Panel struct {
		Enabled bool `json:"enabled"`
		Conns   int  `json:"conns"`
	} `json:"panel"`

	// Watcher activity
	Watcher struct {
		Enabled    bool `json:"enabled"`
		Checks     int  `json:"checks"`
		AlertsSent int  `json:"alerts_sent"`
	} `json:"watcher"`

	// Notification status
	Notifications struct {
		DiscordEnabled  bool `json:"discord_enabled"`
		TelegramEnabled bool `json:"telegram_enabled"`
	} `json:"notifications"`

	// Runtime stats
	Runtime struct {
		Goroutines int    `json:"goroutines"`
		HeapAlloc  uint64 `json:"heap_alloc"`
		NumGC      uint32 `json:"num_gc"`
		GoVersion  string `json:"go_version"`
		NumCPU     int    `json:"num_cpu"`
		GOOS       string `json:"goos"`
		GOARCH     string `json:"goarch"`
	} `json:"runtime"`
}

func NewRunner(clients *clts.Clients, liveConfig *config.LiveConfig, settingsManager *config.SettingsManager, storage Storage) *Runner {
	return &Runner{
		clients:         clients,
		liveConfig:      liveConfig,
		settingsManager: settingsManager,
		storage:         storage,
	}
}

// OnConfigUpdate is called when the config changes.
// Implements config.ConfigObserver interface.
func (r *Runner) OnConfigUpdate(cfg *config.Config) {
	r.clients.Logger.Info("config update received",
		zap.Duration("freshnessWindow", cfg.Extractor.FreshnessWindow),
		zap.Duration("watcherInterval", cfg.Watcher.Interval),
	)
}

func (r *Runner) Run(ctx context.Context) error {
	r.startTime = time.Now()
	logger := r.clients.Logger
	cfg := r.liveConfig.Get()

	// Register as config observer for hot-reload
	r.liveConfig.AddObserver(r)

	logger.Info("starting nftlens",
		zap.String("browserDebugURL", cfg.Browser.DebugURL),
		zap.Duration("freshnessWindow", cfg.Extractor.FreshnessWindow),
		zap.Bool("panelEnabled", cfg.Panel.Enabled),
		zap.Bool("watcherEnabled", cfg.Watcher.Enabled),
	)

	// Attach to the browser. The daemon stays useful without it: panel
	// messages carrying URLs still resolve through the URL matcher.
	if err := r.clients.Browser.Connect(ctx); err != nil {
		logger.Warn("browser attach failed, continuing without tab events", zap.Error(err))
	} else {
		r.setBrowserConnected(true)
	}

	r.resolver = NewResolver(logger, r.clients.Browser)
	r.cache = NewTabCache(logger, r.clients.Browser, r.resolver)
	r.metrics = NewMetricsService(logger, r.clients.Analytics, r.storage, cfg.Analytics.CacheTTL)

	r.router = NewRouter(
		logger,
		r.storage,
		r.cache,
		r.resolver,
		r.metrics,
		nil, // broadcaster wired below once the panel server exists
		cfg.Extractor.FreshnessWindow,
		cfg.Analytics.WindowDays,
	)

	if cfg.Panel.Enabled {
		r.panelServer = NewPanelServer(logger, r.router, func() any { return r.GetStats() })
		r.router.broadcast = r.panelServer
		r.panelServer.Start(cfg.Panel.Port)
	}

	if cfg.Watcher.Enabled {
		r.watcher = NewWatcher(logger, r.liveConfig, r.cache, r.metrics, r.clients.Notifier)
		go r.watcher.Run(ctx)
	}

	go r.runTabEventLoop(ctx, r.clients.Browser.Events())

	<-ctx.Done()
	logger.Info("runner shutting down")

	if r.panelServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.panelServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	_ = r.clients.Browser.Close()
	_ = r.clients.Notifier.Close()

	return nil
}

// runTabEventLoop keeps the tab cache in sync with browser navigation. Only
// the synchronous URL matcher runs here; the page-scan fallback happens on
// demand when the cache refreshes or a PAGE_LOADED message arrives.
func (r *Runner) runTabEventLoop(ctx context.Context, events <-chan browser.TabEvent) {
	logger := r.clients.Logger

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			details := MatchURL(ev.Tab.URL)
			info := r.cache.Set(ev.Tab, details)

			r.mu.Lock()
			r.tabEvents++
			if details != nil {
				r.nftDetections++
			}
			r.mu.Unlock()

			logger.Debug("tab event",
				zap.String("kind", string(ev.Kind)),
				zap.String("url", ev.Tab.URL),
				zap.Bool("nft", details != nil),
			)

			if r.panelServer != nil {
				r.panelServer.Broadcast(Response{Type: MsgTabInfoUpdated, Payload: info})
			}
		}
	}
}

func (r *Runner) setBrowserConnected(connected bool) {
	r.mu.Lock()
	r.browserConnected = connected
	r.mu.Unlock()
}

// GetStats returns service statistics.
func (r *Runner) GetStats() ServiceStats {
	var stats ServiceStats

	// Build info
	stats.Build.Commit = BuildCommit
	stats.Build.Time = BuildTime
	stats.Build.GoVersion = runtime.Version()

	// Service info
	stats.StartTime = r.startTime.UTC().Format(time.RFC3339)
	uptime := time.Since(r.startTime)
	stats.Uptime = uptime.Round(time.Second).String()
	stats.UptimeSec = int64(uptime.Seconds())

	// Browser stats
	r.mu.Lock()
	stats.Browser.Connected = r.browserConnected
	stats.Browser.TabEvents = r.tabEvents
	stats.Browser.NFTDetections = r.nftDetections
	r.mu.Unlock()

	// Current tab snapshot
	if r.cache != nil {
		if info := r.cache.Peek(); info != nil {
			stats.Tab.URL = info.URL
			stats.Tab.Title = info.Title
			stats.Tab.IsNFT = info.NFTDetails != nil
			if info.NFTDetails != nil {
				stats.Tab.Source = info.NFTDetails.Source
			}
			stats.Tab.LastUpdated = info.LastUpdated.UTC().Format(time.RFC3339)
		}
	}

	// Panel stats
	stats.Panel.Enabled = r.panelServer != nil
	if r.panelServer != nil {
		stats.Panel.Conns = r.panelServer.ConnCount()
	}

	// Watcher stats
	stats.Watcher.Enabled = r.watcher != nil
	if r.watcher != nil {
		stats.Watcher.Checks, stats.Watcher.AlertsSent = r.watcher.Stats()
	}

	// Notification status
	stats.Notifications.DiscordEnabled = r.clients.Discord != nil && r.clients.Discord.IsEnabled()
	stats.Notifications.TelegramEnabled = r.clients.Telegram != nil && r.clients.Telegram.IsEnabled()

	// Runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats.Runtime.Goroutines = runtime.NumGoroutine()
	stats.Runtime.HeapAlloc = memStats.HeapAlloc
	stats.Runtime.NumGC = memStats.NumGC
	stats.Runtime.GoVersion = runtime.Version()
	stats.Runtime.NumCPU = runtime.NumCPU()
	stats.Runtime.GOOS = runtime.GOOS
	stats.Runtime.GOARCH = runtime.GOARCH

	return stats
}
