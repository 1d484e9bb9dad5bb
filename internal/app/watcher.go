package app

import (
	"context"
	"sync"
	"time"

	"nftlens/clients/analytics"
	"nftlens/clients/notifier"
	"nftlens/config"

	"go.uber.org/zap"
)

// volumeSpikeFactor is how far the latest day's volume must exceed the
// average of the preceding days to count as a spike.
const volumeSpikeFactor = 3.0

// WatchMetrics is the metrics surface the watcher consumes.
// *MetricsService implements it.
type WatchMetrics interface {
	CollectionMetrics(ctx context.Context, blockchain, contract string, windowDays int) ([]analytics.MetricPoint, error)
	ResolveIdentity(ctx context.Context, id *NFTIdentity) (*NFTIdentity, error)
}

// Watcher periodically evaluates the collection behind the current tab and
// alerts when its trailing metrics look like wash trading or an abnormal
// volume spike. One alert per collection per cooldown window.
type Watcher struct {
	logger     *zap.Logger
	liveConfig *config.LiveConfig
	cache      *TabCache
	metrics    WatchMetrics
	notify     notifier.Notifier

	// nowFn is replaceable in tests.
	nowFn func() time.Time

	mu          sync.Mutex
	lastAlerted map[string]time.Time
	checks      int
	alertsSent  int
}

// NewWatcher creates a watcher.
func NewWatcher(logger *zap.Logger, liveConfig *config.LiveConfig, cache *TabCache, metrics WatchMetrics, notify notifier.Notifier) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		logger:      logger.Named("watcher"),
		liveConfig:  liveConfig,
		cache:       cache,
		metrics:     metrics,
		notify:      notify,
		nowFn:       time.Now,
		lastAlerted: map[string]time.Time{},
	}
}

// Run evaluates on every tick until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	cfg := w.liveConfig.Get()
	ticker := time.NewTicker(cfg.Watcher.Interval)
	defer ticker.Stop()

	w.logger.Info("watcher started", zap.Duration("interval", cfg.Watcher.Interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// Stats reports watcher activity counters.
func (w *Watcher) Stats() (checks, alertsSent int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checks, w.alertsSent
}

// check runs one evaluation pass over the current tab's collection.
func (w *Watcher) check(ctx context.Context) {
	w.mu.Lock()
	w.checks++
	w.mu.Unlock()

	info := w.cache.Peek()
	if info == nil || info.NFTDetails == nil {
		return
	}

	id, err := w.metrics.ResolveIdentity(ctx, info.NFTDetails)
	if err != nil {
		// Unverifiable slug identities are skipped rather than alerted on.
		w.logger.Debug("skipping unresolvable identity",
			zap.String("contract", info.NFTDetails.ContractAddress),
			zap.Error(err),
		)
		return
	}

	cfg := w.liveConfig.Get()

	points, err := w.metrics.CollectionMetrics(ctx, id.Blockchain, id.ContractAddress, cfg.Watcher.WindowDays)
	if err != nil {
		w.logger.Warn("watcher metrics fetch failed",
			zap.String("contract", id.ContractAddress),
			zap.Error(err),
		)
		return
	}
	if len(points) == 0 {
		return
	}

	reasons := evaluateSeries(points, cfg.Watcher.WashShareThreshold, cfg.Watcher.MinVolume)
	if len(reasons) == 0 {
		return
	}

	key := seriesKey(id.Blockchain, id.ContractAddress)
	now := w.nowFn()

	w.mu.Lock()
	last, alerted := w.lastAlerted[key]
	if alerted && now.Sub(last) < cfg.Watcher.AlertCooldown {
		w.mu.Unlock()
		return
	}
	w.lastAlerted[key] = now
	w.alertsSent++
	w.mu.Unlock()

	var volume, washVolume float64
	var sales, traders int
	for _, p := range points {
		volume += p.Volume
		washVolume += p.WashVolume
		sales += p.Sales
		traders += p.Traders()
	}

	alert := notifier.MetricAlert{
		CollectionName:  info.Title,
		Blockchain:      id.Blockchain,
		ContractAddress: id.ContractAddress,
		TokenID:         id.TokenID,
		MarketURL:       info.URL,
		WindowDays:      cfg.Watcher.WindowDays,
		Volume:          volume,
		WashVolume:      washVolume,
		WashShare:       washShare(volume, washVolume),
		Sales:           sales,
		Traders:         traders,
		Reasons:         reasons,
		Timestamp:       now,
	}

	w.logger.Info("sending metric alert",
		zap.String("contract", id.ContractAddress),
		zap.Float64("wash_share", alert.WashShare),
		zap.Any("reasons", reasons),
	)
	w.notify.SendMetricAlert(alert)
}

// evaluateSeries applies the alert heuristics to a metric series.
func evaluateSeries(points []analytics.MetricPoint, washThreshold, minVolume float64) []notifier.AlertReason {
	var volume, washVolume float64
	for _, p := range points {
		volume += p.Volume
		washVolume += p.WashVolume
	}

	var reasons []notifier.AlertReason

	if volume >= minVolume && washShare(volume, washVolume) >= washThreshold {
		reasons = append(reasons, notifier.AlertReasonWashTrading)
	}

	if spike := latestVolumeSpike(points); spike && volume >= minVolume {
		reasons = append(reasons, notifier.AlertReasonVolumeSpike)
	}

	return reasons
}

func washShare(volume, washVolume float64) float64 {
	if volume <= 0 {
		return 0
	}
	return washVolume / volume
}

// latestVolumeSpike reports whether the newest point's volume exceeds the
// average of the preceding points by the spike factor. Needs at least three
// prior days so a single quiet day cannot trip it.
func latestVolumeSpike(points []analytics.MetricPoint) bool {
	if len(points) < 4 {
		return false
	}

	latest := points[len(points)-1]
	var prior float64
	for _, p := range points[:len(points)-1] {
		prior += p.Volume
	}
	avg := prior / float64(len(points)-1)
	if avg <= 0 {
		return false
	}

	return latest.Volume >= avg*volumeSpikeFactor
}
