package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"nftlens/clients/analytics"
	"nftlens/clients/browser"
	"nftlens/config"
)

func watcherConfig() *config.LiveConfig {
	cfg := config.Defaults()
	cfg.Watcher.Enabled = true
	cfg.Watcher.WindowDays = 7
	cfg.Watcher.WashShareThreshold = 0.30
	cfg.Watcher.MinVolume = 1.0
	cfg.Watcher.AlertCooldown = 6 * time.Hour
	return config.NewLiveConfig(cfg)
}

func washyPoints() []analytics.MetricPoint {
	return []analytics.MetricPoint{
		{Volume: 10, WashVolume: 4, Sales: 20, Buyers: 5, Sellers: 5},
		{Volume: 10, WashVolume: 4, Sales: 20, Buyers: 5, Sellers: 5},
	}
}

func newTestWatcher(api *mockMetricsAPI, notify *mockNotifier) (*Watcher, *TabCache) {
	cache := NewTabCache(nil, &mockTabs{}, &countingResolver{})
	metrics := NewMetricsService(nil, api, nil, time.Minute)
	w := NewWatcher(nil, watcherConfig(), cache, metrics, notify)
	return w, cache
}

func TestWatcher_AlertsOnWashTrading(t *testing.T) {
	notify := &mockNotifier{}
	w, cache := newTestWatcher(&mockMetricsAPI{points: washyPoints()}, notify)

	cache.Set(
		browser.Tab{URL: "https://opensea.io/item/ethereum/0xabc/1", Title: "Cool Cats"},
		&NFTIdentity{Blockchain: "ethereum", ContractAddress: "0xabc", TokenID: "1", Source: SourceURLItem},
	)

	w.check(context.Background())

	alerts := notify.sent()
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.ContractAddress != "0xabc" || alert.CollectionName != "Cool Cats" {
		t.Errorf("unexpected alert: %+v", alert)
	}
	if alert.WashShare < 0.39 || alert.WashShare > 0.41 {
		t.Errorf("unexpected wash share: %f", alert.WashShare)
	}
	if len(alert.Reasons) == 0 {
		t.Error("expected at least one reason")
	}
}

func TestWatcher_NoAlertBelowThreshold(t *testing.T) {
	notify := &mockNotifier{}
	api := &mockMetricsAPI{points: []analytics.MetricPoint{{Volume: 100, WashVolume: 5, Sales: 10}}}
	w, cache := newTestWatcher(api, notify)

	cache.Set(
		browser.Tab{URL: "https://opensea.io/item/ethereum/0xabc/1"},
		&NFTIdentity{Blockchain: "ethereum", ContractAddress: "0xabc", TokenID: "1", Source: SourceURLItem},
	)

	w.check(context.Background())

	if len(notify.sent()) != 0 {
		t.Errorf("expected no alert, got %d", len(notify.sent()))
	}
}

func TestWatcher_NoAlertBelowMinVolume(t *testing.T) {
	notify := &mockNotifier{}
	api := &mockMetricsAPI{points: []analytics.MetricPoint{{Volume: 0.5, WashVolume: 0.4}}}
	w, cache := newTestWatcher(api, notify)

	cache.Set(
		browser.Tab{URL: "https://opensea.io/item/ethereum/0xabc/1"},
		&NFTIdentity{Blockchain: "ethereum", ContractAddress: "0xabc", TokenID: "1", Source: SourceURLItem},
	)

	w.check(context.Background())

	if len(notify.sent()) != 0 {
		t.Error("dust collections must not alert")
	}
}

func TestWatcher_CooldownSuppressesRepeats(t *testing.T) {
	notify := &mockNotifier{}
	w, cache := newTestWatcher(&mockMetricsAPI{points: washyPoints()}, notify)

	cache.Set(
		browser.Tab{URL: "https://opensea.io/item/ethereum/0xabc/1"},
		&NFTIdentity{Blockchain: "ethereum", ContractAddress: "0xabc", TokenID: "1", Source: SourceURLItem},
	)

	now := time.Unix(1000000, 0)
	w.nowFn = func() time.Time { return now }

	w.check(context.Background())
	now = now.Add(time.Hour)
	w.check(context.Background())

	if got := len(notify.sent()); got != 1 {
		t.Fatalf("expected one alert inside the cooldown, got %d", got)
	}

	now = now.Add(6 * time.Hour)
	w.check(context.Background())

	if got := len(notify.sent()); got != 2 {
		t.Errorf("expected a second alert after the cooldown, got %d", got)
	}
}

func TestWatcher_SkipsUnresolvableSlug(t *testing.T) {
	notify := &mockNotifier{}
	api := &mockMetricsAPI{points: washyPoints(), slugErr: errors.New("unknown slug")}
	w, cache := newTestWatcher(api, notify)

	cache.Set(
		browser.Tab{URL: "https://opensea.io/boredapes/1234"},
		&NFTIdentity{Blockchain: "ethereum", ContractAddress: "boredapes", TokenID: "1234", Source: SourceCollectionSlug},
	)

	w.check(context.Background())

	if len(notify.sent()) != 0 {
		t.Error("unverified slug identities must not alert")
	}
}

func TestWatcher_ResolvesSlugBeforeAlerting(t *testing.T) {
	notify := &mockNotifier{}
	api := &mockMetricsAPI{
		points:  washyPoints(),
		slugRef: &analytics.CollectionRef{Blockchain: "ethereum", ContractAddress: "0xreal", Slug: "boredapes"},
	}
	w, cache := newTestWatcher(api, notify)

	cache.Set(
		browser.Tab{URL: "https://opensea.io/boredapes/1234"},
		&NFTIdentity{Blockchain: "ethereum", ContractAddress: "boredapes", TokenID: "1234", Source: SourceCollectionSlug},
	)

	w.check(context.Background())

	alerts := notify.sent()
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	if alerts[0].ContractAddress != "0xreal" {
		t.Errorf("alert must carry the resolved contract, got %q", alerts[0].ContractAddress)
	}
}

func TestWatcher_EmptyCacheNoop(t *testing.T) {
	notify := &mockNotifier{}
	w, _ := newTestWatcher(&mockMetricsAPI{points: washyPoints()}, notify)

	w.check(context.Background())

	if len(notify.sent()) != 0 {
		t.Error("empty cache must not alert")
	}
	if checks, _ := w.Stats(); checks != 1 {
		t.Errorf("expected one recorded check, got %d", checks)
	}
}

func TestEvaluateSeries_VolumeSpike(t *testing.T) {
	points := []analytics.MetricPoint{
		{Volume: 2}, {Volume: 2}, {Volume: 2}, {Volume: 2}, {Volume: 30},
	}
	reasons := evaluateSeries(points, 0.9, 1.0)

	found := false
	for _, r := range reasons {
		if r == "volume_spike" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected volume spike reason, got %v", reasons)
	}
}

func TestEvaluateSeries_NoSpikeOnShortSeries(t *testing.T) {
	points := []analytics.MetricPoint{{Volume: 1}, {Volume: 30}}
	if latestVolumeSpike(points) {
		t.Error("short series must not register a spike")
	}
}
